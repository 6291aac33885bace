package presets

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal"

	bolt "go.etcd.io/bbolt"
)

var bucket = []byte("presets")

const DefaultQuality = "best"

// Preset is a named format selector, optionally with extra downloader flags.
type Preset struct {
	Name   string   `json:"name"`
	Format string   `json:"format"`
	Params []string `json:"params,omitempty"`
}

func heightCapped(h int) string {
	return fmt.Sprintf("bestvideo[height<=%d]+bestaudio/best[height<=%d]", h, h)
}

// Seeded on first use, they can be overwritten.
var builtin = []Preset{
	{Name: "best", Format: "best"},
	{Name: "1080p", Format: heightCapped(1080)},
	{Name: "720p", Format: heightCapped(720)},
	{Name: "480p", Format: heightCapped(480)},
	{Name: "audio", Format: "bestaudio"},
}

// Verbatim treats quality as a format selector of its own, e.g. a format_id
// returned by a formats probe.
func Verbatim(quality string) Preset {
	quality = strings.TrimSpace(quality)
	if quality == "" {
		quality = DefaultQuality
	}
	return Preset{Name: quality, Format: quality}
}

type Store struct {
	db *bolt.DB
}

func NewStore(db *bolt.DB) (*Store, error) {
	// init bucket and seed it once
	err := db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucket)
		if err != nil {
			return err
		}
		if b.Stats().KeyN > 0 {
			return nil
		}
		for _, p := range builtin {
			if err := put(b, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

func put(b *bolt.Bucket, p Preset) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return b.Put([]byte(p.Name), data)
}

func (s *Store) Save(p Preset) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Format = strings.TrimSpace(p.Format)

	if p.Name == "" || p.Format == "" {
		return fmt.Errorf("preset name and format are required: %w", internal.ErrInvalidInput)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx.Bucket(bucket), p)
	})
}

func (s *Store) Get(name string) (*Preset, error) {
	var p Preset

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucket).Get([]byte(name))
		if v == nil {
			return fmt.Errorf("preset %s: %w", name, internal.ErrNotFound)
		}
		return json.Unmarshal(v, &p)
	})
	if err != nil {
		return nil, err
	}

	return &p, nil
}

func (s *Store) List() ([]Preset, error) {
	result := make([]Preset, 0)

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).ForEach(func(k, v []byte) error {
			var p Preset
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			result = append(result, p)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (s *Store) Delete(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b.Get([]byte(name)) == nil {
			return fmt.Errorf("preset %s: %w", name, internal.ErrNotFound)
		}
		return b.Delete([]byte(name))
	})
}

// Resolve returns the preset named quality. Unknown qualities are used
// verbatim as format selectors.
func (s *Store) Resolve(quality string) Preset {
	quality = strings.TrimSpace(quality)
	if quality == "" {
		quality = DefaultQuality
	}

	p, err := s.Get(quality)
	if err != nil {
		slog.Debug("no preset found, using quality as format", slog.String("quality", quality))
		return Verbatim(quality)
	}

	return *p
}
