package metadata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal"
)

type stubExecutor struct {
	out   []byte
	err   error
	block bool
	args  []string
}

func (s *stubExecutor) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	s.args = args
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.out, s.err
}

func TestSelectRenditionsDedupesByHeight(t *testing.T) {
	formats := []Format{
		{FormatId: "137", Height: 1080, Width: 1920, VCodec: "avc1.640028"},
		{FormatId: "248", Height: 1080, Width: 1920, VCodec: "vp9"},
		{FormatId: "140", VCodec: "none", ACodec: "mp4a.40.2"},
		{FormatId: "22", Height: 720, Width: 1280, VCodec: "avc1.64001F", ACodec: "mp4a.40.2"},
		{FormatId: "135", Height: 480, Width: 854, VCodec: "avc1"},
	}

	got := SelectRenditions(formats)
	if len(got) != 3 {
		t.Fatalf("expected 3 renditions, got %d: %+v", len(got), got)
	}
	if got[0].FormatId != "137" {
		t.Fatalf("expected the first 1080p format to win, got %s", got[0].FormatId)
	}
	if got[0].VCodec != "avc1" || got[0].ACodec != "none" {
		t.Fatalf("unexpected codecs %q/%q", got[0].VCodec, got[0].ACodec)
	}
	if got[1].Height != 720 || got[1].ACodec != "mp4a" || got[1].Resolution != "1280x720" {
		t.Fatalf("unexpected 720p rendition: %+v", got[1])
	}
	if got[2].Height != 480 {
		t.Fatalf("expected 480p last, got %d", got[2].Height)
	}
}

func TestSelectRenditionsCap(t *testing.T) {
	var formats []Format
	for h := 100; h <= 1500; h += 100 {
		formats = append(formats, Format{FormatId: "f", Height: h, VCodec: "avc1"})
	}

	got := SelectRenditions(formats)
	if len(got) != MaxRenditions {
		t.Fatalf("expected %d renditions, got %d", MaxRenditions, len(got))
	}
	if got[0].Height != 1500 {
		t.Fatalf("expected the tallest rendition first, got %d", got[0].Height)
	}
}

func TestFilesizeFallback(t *testing.T) {
	got := SelectRenditions([]Format{
		{Height: 720, VCodec: "avc1", FilesizeApprox: 2048},
		{Height: 360, VCodec: "avc1"},
	})

	if got[0].Filesize != 2048 || got[0].FilesizeStr != "2.0 KiB" {
		t.Fatalf("unexpected size %d %q", got[0].Filesize, got[0].FilesizeStr)
	}
	if got[1].FilesizeStr != "Unknown" {
		t.Fatalf("expected Unknown size, got %q", got[1].FilesizeStr)
	}
}

func TestFormats(t *testing.T) {
	stub := &stubExecutor{out: []byte(`{
		"title": "A video",
		"duration": 12.5,
		"formats": [
			{"format_id": "18", "width": 640, "height": 360, "ext": "mp4", "filesize": 1048576, "vcodec": "avc1.42001E", "acodec": "mp4a.40.2"},
			{"format_id": "140", "ext": "m4a", "vcodec": "none", "acodec": "mp4a.40.2"}
		]
	}`)}

	f := NewFetcher("yt-dlp", time.Second, WithExecutor(stub))

	res, err := f.Formats(context.Background(), "https://example.com/watch")
	if err != nil {
		t.Fatalf("Formats returned error: %v", err)
	}
	if res.Title != "A video" || res.Duration != 12.5 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(res.Formats) != 1 || res.Formats[0].FilesizeStr != "1.0 MiB" {
		t.Fatalf("unexpected formats %+v", res.Formats)
	}
	if last := stub.args[len(stub.args)-1]; last != "https://example.com/watch" {
		t.Fatalf("expected the url as last argument, got %q", last)
	}
}

func TestFormatsDefaultTitle(t *testing.T) {
	f := NewFetcher("yt-dlp", time.Second, WithExecutor(&stubExecutor{out: []byte(`{"formats": []}`)}))

	res, err := f.Formats(context.Background(), "https://example.com/watch")
	if err != nil {
		t.Fatalf("Formats returned error: %v", err)
	}
	if res.Title != "Video" || len(res.Formats) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestFormatsErrors(t *testing.T) {
	tests := []struct {
		name string
		url  string
		exec *stubExecutor
		want error
	}{
		{name: "empty url", url: "  ", exec: &stubExecutor{}, want: internal.ErrInvalidInput},
		{name: "non zero exit", url: "u", exec: &stubExecutor{err: errors.New("exit status 1")}, want: internal.ErrFetchFailure},
		{name: "bad json", url: "u", exec: &stubExecutor{out: []byte("not json")}, want: internal.ErrFetchFailure},
		{name: "timeout", url: "u", exec: &stubExecutor{block: true}, want: internal.ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFetcher("yt-dlp", 20*time.Millisecond, WithExecutor(tt.exec))
			if _, err := f.Formats(context.Background(), tt.url); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
