package downloaders

import (
	"errors"
	"slices"
	"testing"

	"github.com/marcopiovanello/yt-dlp-fetcher/server/internal"
)

func TestNormalizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
		err  error
	}{
		{in: "", want: "video.mp4"},
		{in: "   ", want: "video.mp4"},
		{in: "clip", want: "clip.mp4"},
		{in: "clip.mp4", want: "clip.mp4"},
		{in: "clip.MKV", want: "clip.mkv"},
		{in: "clip.webm", want: "clip.webm"},
		{in: "clip.avi", want: "clip.avi"},
		{in: "clip.mov", want: "clip.mov.mp4"},
		{in: "my.holiday", want: "my.holiday.mp4"},
		{in: ".mp4", want: "video.mp4"},
		{in: "../etc/passwd", err: internal.ErrInvalidInput},
		{in: "a/b.mp4", err: internal.ErrInvalidInput},
		{in: `a\b.mp4`, err: internal.ErrInvalidInput},
		{in: "..", err: internal.ErrInvalidInput},
		{in: "x..mp4", want: "x..mp4"},
		{in: "Part 1..2.mp4", want: "Part 1..2.mp4"},
		{in: "50% off", want: "50% off.mp4"},
		{in: "bad\x00name", err: internal.ErrInvalidInput},
		{in: "bad\nname", err: internal.ErrInvalidInput},
	}

	for _, tt := range tests {
		got, err := NormalizeFilename(tt.in)
		if tt.err != nil {
			if !errors.Is(err, tt.err) {
				t.Errorf("NormalizeFilename(%q): expected %v, got %v", tt.in, tt.err, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeFilename(%q) returned error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestArgsSanitizer(t *testing.T) {
	got := argsSanitizer([]string{"-f", "best", "", "${PATH}", "a&&b", "--no-part"})
	want := []string{"-f", "best", "--no-part"}

	if !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestLookupOrder(t *testing.T) {
	if got := lookupOrder("webm"); !slices.Equal(got, []string{"webm", "mp4", "mkv", "avi"}) {
		t.Fatalf("unexpected order %v", got)
	}
	if got := lookupOrder("mp4"); !slices.Equal(got, []string{"mp4", "mkv", "webm", "avi"}) {
		t.Fatalf("unexpected order %v", got)
	}
}
