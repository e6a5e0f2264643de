package video

import (
	"testing"
	"time"
)

func TestParseClipStart(t *testing.T) {
	cases := []struct {
		name string
		want time.Time
	}{
		{"clip_2025-10-20_13-57-04.mp4", time.Date(2025, 10, 20, 13, 57, 4, 0, time.UTC)},
		{"raw_videos/2025/10/20/clip_2025-10-20_13-57-04.mp4", time.Date(2025, 10, 20, 13, 57, 4, 0, time.UTC)},
		{"clip_2024-01-01_00-00-00.mp4", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2025-10-20_13-57-04.mp4", time.Date(2025, 10, 20, 13, 57, 4, 0, time.UTC)}, // prefix optional
	}
	for _, tc := range cases {
		got, err := ParseClipStart(tc.name)
		if err != nil {
			t.Errorf("ParseClipStart(%q): %v", tc.name, err)
			continue
		}
		if !got.Equal(tc.want) {
			t.Errorf("ParseClipStart(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestParseClipStartRejectsGarbage(t *testing.T) {
	for _, name := range []string{
		"clip.mp4",
		"clip_2025-10-20.mp4",
		"clip_20251020_135704.mp4",
		"",
	} {
		if _, err := ParseClipStart(name); err == nil {
			t.Errorf("ParseClipStart(%q) succeeded, want error", name)
		}
	}
}
