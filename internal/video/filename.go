package video

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// clipTimeLayout matches the capture naming scheme clip_2025-10-20_13-57-04.mp4.
const clipTimeLayout = "2006-01-02_15-04-05"

// ParseClipStart extracts the recording start time from a clip filename.
// The name may include a directory prefix and must carry a clip_ prefix and
// .mp4 extension around a 2006-01-02_15-04-05 timestamp.
func ParseClipStart(name string) (time.Time, error) {
	base := path.Base(name)
	stem := strings.TrimSuffix(base, path.Ext(base))
	stem = strings.TrimPrefix(stem, "clip_")

	ts, err := time.Parse(clipTimeLayout, stem)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse clip timestamp from %q: %w", name, err)
	}
	return ts.UTC(), nil
}
