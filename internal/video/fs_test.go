package video

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeClip(t *testing.T, root, camera, name string) {
	t.Helper()
	dir := filepath.Join(root, camera)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
		t.Fatalf("write clip: %v", err)
	}
}

func TestFSSourceRejectsMissingRoot(t *testing.T) {
	if _, err := NewFSSource(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("NewFSSource accepted a missing directory")
	}
}

func TestFSSourceListsClipsOldestFirst(t *testing.T) {
	root := t.TempDir()
	writeClip(t, root, "cam1", "clip_2025-10-20_14-03-00.mp4")
	writeClip(t, root, "cam1", "clip_2025-10-20_13-57-04.mp4")
	writeClip(t, root, "cam2", "clip_2025-10-20_13-58-00.mp4")

	src, err := NewFSSource(root)
	if err != nil {
		t.Fatalf("NewFSSource: %v", err)
	}

	refs, err := src.ListUnprocessed(context.Background(), "")
	if err != nil {
		t.Fatalf("ListUnprocessed: %v", err)
	}
	want := []string{
		"cam1/clip_2025-10-20_13-57-04.mp4",
		"cam1/clip_2025-10-20_14-03-00.mp4",
		"cam2/clip_2025-10-20_13-58-00.mp4",
	}
	if len(refs) != len(want) {
		t.Fatalf("got %d refs, want %d", len(refs), len(want))
	}
	for i, ref := range refs {
		if ref.Key != filepath.FromSlash(want[i]) {
			t.Errorf("refs[%d].Key = %q, want %q", i, ref.Key, want[i])
		}
		if ref.CameraID == "" {
			t.Errorf("refs[%d] has empty camera id", i)
		}
	}
}

func TestFSSourceScopesToCamera(t *testing.T) {
	root := t.TempDir()
	writeClip(t, root, "cam1", "clip_2025-10-20_13-57-04.mp4")
	writeClip(t, root, "cam2", "clip_2025-10-20_13-58-00.mp4")

	src, err := NewFSSource(root)
	if err != nil {
		t.Fatalf("NewFSSource: %v", err)
	}

	refs, err := src.ListUnprocessed(context.Background(), "cam2")
	if err != nil {
		t.Fatalf("ListUnprocessed: %v", err)
	}
	if len(refs) != 1 || refs[0].CameraID != "cam2" {
		t.Errorf("got %+v, want one cam2 ref", refs)
	}

	if _, err := src.ListUnprocessed(context.Background(), "ghost"); err == nil {
		t.Error("listing an unknown camera succeeded")
	}
}

func TestFSSourceSkipsUnparseableNames(t *testing.T) {
	root := t.TempDir()
	writeClip(t, root, "cam1", "clip_2025-10-20_13-57-04.mp4")
	writeClip(t, root, "cam1", "notes.txt")
	writeClip(t, root, "cam1", "broken.mp4")

	src, err := NewFSSource(root)
	if err != nil {
		t.Fatalf("NewFSSource: %v", err)
	}

	refs, err := src.ListUnprocessed(context.Background(), "cam1")
	if err != nil {
		t.Fatalf("ListUnprocessed: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("got %d refs, want only the well-named clip", len(refs))
	}
}

func TestFSSourceOpenRejectsBadName(t *testing.T) {
	root := t.TempDir()
	src, err := NewFSSource(root)
	if err != nil {
		t.Fatalf("NewFSSource: %v", err)
	}

	_, err = src.Open(context.Background(), SegmentRef{CameraID: "cam1", Key: "cam1/broken.mp4"})
	if err == nil {
		t.Fatal("Open accepted an unparseable clip name")
	}
	if IsTransient(err) {
		t.Error("bad clip name reported as transient")
	}
}

func TestFSSourceOpenMissingFileIsTransient(t *testing.T) {
	root := t.TempDir()
	src, err := NewFSSource(root)
	if err != nil {
		t.Fatalf("NewFSSource: %v", err)
	}

	_, err = src.Open(context.Background(),
		SegmentRef{CameraID: "cam1", Key: "cam1/clip_2025-10-20_13-57-04.mp4"})
	if err == nil {
		t.Fatal("Open succeeded on a missing file")
	}
	if !IsTransient(err) {
		t.Errorf("missing file error %v not marked transient", err)
	}
}
