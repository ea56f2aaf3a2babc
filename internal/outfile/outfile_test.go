package outfile

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"
)

func TestCreateUnique(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "photos")
	ts := time.Date(2025, 3, 4, 5, 6, 7, 0, time.Local)

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		f, err := Create(dir, "photo", ".jpg", ts)
		if err != nil {
			t.Fatal(err)
		}
		f.Close()
		seen[filepath.Base(f.Name())] = true
	}

	for _, want := range []string{
		"photo_20250304_050607.jpg",
		"photo_20250304_050607_1.jpg",
		"photo_20250304_050607_2.jpg",
	} {
		if !seen[want] {
			t.Errorf("missing %s in %v", want, seen)
		}
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 3 {
		t.Fatalf("%d files, want 3", len(entries))
	}
}

func TestName(t *testing.T) {
	got := Name("depth_video", ".avi", time.Date(2024, 12, 31, 23, 59, 58, 0, time.UTC))
	if ok, _ := regexp.MatchString(`^depth_video_\d{8}_\d{6}\.avi$`, got); !ok || got != "depth_video_20241231_235958.avi" {
		t.Fatalf("Name = %q", got)
	}
}
