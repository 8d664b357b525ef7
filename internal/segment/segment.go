package segment

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/eleven-am/govod/internal/domain"
)

// Name is the file name of segment index for a quality level.
func Name(quality string, index int) string {
	return fmt.Sprintf("%s_segment_%03d.ts", quality, index)
}

// Pattern is the printf-style template handed to the segmenter.
func Pattern(quality string) string {
	return quality + "_segment_%03d.ts"
}

// OnDisk lists the segment files for quality in dir, sorted by name.
func OnDisk(dir, quality string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, quality+"_segment_*.ts"))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, filepath.Base(m))
	}
	sort.Strings(names)
	return names, nil
}

// Clean removes segment files for quality left in dir by an earlier run.
func Clean(dir, quality string) error {
	names, err := OnDisk(dir, quality)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// Verify checks that the playlist entries for quality are exactly the segment
// files present in dir, in index order, and that none is empty.
func Verify(dir, quality string, segments []domain.Segment) error {
	if len(segments) == 0 {
		return fmt.Errorf("playlist lists no segments")
	}

	for i, seg := range segments {
		if want := Name(quality, i); seg.URI != want {
			return fmt.Errorf("segment %d is %q, expected %q", i, seg.URI, want)
		}
		info, err := os.Stat(filepath.Join(dir, seg.URI))
		if err != nil {
			return fmt.Errorf("stat segment: %w", err)
		}
		if info.Size() == 0 {
			return fmt.Errorf("segment %s is empty", seg.URI)
		}
	}

	onDisk, err := OnDisk(dir, quality)
	if err != nil {
		return fmt.Errorf("list segments: %w", err)
	}
	if len(onDisk) != len(segments) {
		return fmt.Errorf("playlist lists %d segments but %d exist on disk (%s)",
			len(segments), len(onDisk), strings.Join(onDisk, ", "))
	}
	return nil
}
