package tree

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DataDir holds the repository database and config; it is never snapshotted.
const DataDir = ".vx"

// TempPrefix marks files a checkout is still writing.
const TempPrefix = ".vx-tmp-"

// Ignore matches base names excluded from snapshots. Patterns use
// filepath.Match syntax.
type Ignore struct {
	patterns []string
}

func NewIgnore(patterns []string) Ignore {
	return Ignore{patterns: append([]string(nil), patterns...)}
}

func (ig Ignore) Match(name string) bool {
	if name == DataDir || strings.HasPrefix(name, TempPrefix) {
		return true
	}
	for _, p := range ig.patterns {
		if p == name {
			return true
		}
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}

// DirEntry is a snapshot-eligible child of a directory.
type DirEntry struct {
	Name    string
	IsDir   bool
	Size    int64
	ModTime int64
}

// ReadDir lists abs sorted by name. Ignored names are dropped silently;
// symlinks and special files are dropped and returned in skipped.
func ReadDir(abs string, ignore Ignore) (entries []DirEntry, skipped []string, err error) {
	dirEntries, err := os.ReadDir(abs)
	if err != nil {
		return nil, nil, fmt.Errorf("reading directory: %w", err)
	}

	entries = make([]DirEntry, 0, len(dirEntries))
	for _, de := range dirEntries {
		name := de.Name()
		if ignore.Match(name) {
			continue
		}

		mode := de.Type()
		if !mode.IsDir() && !mode.IsRegular() {
			skipped = append(skipped, name)
			continue
		}

		info, err := de.Info()
		if os.IsNotExist(err) {
			// removed while listing
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("stat %s: %w", name, err)
		}

		entry := DirEntry{Name: name, IsDir: info.IsDir()}
		if !entry.IsDir {
			entry.Size = info.Size()
			entry.ModTime = info.ModTime().UnixNano()
		}
		entries = append(entries, entry)
	}
	return entries, skipped, nil
}
