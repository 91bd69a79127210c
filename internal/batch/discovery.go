package batch

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/MeKo-Tech/omr/internal/utils"
)

// DiscoverSheets walks root collecting supported image files that pass the
// include/exclude patterns. Results are sorted for deterministic ordering.
func DiscoverSheets(root string, cfg Config) ([]string, error) {
	var paths []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && !cfg.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !utils.IsSupportedImage(path) {
			return nil
		}
		name := filepath.Base(path)
		if !matchesPatterns(name, cfg.IncludePatterns, true) {
			return nil
		}
		if matchesPatterns(name, cfg.ExcludePatterns, false) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover sheets in %s: %w", root, err)
	}

	sort.Strings(paths)
	return paths, nil
}

// matchesPatterns reports whether name matches any pattern. With an empty
// pattern list the result is emptyResult.
func matchesPatterns(name string, patterns []string, emptyResult bool) bool {
	if len(patterns) == 0 {
		return emptyResult
	}
	for _, p := range patterns {
		if ok, err := filepath.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}
