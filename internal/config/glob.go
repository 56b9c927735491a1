package config

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// StdinArg is the input argument that selects standard input.
const StdinArg = "-"

// ExpandInputs expands file paths and glob patterns into a sorted unique
// list. A lone "-" selects standard input and cannot be combined with other
// inputs. Missing files and unmatched patterns yield errors wrapping
// fs.ErrNotExist.
func ExpandInputs(patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return nil, fmt.Errorf("no input files provided")
	}
	if len(patterns) == 1 && patterns[0] == StdinArg {
		return patterns, nil
	}

	files := make([]string, 0, len(patterns))
	seen := make(map[string]struct{})

	for _, pattern := range patterns {
		if pattern == StdinArg {
			return nil, fmt.Errorf("standard input %q cannot be combined with files", StdinArg)
		}

		if hasGlobMeta(pattern) {
			matches, err := filepath.Glob(pattern)
			if err != nil {
				return nil, err
			}
			if len(matches) == 0 {
				return nil, fmt.Errorf("no matches for pattern %q: %w", pattern, fs.ErrNotExist)
			}
			for _, match := range matches {
				if _, ok := seen[match]; ok {
					continue
				}
				seen[match] = struct{}{}
				files = append(files, match)
			}
			continue
		}

		if _, err := os.Stat(pattern); err != nil {
			return nil, err
		}
		if _, ok := seen[pattern]; ok {
			continue
		}
		seen[pattern] = struct{}{}
		files = append(files, pattern)
	}

	sort.Strings(files)
	return files, nil
}

func hasGlobMeta(s string) bool {
	return strings.ContainsAny(s, "*?[")
}
