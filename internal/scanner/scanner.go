// Package scanner finds text files whose links should be shortened.
package scanner

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultTypes are scanned when no types are configured.
var DefaultTypes = []string{"md", "txt"}

// Options holds options for scanning files with filtering.
type Options struct {
	// Root is the directory to scan. A single file is also accepted.
	Root string

	// Types are the file types to include (e.g., "md", "txt", "html").
	// DefaultTypes apply when empty.
	Types []string

	// Include patterns (glob) - if set, only matching files are included.
	Include []string

	// Exclude patterns (glob) - matching files are excluded.
	Exclude []string

	// MaxSize skips files larger than this many bytes. Zero means no limit.
	MaxSize int64
}

// Find scans for files with type, size and include/exclude filtering.
func Find(opts Options) ([]string, error) {
	types := opts.Types
	if len(types) == 0 {
		types = DefaultTypes
	}

	files, err := FindFiles(opts.Root, Extensions(types), opts.MaxSize)
	if err != nil {
		return nil, err
	}

	// Apply include filter (if any patterns specified)
	if len(opts.Include) > 0 {
		files, err = filterByGlobPatterns(files, opts.Root, opts.Include, true)
		if err != nil {
			return nil, err
		}
	}

	// Apply exclude filter
	if len(opts.Exclude) > 0 {
		files, err = filterByGlobPatterns(files, opts.Root, opts.Exclude, false)
		if err != nil {
			return nil, err
		}
	}

	return files, nil
}

// Extensions converts type names (without the leading dot) to the file
// extensions they cover. Some types map to several extensions.
func Extensions(types []string) []string {
	extensions := make([]string, 0, len(types))
	for _, t := range types {
		t = strings.ToLower(strings.TrimPrefix(t, "."))
		switch t {
		case "":
			continue
		case "md":
			extensions = append(extensions, ".md", ".mdx", ".markdown")
		case "yaml":
			extensions = append(extensions, ".yaml", ".yml")
		case "html":
			extensions = append(extensions, ".html", ".htm")
		default:
			extensions = append(extensions, "."+t)
		}
	}
	slices.Sort(extensions)
	return slices.Compact(extensions)
}

// FindFiles walks a directory and returns all files matching the given extensions.
// Extensions should include the leading dot (e.g., ".md", ".txt").
// It skips hidden directories (starting with .) like .git.
func FindFiles(root string, extensions []string, maxSize int64) ([]string, error) {
	if len(extensions) == 0 {
		return nil, nil
	}

	// Normalize extensions to lowercase
	normalizedExts := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		normalizedExts[strings.ToLower(ext)] = true
	}

	var files []string

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		// Skip hidden directories (like .git, .github, etc.)
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}

		if !normalizedExts[strings.ToLower(filepath.Ext(d.Name()))] {
			return nil
		}

		if maxSize > 0 {
			info, err := d.Info()
			if err != nil {
				return err
			}
			if info.Size() > maxSize {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// filterByGlobPatterns filters files by glob patterns.
// If include=true, keeps only files matching any pattern.
// If include=false, removes files matching any pattern.
func filterByGlobPatterns(files []string, root string, patterns []string, include bool) ([]string, error) {
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, g)
	}

	result := make([]string, 0, len(files))
	for _, f := range files {
		// Get relative path for matching (relative to root)
		relPath, err := filepath.Rel(root, f)
		if err != nil || relPath == "." {
			relPath = filepath.Base(f)
		}
		// Normalize path separators for cross-platform glob matching
		relPath = filepath.ToSlash(relPath)

		if matchesAnyGlob(relPath, compiled) == include {
			result = append(result, f)
		}
	}

	return result, nil
}

// matchesAnyGlob checks if a path matches any of the compiled glob patterns.
func matchesAnyGlob(path string, patterns []glob.Glob) bool {
	for _, g := range patterns {
		if g.Match(path) {
			return true
		}
	}
	return false
}
