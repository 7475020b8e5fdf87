// Package corpus discovers the HTML documents a batch conversion run
// walks, adapted from the reference lineage's vault scanner (same
// WalkDir-plus-ignore-glob shape; the file extension and the absence of
// any markdown-specific helpers like frontmatter reads are the only
// differences, since a corpus directory has no equivalent metadata file).
package corpus

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
)

// Scanner walks a directory and discovers HTML documents to convert.
type Scanner struct {
	root   string
	ignore []string
}

// Document is one discovered HTML file.
type Document struct {
	// Path is the path relative to the corpus root.
	Path string
	// AbsPath is the absolute filesystem path.
	AbsPath string
	// Info is the file's metadata.
	Info fs.FileInfo
}

// NewScanner creates a Scanner rooted at root, skipping any relative path
// matching an ignore glob.
func NewScanner(root string, ignore []string) *Scanner {
	return &Scanner{root: root, ignore: ignore}
}

// Scan walks the corpus root and returns every .html document found,
// skipping hidden directories and ignored paths. Ctx cancellation stops
// the walk and returns ctx.Err().
func (s *Scanner) Scan(ctx context.Context) ([]Document, error) {
	var docs []Document

	err := filepath.WalkDir(s.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if entry.IsDir() && strings.HasPrefix(entry.Name(), ".") && path != s.root {
			return filepath.SkipDir
		}
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".html") {
			return nil
		}

		relPath, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		if s.shouldIgnore(relPath) {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}

		docs = append(docs, Document{Path: relPath, AbsPath: path, Info: info})
		return nil
	})

	return docs, err
}

func (s *Scanner) shouldIgnore(relPath string) bool {
	for _, pattern := range s.ignore {
		if matched, _ := filepath.Match(pattern, relPath); matched {
			return true
		}
		// Match patterns like "drafts/**" against any path under drafts/.
		if strings.HasSuffix(pattern, "/**") {
			prefix := strings.TrimSuffix(pattern, "/**")
			if strings.HasPrefix(relPath, prefix+string(filepath.Separator)) {
				return true
			}
		}
	}
	return false
}
