// Package locator finds a book's raw text files in the datalake.
package locator

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/bookpipeline/internal/catalog"
	apperrors "github.com/Adithya-Monish-Kumar-K/bookpipeline/pkg/errors"
)

// Section names one of the files a book is split into.
type Section string

const (
	SectionHeader Section = "header"
	SectionBody   Section = "body"
)

// FileName is the datalake naming convention for a book section.
func FileName(id catalog.BookID, section Section) string {
	return fmt.Sprintf("%d.%s.txt", id, section)
}

// Locator searches a list of roots, in order, for book files.
type Locator struct {
	roots    []string
	maxDepth int
}

func New(roots []string, maxDepth int) *Locator {
	if maxDepth <= 0 {
		maxDepth = 3
	}
	return &Locator{roots: roots, maxDepth: maxDepth}
}

var errFound = errors.New("found")

// Find returns the path of the section file. Files deeper than maxDepth
// directory levels below a root are not considered. Missing roots are
// skipped; exhausting every root yields ErrNotFound.
func (l *Locator) Find(id catalog.BookID, section Section) (string, error) {
	if !id.Valid() {
		return "", apperrors.InvalidInput("invalid book id %d", id)
	}
	name := FileName(id, section)
	for _, root := range l.roots {
		var found string
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == root {
					return fs.SkipAll
				}
				return nil
			}
			if d.IsDir() {
				if depth(root, path) > l.maxDepth {
					return fs.SkipDir
				}
				return nil
			}
			if d.Name() == name {
				found = path
				return errFound
			}
			return nil
		})
		if found != "" {
			return found, nil
		}
		if err != nil && !errors.Is(err, errFound) {
			return "", fmt.Errorf("searching %s: %w", root, err)
		}
	}
	return "", apperrors.NotFound("%s not found under %d root(s)", name, len(l.roots))
}

// Read returns the contents of the section file.
func (l *Locator) Read(id catalog.BookID, section Section) (string, error) {
	path, err := l.Find(id, section)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

// Exists reports whether both the header and the body of a book are present.
func (l *Locator) Exists(id catalog.BookID) bool {
	for _, s := range []Section{SectionHeader, SectionBody} {
		if _, err := l.Find(id, s); err != nil {
			return false
		}
	}
	return true
}

func depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}
