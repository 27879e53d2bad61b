// Package collector walks source directories and turns matching files into
// documents ready for indexing.
package collector

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/sha1n/seekql/internal/domain"
)

// MaxConcurrentRoots bounds how many roots are walked at the same time.
const MaxConcurrentRoots = 4

// readFile is replaced in tests to simulate unreadable files
var readFile = os.ReadFile

// Options configures a collection run.
type Options struct {
	Roots       []string
	Extensions  []string
	ExcludeDirs []string
	// MaxBytes is the largest file size that produces a document; 0 means unlimited.
	MaxBytes int64
}

// Result holds the documents produced by a run and the number of candidate
// files seen. Every candidate that could be stat'ed is counted in Scanned,
// including the ones skipped for size, so len(Documents) <= Scanned.
type Result struct {
	Documents []domain.Document
	Scanned   int
}

// Collect reads every matching file under opts.Roots.
// Missing roots are skipped. Per-file stat failures are skipped silently and
// read failures produce a document with empty content.
func Collect(ctx context.Context, opts Options) (Result, error) {
	filter := NewFileFilter(opts.Extensions, opts.ExcludeDirs, opts.MaxBytes)

	perRoot := make([]Result, len(opts.Roots))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxConcurrentRoots)

	for i, root := range opts.Roots {
		g.Go(func() error {
			res, err := collectRoot(ctx, root, filter)
			if err != nil {
				return err
			}
			perRoot[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	var out Result
	for _, r := range perRoot {
		out.Documents = append(out.Documents, r.Documents...)
		out.Scanned += r.Scanned
	}
	return out, nil
}

func collectRoot(ctx context.Context, root string, filter *FileFilter) (Result, error) {
	var res Result

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return res, nil
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			// unreadable directory: skip its contents, keep walking
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != root && filter.ShouldSkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if !filter.IsCandidate(path) {
			return nil
		}

		st, err := os.Stat(path)
		if err != nil || st.IsDir() {
			return nil
		}
		res.Scanned++

		if filter.TooLarge(st.Size()) {
			return nil
		}

		res.Documents = append(res.Documents, domain.NewDocument(resolvePath(path), readText(path)))
		return nil
	})
	if err != nil && !errors.Is(err, filepath.SkipDir) {
		return Result{}, err
	}

	return res, nil
}

// resolvePath returns the absolute path with symlinks evaluated when possible.
func resolvePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real
	}
	return abs
}

// readText returns the file content as text. Files without a byte-order mark
// are read as UTF-8; a UTF-16 BOM switches the decoder. Invalid sequences are
// replaced. Read failures yield an empty string.
func readText(path string) string {
	data, err := readFile(path)
	if err != nil {
		return ""
	}
	return DecodeText(data)
}

// DecodeText decodes raw file bytes into valid UTF-8 text.
func DecodeText(data []byte) string {
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(decoder, data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "�")
	}
	return string(out)
}
