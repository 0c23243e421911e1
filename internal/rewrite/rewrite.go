package rewrite

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/gubarz/cachebust/internal/inject"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

var (
	// ErrRootNotFound is returned when the root directory does not exist
	ErrRootNotFound = errors.New("root directory not found")
	// ErrInvalidEncoding is returned for files that are not valid UTF-8
	ErrInvalidEncoding = errors.New("file is not valid UTF-8")
)

// FileResult describes what happened to one file
type FileResult struct {
	Path       string
	Insertions int
	Written    bool // False for unchanged files and in dry-run mode
}

// Summary aggregates a batch run
type Summary struct {
	Processed  int
	Modified   int
	Insertions int
	Files      []FileResult
}

// ModifiedPaths returns the files that received at least one insertion
func (s *Summary) ModifiedPaths() []string {
	var paths []string
	for _, f := range s.Files {
		if f.Insertions > 0 {
			paths = append(paths, f.Path)
		}
	}
	return paths
}

// Options configures a Rewriter
type Options struct {
	Extension string
	Exclude   []string
	DryRun    bool
	// OnFile is called after each file is processed
	OnFile func(FileResult)
}

// Rewriter runs the insertion engine over files in a directory tree
type Rewriter struct {
	fs     afero.Fs
	engine *inject.Engine
	opts   Options
	logger *zap.Logger
}

// New creates a rewriter. A nil logger disables logging.
func New(fs afero.Fs, engine *inject.Engine, opts Options, logger *zap.Logger) *Rewriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rewriter{
		fs:     fs,
		engine: engine,
		opts:   opts,
		logger: logger,
	}
}

// Match reports whether path is a handler file that is not excluded
func (r *Rewriter) Match(path string) bool {
	return strings.HasSuffix(path, r.opts.Extension) && !r.Excluded(path)
}

// Excluded reports whether path contains one of the exclude substrings
func (r *Rewriter) Excluded(path string) bool {
	for _, ex := range r.opts.Exclude {
		if ex != "" && strings.Contains(path, ex) {
			return true
		}
	}
	return false
}

// Run processes every matching file under root, one at a time. On a file
// error the run stops and the summary so far is returned with the error;
// files already rewritten stay rewritten.
func (r *Rewriter) Run(root string) (*Summary, error) {
	ok, err := afero.DirExists(r.fs, root)
	if err != nil {
		return nil, fmt.Errorf("checking %s: %w", root, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", root, ErrRootNotFound)
	}

	summary := &Summary{}
	err = afero.Walk(r.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !r.Match(path) {
			return nil
		}

		res, err := r.ProcessFile(path)
		if err != nil {
			return err
		}
		summary.add(res)
		return nil
	})
	if err != nil {
		return summary, err
	}

	r.logger.Debug("Run finished",
		zap.String("root", root),
		zap.Int("processed", summary.Processed),
		zap.Int("modified", summary.Modified))
	return summary, nil
}

func (s *Summary) add(res FileResult) {
	s.Processed++
	if res.Insertions > 0 {
		s.Modified++
		s.Insertions += res.Insertions
	}
	s.Files = append(s.Files, res)
}

// ProcessFile runs the engine over a single file and overwrites it only if
// something was inserted
func (r *Rewriter) ProcessFile(path string) (FileResult, error) {
	res := FileResult{Path: path}

	info, err := r.fs.Stat(path)
	if err != nil {
		return res, fmt.Errorf("stat %s: %w", path, err)
	}
	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return res, fmt.Errorf("read %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return res, fmt.Errorf("%s: %w", path, ErrInvalidEncoding)
	}

	out, n := r.engine.ProcessText(string(data))
	res.Insertions = n
	r.logger.Debug("Processed file", zap.String("path", path), zap.Int("insertions", n))

	if n > 0 && !r.opts.DryRun {
		if err := afero.WriteFile(r.fs, path, []byte(out), info.Mode().Perm()); err != nil {
			return res, fmt.Errorf("write %s: %w", path, err)
		}
		res.Written = true
	}

	if r.opts.OnFile != nil {
		r.opts.OnFile(res)
	}
	return res, nil
}
