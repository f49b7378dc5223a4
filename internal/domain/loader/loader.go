package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/charlievieth/fastwalk"
	"github.com/gabriel-vasile/mimetype"
	"github.com/goccy/go-yaml"
	"github.com/saintfish/chardet"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/selectorkit/internal/domain/selector"
	"github.com/GriffinCanCode/selectorkit/internal/domain/validation"
	"github.com/GriffinCanCode/selectorkit/internal/shared/paths"
	"github.com/GriffinCanCode/selectorkit/internal/shared/utils"
)

// DefaultMaxFileSize bounds a single configuration file.
const DefaultMaxFileSize = 1 << 20

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Loader loads single configuration files.
type Loader interface {
	Load(path string) (*selector.SelectorConfiguration, error)
	// ParentRef returns the explicit parent of path, or "" when the file
	// does not name one. It does not validate the file.
	ParentRef(path string) (string, error)
}

// Options configures a FileLoader.
type Options struct {
	MaxFileSize int64
	Layout      paths.Layout
	Strict      bool
	Concurrency int
	Validator   *validation.Validator
	Hasher      *utils.Hasher
	Logger      *zap.Logger
}

// DefaultOptions returns loader defaults.
func DefaultOptions() Options {
	return Options{
		MaxFileSize: DefaultMaxFileSize,
		Layout:      paths.DefaultLayout(),
		Concurrency: 8,
	}
}

// FileLoader reads configurations from the local filesystem.
type FileLoader struct {
	maxSize     int64
	layout      paths.Layout
	strict      bool
	concurrency int
	validator   *validation.Validator
	hasher      *utils.Hasher
	logger      *zap.Logger
}

// New creates a file loader. Zero option fields take their defaults.
func New(opts Options) *FileLoader {
	def := DefaultOptions()
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = def.MaxFileSize
	}
	if len(opts.Layout.Extensions) == 0 {
		opts.Layout.Extensions = def.Layout.Extensions
	}
	if len(opts.Layout.Patterns) == 0 {
		opts.Layout.Patterns = def.Layout.Patterns
	}
	if len(opts.Layout.MarkerNames) == 0 {
		opts.Layout.MarkerNames = def.Layout.MarkerNames
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = def.Concurrency
	}
	if opts.Validator == nil {
		opts.Validator = validation.New(validation.Options{Strict: opts.Strict})
	}
	if opts.Hasher == nil {
		opts.Hasher = utils.DefaultHasher()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &FileLoader{
		maxSize:     opts.MaxFileSize,
		layout:      opts.Layout,
		strict:      opts.Strict,
		concurrency: opts.Concurrency,
		validator:   opts.Validator,
		hasher:      opts.Hasher,
		logger:      opts.Logger,
	}
}

// Layout returns the naming conventions in use.
func (l *FileLoader) Layout() paths.Layout {
	return l.layout
}

// Load reads, parses and validates a single file.
func (l *FileLoader) Load(path string) (*selector.SelectorConfiguration, error) {
	data, info, err := l.read(path)
	if err != nil {
		return nil, err
	}
	return l.Parse(info.path, data, info.modTime)
}

type fileStat struct {
	path    string
	modTime time.Time
}

func (l *FileLoader) read(path string) ([]byte, fileStat, error) {
	clean, err := paths.Normalize(path)
	if err != nil {
		return nil, fileStat{}, &selector.LoadingError{Path: path, Reason: "invalid path", Err: err}
	}

	info, err := os.Stat(clean)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fileStat{}, &selector.LoadingError{Path: clean, Reason: "file not found", Err: err}
	case errors.Is(err, fs.ErrPermission):
		return nil, fileStat{}, &selector.FileAccessError{Path: clean, Reason: "permission denied", Err: err}
	case err != nil:
		return nil, fileStat{}, &selector.LoadingError{Path: clean, Reason: "stat failed", Err: err}
	}

	if info.IsDir() {
		return nil, fileStat{}, &selector.LoadingError{Path: clean, Reason: "is a directory"}
	}
	if !l.layout.AllowedExtension(clean) {
		return nil, fileStat{}, &selector.FileAccessError{
			Path:   clean,
			Reason: fmt.Sprintf("extension %q not allowed", filepath.Ext(clean)),
		}
	}
	if info.Size() > l.maxSize {
		return nil, fileStat{}, &selector.FileAccessError{
			Path:   clean,
			Reason: fmt.Sprintf("size %d exceeds limit %d", info.Size(), l.maxSize),
		}
	}

	data, err := os.ReadFile(clean)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, fileStat{}, &selector.FileAccessError{Path: clean, Reason: "permission denied", Err: err}
		}
		return nil, fileStat{}, &selector.LoadingError{Path: clean, Reason: "read failed", Err: err}
	}

	return data, fileStat{path: clean, modTime: info.ModTime()}, nil
}

// Parse converts raw file content into a validated configuration. path is
// used for error reporting, marker detection and resolving "inherits".
func (l *FileLoader) Parse(path string, data []byte, modTime time.Time) (*selector.SelectorConfiguration, error) {
	size := int64(len(data))
	hash := l.hasher.Hash(data)
	data = bytes.TrimPrefix(data, utf8BOM)

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &selector.LoadingError{Path: path, Reason: "file is empty"}
	}
	if err := checkContent(path, data); err != nil {
		return nil, err
	}

	var generic map[string]any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, &selector.LoadingError{Path: path, Reason: "malformed YAML", Err: err}
	}
	if len(generic) == 0 {
		return nil, &selector.LoadingError{Path: path, Reason: "file is empty"}
	}

	var opts []yaml.DecodeOption
	if l.strict {
		opts = append(opts, yaml.DisallowUnknownField())
	}
	var doc document
	if err := yaml.UnmarshalWithOptions(data, &doc, opts...); err != nil {
		return nil, &selector.SchemaValidationError{
			Path: path,
			Issues: []selector.Issue{{
				Code:    validation.CodeShape,
				Message: yaml.FormatError(err, false, true),
			}},
		}
	}

	cfg := &selector.SelectorConfiguration{
		Path:     path,
		IsMarker: l.layout.IsMarker(path),
		ModTime:  modTime,
		Size:     size,
		Hash:     hash,
	}
	if doc.Inherits != "" {
		cfg.Parent = paths.ResolveRelative(path, doc.Inherits)
	}

	issues := doc.convert(cfg)
	res := l.validator.Validate(cfg)
	issues = append(issues, res.Errors...)
	if len(issues) > 0 {
		return nil, &selector.SchemaValidationError{Path: path, Issues: issues, Warnings: res.Warnings}
	}

	cfg.Warnings = res.Warnings
	for _, w := range res.Warnings {
		l.logger.Debug("Configuration warning",
			zap.String("path", path),
			zap.String("field", w.Field),
			zap.String("message", w.Message))
	}
	return cfg, nil
}

// checkContent rejects binary and non-UTF-8 input.
func checkContent(path string, data []byte) error {
	if !isText(data) {
		return &selector.LoadingError{
			Path:   path,
			Reason: fmt.Sprintf("binary content (%s)", mimetype.Detect(data).String()),
		}
	}
	if !utf8.Valid(data) {
		charset := "unknown"
		if res, err := chardet.NewTextDetector().DetectBest(data); err == nil && res != nil {
			charset = res.Charset
		}
		return &selector.LoadingError{
			Path:   path,
			Reason: fmt.Sprintf("content is not UTF-8 (detected %s)", charset),
		}
	}
	return nil
}

func isText(data []byte) bool {
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// ParentRef reads only the "inherits" key of path.
func (l *FileLoader) ParentRef(path string) (string, error) {
	data, info, err := l.read(path)
	if err != nil {
		return "", err
	}
	var doc parentDoc
	if err := yaml.Unmarshal(bytes.TrimPrefix(data, utf8BOM), &doc); err != nil {
		return "", &selector.LoadingError{Path: info.path, Reason: "malformed YAML", Err: err}
	}
	if doc.Inherits == "" {
		return "", nil
	}
	return paths.ResolveRelative(info.path, doc.Inherits), nil
}

// FileInfo describes one discovered configuration file.
type FileInfo struct {
	Path    string
	Root    string
	ModTime time.Time
	Size    int64
}

// Discover lists every configuration file under roots, sorted by path.
// Hidden directories are skipped.
func (l *FileLoader) Discover(ctx context.Context, roots []string) ([]FileInfo, error) {
	var (
		mu    sync.Mutex
		files []FileInfo
	)

	for _, root := range roots {
		root, err := paths.Normalize(root)
		if err != nil {
			return nil, err
		}
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			return nil, &selector.LoadingError{Path: root, Reason: "root is not a directory", Err: err}
		}

		conf := fastwalk.Config{Follow: false}
		err = fastwalk.Walk(&conf, root, func(p string, d os.DirEntry, err error) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			if err != nil {
				l.logger.Debug("Skipping unreadable entry", zap.String("path", p), zap.Error(err))
				return nil
			}
			if d.IsDir() {
				if p != root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || !l.layout.Match(root, p) {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return nil
			}

			mu.Lock()
			files = append(files, FileInfo{Path: p, Root: root, ModTime: info.ModTime(), Size: info.Size()})
			mu.Unlock()
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return dedupe(files), nil
}

// dedupe drops files reached through more than one (nested) root, keeping
// the deepest root. files must be sorted by path.
func dedupe(files []FileInfo) []FileInfo {
	out := files[:0]
	for _, f := range files {
		if n := len(out); n > 0 && out[n-1].Path == f.Path {
			if len(f.Root) > len(out[n-1].Root) {
				out[n-1] = f
			}
			continue
		}
		out = append(out, f)
	}
	return out
}

// Failure records one file that could not be loaded.
type Failure struct {
	Path string
	Err  error
}

// Batch is the outcome of loading a tree.
type Batch struct {
	Configs  map[string]*selector.SelectorConfiguration
	Failures []Failure
	Files    int
	Duration time.Duration
}

// Paths returns the loaded paths in sorted order.
func (b *Batch) Paths() []string {
	out := make([]string, 0, len(b.Configs))
	for p := range b.Configs {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// LoadTree discovers and loads every file under roots in parallel. A file
// that fails is recorded in Failures; only discovery errors and context
// cancellation are returned as errors.
func (l *FileLoader) LoadTree(ctx context.Context, roots []string) (*Batch, error) {
	start := time.Now()

	files, err := l.Discover(ctx, roots)
	if err != nil {
		return nil, err
	}

	configs := make([]*selector.SelectorConfiguration, len(files))
	errs := make([]error, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			configs[i], errs[i] = l.Load(f.Path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	batch := &Batch{
		Configs: make(map[string]*selector.SelectorConfiguration, len(files)),
		Files:   len(files),
	}
	for i, f := range files {
		if errs[i] != nil {
			batch.Failures = append(batch.Failures, Failure{Path: f.Path, Err: errs[i]})
			l.logger.Warn("Failed to load configuration", zap.String("path", f.Path), zap.Error(errs[i]))
			continue
		}
		batch.Configs[f.Path] = configs[i]
	}
	batch.Duration = time.Since(start)

	l.logger.Info("Configuration tree loaded",
		zap.Int("files", batch.Files),
		zap.Int("loaded", len(batch.Configs)),
		zap.Int("failed", len(batch.Failures)),
		zap.Duration("duration", batch.Duration))

	return batch, nil
}
