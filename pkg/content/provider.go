package content

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dgraph-io/ristretto"

	"github.com/ndtools/mcp-client/pkg/errors"
	"github.com/ndtools/mcp-client/pkg/logging"
)

// Reader reads files by relative path
type Reader interface {
	Bytes(rel string) ([]byte, error)
}

// Default cache sizing
const (
	DefaultCacheCounters int64 = 10_000
	DefaultCacheMaxCost  int64 = 32 << 20
)

// FileProvider reads files below a root directory
type FileProvider struct {
	root    string
	cache   *ristretto.Cache
	maxCost int64
	logger  logging.Logger
}

// Option configures a FileProvider
type Option func(*FileProvider)

// WithCacheMaxCost bounds the cached bytes. Zero or less disables caching.
func WithCacheMaxCost(maxCost int64) Option {
	return func(p *FileProvider) {
		p.maxCost = maxCost
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(p *FileProvider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewFileProvider creates a provider rooted at root, which must be an
// existing directory
func NewFileProvider(root string, opts ...Option) (*FileProvider, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("content root %q: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("content root %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("content root %q is not a directory", root)
	}

	p := &FileProvider{
		root:    abs,
		maxCost: DefaultCacheMaxCost,
		logger:  logging.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.maxCost > 0 {
		p.cache, err = ristretto.NewCache(&ristretto.Config{
			NumCounters: DefaultCacheCounters,
			MaxCost:     p.maxCost,
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("content cache: %w", err)
		}
	}
	p.logger = p.logger.WithFields(logging.String("content_root", abs))
	return p, nil
}

// Root returns the absolute content root
func (p *FileProvider) Root() string {
	return p.root
}

// Path resolves rel to a file path under the root. Absolute paths and paths
// that climb out of the root are rejected.
func (p *FileProvider) Path(rel string) (string, error) {
	clean := path.Clean(filepath.ToSlash(rel))
	if rel == "" || clean == "." || strings.HasPrefix(clean, "/") || !filepath.IsLocal(filepath.FromSlash(clean)) {
		return "", errors.ValidationError(fmt.Sprintf("content path %q is outside the content root", rel))
	}
	return filepath.Join(p.root, filepath.FromSlash(clean)), nil
}

// Bytes returns the contents of rel. A missing file is a NotFound error.
func (p *FileProvider) Bytes(rel string) ([]byte, error) {
	full, err := p.Path(rel)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		if v, ok := p.cache.Get(full); ok {
			if b, ok := v.([]byte); ok {
				return b, nil
			}
		}
	}

	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) || isDir(full) {
			return nil, errors.NotFound("content", rel)
		}
		return nil, errors.WrapError(err, errors.CodeInternalError,
			fmt.Sprintf("Failed to read %s", rel), errors.CategoryInternal, errors.SeverityError)
	}

	if p.cache != nil {
		p.cache.Set(full, data, int64(len(data))+1)
		p.cache.Wait()
	}
	p.logger.Debug("Loaded content", logging.String("path", rel), logging.Int("bytes", len(data)))
	return data, nil
}

// Text returns the contents of rel as a string
func (p *FileProvider) Text(rel string) (string, error) {
	data, err := p.Bytes(rel)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Invalidate drops rel from the cache so the next read sees the disk
func (p *FileProvider) Invalidate(rel string) {
	if p.cache == nil {
		return
	}
	if full, err := p.Path(rel); err == nil {
		p.cache.Del(full)
	}
}

// Close releases the cache
func (p *FileProvider) Close() {
	if p.cache != nil {
		p.cache.Close()
	}
}

// Walk lists the regular files under dir (relative to the root), as
// slash-separated relative paths in lexical order
func (p *FileProvider) Walk(dir string) ([]string, error) {
	start := p.root
	if dir != "" && dir != "." {
		var err error
		if start, err = p.Path(dir); err != nil {
			return nil, err
		}
	}

	var files []string
	err := filepath.WalkDir(start, func(full string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			rel, err := filepath.Rel(p.root, full)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("content", dir)
		}
		return nil, err
	}
	return files, nil
}

func isDir(full string) bool {
	info, err := os.Stat(full)
	return err == nil && info.IsDir()
}
