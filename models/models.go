// Package models discovers ONNX model files in a models directory.
package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/jellydator/ttlcache/v3"

	"aura-go/internal/logger"
)

// File names looked up in a models directory.
const (
	DefaultModelFile = "qwen3-0.6b-int8.onnx"
	TokenizerFile    = "tokenizer.json"
	modelExt         = ".onnx"
)

// DefaultCatalogTTL bounds how long a directory listing is reused.
const DefaultCatalogTTL = 30 * time.Second

// ErrModelNotFound is returned by Resolve for a name with no matching file.
var ErrModelNotFound = errors.New("model not found")

// Info describes one model file.
type Info struct {
	Name         string
	Path         string
	SizeMB       float64
	ModTime      time.Time
	HasTokenizer bool
	// ID is stable for a given file name and size.
	ID uint64
}

// ShortID renders ID in hex.
func (i Info) ShortID() string {
	return strconv.FormatUint(i.ID, 16)
}

// EnsureDir creates the models directory if it does not exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create models directory: %w", err)
	}
	return nil
}

// TokenizerPath returns the vocabulary file location for dir.
func TokenizerPath(dir string) string {
	return filepath.Join(dir, TokenizerFile)
}

// Scan lists the *.onnx files directly inside dir, sorted by name.
// A missing directory yields an empty list.
func Scan(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read models directory: %w", err)
	}

	_, tokErr := os.Stat(TokenizerPath(dir))
	hasTokenizer := tokErr == nil

	var out []Info
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), modelExt) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Info{
			Name:         e.Name(),
			Path:         filepath.Join(dir, e.Name()),
			SizeMB:       float64(fi.Size()) / (1024 * 1024),
			ModTime:      fi.ModTime(),
			HasTokenizer: hasTokenizer,
			ID:           fileID(e.Name(), fi.Size()),
		})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out, nil
}

func fileID(name string, size int64) uint64 {
	d := xxhash.New()
	d.WriteString(name)
	d.WriteString(":")
	d.WriteString(strconv.FormatInt(size, 10))
	return d.Sum64()
}

// Catalog is a TTL cache of directory scans keyed by absolute path.
type Catalog struct {
	cache *ttlcache.Cache[string, []Info]
	log   logger.Logger
}

// CatalogOption is a functional option for Catalog
type CatalogOption func(*catalogOptions)

type catalogOptions struct {
	ttl time.Duration
	log logger.Logger
}

// WithTTL changes how long a scan is reused.
func WithTTL(ttl time.Duration) CatalogOption {
	return func(o *catalogOptions) {
		o.ttl = ttl
	}
}

// WithLogger sets the catalog logger.
func WithLogger(l logger.Logger) CatalogOption {
	return func(o *catalogOptions) {
		o.log = l
	}
}

// NewCatalog creates a catalog and starts its expiration loop.
func NewCatalog(opts ...CatalogOption) *Catalog {
	o := catalogOptions{ttl: DefaultCatalogTTL, log: logger.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	c := ttlcache.New[string, []Info](
		ttlcache.WithTTL[string, []Info](o.ttl),
		ttlcache.WithDisableTouchOnHit[string, []Info](),
	)
	go c.Start()
	return &Catalog{cache: c, log: o.log.With("component", "models")}
}

// Close stops the cache expiration loop.
func (c *Catalog) Close() {
	c.cache.Stop()
}

// List returns the models in dir, scanning only when no fresh listing is cached.
func (c *Catalog) List(dir string) ([]Info, error) {
	key, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if item := c.cache.Get(key); item != nil {
		return item.Value(), nil
	}
	return c.Refresh(dir)
}

// Refresh rescans dir and replaces its cached listing.
func (c *Catalog) Refresh(dir string) ([]Info, error) {
	key, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	infos, err := Scan(key)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, infos, ttlcache.DefaultTTL)
	c.log.Debug("scanned models directory", "dir", key, "models", len(infos))
	return infos, nil
}

// Resolve finds the model called name in dir. The .onnx extension may be
// omitted, and an empty name means DefaultModelFile. A path to an existing
// file is returned as is.
func (c *Catalog) Resolve(dir, name string) (Info, error) {
	if name == "" {
		name = DefaultModelFile
	}
	if strings.ContainsRune(name, filepath.Separator) {
		if fi, err := os.Stat(name); err == nil && !fi.IsDir() {
			return Info{
				Name:   filepath.Base(name),
				Path:   name,
				SizeMB: float64(fi.Size()) / (1024 * 1024),
				ID:     fileID(filepath.Base(name), fi.Size()),
			}, nil
		}
		return Info{}, fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}
	if !strings.EqualFold(filepath.Ext(name), modelExt) {
		name += modelExt
	}

	infos, err := c.List(dir)
	if err != nil {
		return Info{}, err
	}
	if info, ok := find(infos, name); ok {
		return info, nil
	}

	// The file may have appeared after the cached scan.
	infos, err = c.Refresh(dir)
	if err != nil {
		return Info{}, err
	}
	if info, ok := find(infos, name); ok {
		return info, nil
	}
	return Info{}, fmt.Errorf("%w: %s", ErrModelNotFound, filepath.Join(dir, name))
}

func find(infos []Info, name string) (Info, bool) {
	for _, info := range infos {
		if info.Name == name {
			return info, true
		}
	}
	return Info{}, false
}
