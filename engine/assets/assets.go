package assets

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/spaghettifunk/prism/engine/core"
)

var (
	ErrAssetNotFound = errors.New("asset not found")
	ErrClosed        = errors.New("asset manager already closed")
)

type Kind uint8

const (
	KindNone Kind = iota
	KindImage
	KindModel
	KindShader
	KindFont
	KindScene
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindModel:
		return "model"
	case KindShader:
		return "shader"
	case KindFont:
		return "font"
	case KindScene:
		return "scene"
	}
	return "none"
}

type AssetInfo struct {
	// Path is relative to the asset root, with forward slashes.
	Path     string
	Kind     Kind
	Modified time.Time
}

// AssetManager indexes every asset under a root directory and, when
// watching, keeps the index current as files come and go.
type AssetManager struct {
	root    string
	shaders string
	watch   bool

	assets map[string]AssetInfo
	mutex  sync.RWMutex

	fsnotify *fsnotify.Watcher
	done     chan struct{}
	stopped  chan struct{}
	isClosed bool
}

func NewAssetManager(config core.AssetsConfig) *AssetManager {
	shaders := config.Shaders
	if shaders == "" {
		shaders = filepath.Join(config.Root, "shaders")
	}
	return &AssetManager{
		root:    config.Root,
		shaders: shaders,
		watch:   config.Watch,
		assets:  make(map[string]AssetInfo),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Initialize scans the asset root and starts the watcher when enabled.
func (am *AssetManager) Initialize(ctx context.Context) error {
	if am.isClosed {
		return ErrClosed
	}
	if err := am.scan(ctx); err != nil {
		return errors.Wrapf(err, "scanning assets in %s", am.root)
	}
	core.LogInfo("Asset index built: %d assets under %s", am.Len(), am.root)
	if !am.watch {
		close(am.stopped)
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		close(am.stopped)
		return errors.Wrap(err, "creating asset watcher")
	}
	am.fsnotify = w
	if err := am.watchRecursive(am.root); err != nil {
		w.Close()
		am.fsnotify = nil
		close(am.stopped)
		return err
	}
	go am.start()
	return nil
}

// scan walks each top-level directory of the root concurrently.
func (am *AssetManager) scan(ctx context.Context) error {
	entries, err := os.ReadDir(am.root)
	if err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, e := range entries {
		path := filepath.Join(am.root, e.Name())
		if !e.IsDir() {
			am.handleFileEvent(path)
			continue
		}
		g.Go(func() error {
			return filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if err := ctx.Err(); err != nil {
					return err
				}
				if !d.IsDir() {
					am.handleFileEvent(p)
				}
				return nil
			})
		})
	}
	return g.Wait()
}

func (am *AssetManager) start() {
	defer close(am.stopped)
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			if e.Op&fsnotify.Create != 0 {
				if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
					if err := am.watchRecursive(e.Name); err != nil {
						core.LogWarn("failed to watch %s: %s", e.Name, err)
					}
					continue
				}
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				am.handleFileEvent(e.Name)
			}
			if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				am.removeAsset(e.Name)
			}

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err)

		case <-am.done:
			return
		}
	}
}

// watchRecursive adds path and every directory below it to the watch list,
// indexing the files it passes.
func (am *AssetManager) watchRecursive(path string) error {
	return filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return am.fsnotify.Add(p)
		}
		am.handleFileEvent(p)
		return nil
	})
}

func (am *AssetManager) key(path string) string {
	if rel, err := filepath.Rel(am.root, path); err == nil && !strings.HasPrefix(rel, "..") {
		path = rel
	}
	return slashPath(path)
}

func (am *AssetManager) handleFileEvent(path string) {
	kind := determineAssetType(path)
	if kind == KindNone {
		return
	}
	info := AssetInfo{Path: am.key(path), Kind: kind}
	if s, err := os.Stat(path); err == nil {
		info.Modified = s.ModTime()
	}
	am.mutex.Lock()
	am.assets[info.Path] = info
	am.mutex.Unlock()
}

func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	delete(am.assets, am.key(path))
	am.mutex.Unlock()
}

func determineAssetType(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp":
		return KindImage
	case ".obj":
		return KindModel
	case ".spv":
		return KindShader
	case ".fnt":
		return KindFont
	case ".toml":
		return KindScene
	}
	return KindNone
}

// Lookup returns the index entry for a root-relative name.
func (am *AssetManager) Lookup(name string) (AssetInfo, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	info, ok := am.assets[slashPath(name)]
	return info, ok
}

// Resolve turns a root-relative asset name into a file path. Names missing
// from the index are checked on disk, so files created while the watcher
// is off still resolve.
func (am *AssetManager) Resolve(name string) (string, error) {
	if filepath.IsAbs(name) {
		if _, err := os.Stat(name); err != nil {
			return "", errors.Mark(errors.Wrapf(err, "resolving %s", name), ErrAssetNotFound)
		}
		return name, nil
	}
	if _, ok := am.Lookup(name); ok {
		return filepath.Join(am.root, filepath.FromSlash(name)), nil
	}
	path := filepath.Join(am.root, filepath.FromSlash(name))
	if _, err := os.Stat(path); err != nil {
		return "", errors.Mark(errors.Newf("asset %q not found under %s", name, am.root), ErrAssetNotFound)
	}
	am.handleFileEvent(path)
	return path, nil
}

// List returns the indexed assets of kind, in no particular order.
func (am *AssetManager) List(kind Kind) []AssetInfo {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	var out []AssetInfo
	for _, info := range am.assets {
		if info.Kind == kind {
			out = append(out, info)
		}
	}
	return out
}

func (am *AssetManager) Len() int {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return len(am.assets)
}

// Close stops the watcher. It is safe to call more than once.
func (am *AssetManager) Close() error {
	if am.isClosed {
		return nil
	}
	am.isClosed = true
	close(am.done)
	if am.fsnotify == nil {
		return nil
	}
	<-am.stopped
	return am.fsnotify.Close()
}

func slashPath(p string) string { return filepath.ToSlash(filepath.Clean(p)) }
