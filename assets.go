package reel

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

// VideoFrameKey is the image path under which an AssetCache supplies one
// decoded video frame.
func VideoFrameKey(path string, frame int64) string {
	return fmt.Sprintf("%s#%d", path, frame)
}

// FileAssets is an AssetCache that decodes images from disk on first use
// and keeps them. Relative paths resolve against Root. Audio and
// pre-decoded frames are added by the host. Safe for concurrent use.
type FileAssets struct {
	Root string

	mu     sync.RWMutex
	images map[string]image.Image
	failed map[string]error
	audio  map[uuid.UUID][]byte
}

// NewFileAssets returns an empty cache rooted at root.
func NewFileAssets(root string) *FileAssets {
	return &FileAssets{
		Root:   root,
		images: make(map[string]image.Image),
		failed: make(map[string]error),
		audio:  make(map[uuid.UUID][]byte),
	}
}

func (a *FileAssets) resolve(path string) string {
	if a.Root == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(a.Root, path)
}

// Image returns the decoded image for path, loading it if needed. A file
// that fails to decode is logged once and reported missing afterwards.
func (a *FileAssets) Image(path string) (image.Image, bool) {
	a.mu.RLock()
	img, ok := a.images[path]
	_, failed := a.failed[path]
	a.mu.RUnlock()
	if ok {
		return img, true
	}
	if failed {
		return nil, false
	}
	img, err := a.LoadImage(path)
	if err != nil {
		logger().Warn("reel: failed to load image", "path", path, "err", err)
		return nil, false
	}
	return img, true
}

// LoadImage decodes path and stores it, replacing any earlier entry.
func (a *FileAssets) LoadImage(path string) (image.Image, error) {
	img, err := decodeImageFile(a.resolve(path))
	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.failed[path] = err
		return nil, err
	}
	delete(a.failed, path)
	a.images[path] = img
	return img, nil
}

func decodeImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// Preload decodes paths concurrently and returns the first failure.
// Images that load are stored even when another one fails.
func (a *FileAssets) Preload(ctx context.Context, paths []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(DefaultParallelism())
	for _, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, err := a.LoadImage(p)
			return err
		})
	}
	return g.Wait()
}

// AddImage stores an already decoded image, such as a video frame keyed by
// VideoFrameKey.
func (a *FileAssets) AddImage(path string, img image.Image) {
	a.mu.Lock()
	a.images[path] = img
	delete(a.failed, path)
	a.mu.Unlock()
}

// AddAudio stores raw audio for id.
func (a *FileAssets) AddAudio(id uuid.UUID, data []byte) {
	a.mu.Lock()
	a.audio[id] = data
	a.mu.Unlock()
}

// Audio returns the audio stored for id.
func (a *FileAssets) Audio(id uuid.UUID) ([]byte, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	data, ok := a.audio[id]
	return data, ok
}
