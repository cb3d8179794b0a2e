package reel

import (
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
)

// TextureRegistry is a SharingContext for hosts that draw frames with
// ebiten themselves. A renderer attached to one publishes each frame as a
// texture and returns a TextureOutput naming it instead of reading pixels
// back. The host looks the texture up and releases it when done.
type TextureRegistry struct {
	mu       sync.Mutex
	next     uint64
	textures map[uint64]*ebiten.Image
}

// NewTextureRegistry returns an empty registry.
func NewTextureRegistry() *TextureRegistry {
	return &TextureRegistry{textures: make(map[uint64]*ebiten.Image)}
}

// publish stores img and returns its id. Ids start at 1.
func (r *TextureRegistry) publish(img *ebiten.Image) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.textures[r.next] = img
	return r.next
}

// Lookup returns the texture for id.
func (r *TextureRegistry) Lookup(id uint64) (*ebiten.Image, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	img, ok := r.textures[id]
	return img, ok
}

// Release deallocates the texture for id.
func (r *TextureRegistry) Release(id uint64) {
	r.mu.Lock()
	img, ok := r.textures[id]
	delete(r.textures, id)
	r.mu.Unlock()
	if ok {
		img.Deallocate()
	}
}

// Len reports how many textures are held.
func (r *TextureRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.textures)
}
