package render

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"

	_ "golang.org/x/image/webp"
)

// Images resolves a photo reference to a decoded image.
type Images interface {
	Image(ref string) (image.Image, bool)
}

// FileImages decodes photo files on first use and keeps them in memory.
// References are file paths. Files that fail to decode are remembered and
// not retried until Forget is called.
type FileImages struct {
	mu    sync.Mutex
	cache map[string]image.Image
}

// NewFileImages creates an empty cache.
func NewFileImages() *FileImages {
	return &FileImages{cache: make(map[string]image.Image)}
}

// Image returns the decoded image for path.
func (c *FileImages) Image(path string) (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if img, ok := c.cache[path]; ok {
		return img, img != nil
	}

	img, err := decodeFile(path)
	if err != nil {
		Logf("render: photo %s: %v", path, err)
	}
	c.cache[path] = img
	return img, img != nil
}

// Forget drops path from the cache.
func (c *FileImages) Forget(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, path)
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	return img, err
}
