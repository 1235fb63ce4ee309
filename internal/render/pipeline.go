package render

import (
	"context"
	"errors"
	"image"
	"log"
	"sync"

	"github.com/ayusman/tinsel/internal/animation"
)

// Logf is the package diagnostic logger. Tests may replace it.
var Logf = log.Printf

// Surface presents a rendered image. img is only valid for the duration of
// the call.
type Surface interface {
	Present(ctx context.Context, img *image.RGBA, f *animation.Frame) error
}

// Pipeline rasterizes each frame once and hands the image to every attached
// surface. It implements animation.Renderer.
type Pipeline struct {
	raster *Raster

	mu       sync.Mutex
	surfaces []Surface
}

// NewPipeline creates a pipeline drawing with raster.
func NewPipeline(raster *Raster, surfaces ...Surface) *Pipeline {
	return &Pipeline{raster: raster, surfaces: surfaces}
}

// Attach adds a surface.
func (p *Pipeline) Attach(s Surface) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.surfaces = append(p.surfaces, s)
}

// Render draws f and presents it on every surface. Errors from all surfaces
// are joined, so a lost surface is visible through errors.Is.
func (p *Pipeline) Render(ctx context.Context, f *animation.Frame) error {
	p.mu.Lock()
	surfaces := p.surfaces
	p.mu.Unlock()

	if len(surfaces) == 0 {
		return nil
	}

	img := p.raster.Draw(f)

	var errs []error
	for _, s := range surfaces {
		if err := s.Present(ctx, img, f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
