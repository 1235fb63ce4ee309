// Package render turns animation frames into images and presents them on
// surfaces such as a desktop window or an MJPEG stream.
package render

import (
	"fmt"
	"image"
	"image/color"
	"slices"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/tinsel/internal/animation"
	"github.com/ayusman/tinsel/internal/scene"
)

// Options controls the rasterizer output.
type Options struct {
	Width  int
	Height int

	Background color.RGBA
	// ParticleRadius is the world-space radius of a particle at scale 1.
	ParticleRadius float64
	// HUD draws the state and gesture in the top-left corner.
	HUD bool
}

// DefaultOptions returns a 640x480 raster with the HUD enabled.
func DefaultOptions() Options {
	return Options{
		Width:          640,
		Height:         480,
		Background:     color.RGBA{R: 4, G: 10, B: 8, A: 255},
		ParticleRadius: 0.35,
		HUD:            true,
	}
}

type sprite struct {
	x, y  float32
	depth float32
	index int
}

// Raster draws frames into a reused RGBA buffer with a pinhole projection.
// A Raster is not safe for concurrent use.
type Raster struct {
	opts    Options
	img     *image.RGBA
	images  Images
	sprites []sprite
	planes  []sprite
	hud     *font.Drawer
}

// NewRaster creates a raster. images may be nil, in which case photo planes
// are drawn as plain cards.
func NewRaster(opts Options, images Images) *Raster {
	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	return &Raster{
		opts:   opts,
		img:    img,
		images: images,
		hud: &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(color.RGBA{R: 255, G: 236, B: 179, A: 255}),
			Face: basicfont.Face7x13,
		},
	}
}

// Image returns the raster buffer. Its contents change on every Draw.
func (r *Raster) Image() *image.RGBA {
	return r.img
}

// Draw renders f into the raster buffer and returns it.
func (r *Raster) Draw(f *animation.Frame) *image.RGBA {
	draw.Draw(r.img, r.img.Bounds(), image.NewUniform(r.opts.Background), image.Point{}, draw.Src)

	s := f.Scene
	p := newProjector(s.Camera, r.opts.Width, r.opts.Height)

	r.drawGlitter(p, &s.Glitter)
	r.drawParticles(p, s)
	r.drawPlanes(p, s.Planes)

	if r.opts.HUD {
		r.drawHUD(f)
	}
	return r.img
}

func (r *Raster) drawGlitter(p projector, g *scene.Glitter) {
	sin, cos := math32.Sincos(float32(g.Yaw))
	star := color.RGBA{R: 255, G: 250, B: 220, A: 255}
	for _, pt := range g.Points {
		x, z := float32(pt.X), float32(pt.Z)
		world := r3.Vec{
			X: float64(x*cos + z*sin),
			Y: pt.Y + g.Offset,
			Z: float64(-x*sin + z*cos),
		}
		sx, sy, _, ok := p.project(world)
		if !ok {
			continue
		}
		r.img.SetRGBA(int(sx), int(sy), star)
	}
}

func (r *Raster) drawParticles(p projector, s *scene.Scene) {
	r.sprites = r.sprites[:0]
	for i := range s.Poses {
		x, y, depth, ok := p.project(s.Poses[i].Position)
		if !ok {
			continue
		}
		r.sprites = append(r.sprites, sprite{x: x, y: y, depth: depth, index: i})
	}
	sortFarFirst(r.sprites)

	for _, sp := range r.sprites {
		pose := &s.Poses[sp.index]
		part := &s.Particles[sp.index]
		radius := p.scale(r.opts.ParticleRadius*pose.Scale, sp.depth)
		col := paletteColor(part.Color)
		angle := float32(pose.Rotation.X)

		switch part.Shape {
		case scene.Cube:
			r.fillSquare(sp.x, sp.y, radius*0.85, angle, col)
		case scene.Candy:
			r.fillCandy(sp.x, sp.y, radius, angle, col)
		default:
			r.fillDisc(sp.x, sp.y, radius, col)
		}
	}
}

func (r *Raster) drawPlanes(p projector, planes []scene.PhotoPlane) {
	r.planes = r.planes[:0]
	for i := range planes {
		x, y, depth, ok := p.project(planes[i].Position)
		if !ok {
			continue
		}
		r.planes = append(r.planes, sprite{x: x, y: y, depth: depth, index: i})
	}
	sortFarFirst(r.planes)

	for _, sp := range r.planes {
		pl := &planes[sp.index]
		halfW := p.scale(pl.Scale.X/2, sp.depth) * math32.Abs(math32.Cos(float32(pl.Yaw)))
		halfH := p.scale(pl.Scale.Y/2, sp.depth)
		if halfW < 1 || halfH < 1 {
			continue
		}
		rect := image.Rect(int(sp.x-halfW), int(sp.y-halfH), int(sp.x+halfW), int(sp.y+halfH))

		if r.images != nil {
			if src, ok := r.images.Image(pl.Ref); ok {
				draw.ApproxBiLinear.Scale(r.img, rect, src, src.Bounds(), draw.Over, nil)
				continue
			}
		}
		draw.Draw(r.img, rect, image.NewUniform(color.RGBA{R: 250, G: 245, B: 235, A: 255}), image.Point{}, draw.Src)
		inner := rect.Inset(max(1, rect.Dx()/12))
		draw.Draw(r.img, inner, image.NewUniform(color.RGBA{R: 60, G: 70, B: 80, A: 255}), image.Point{}, draw.Src)
	}
}

func (r *Raster) drawHUD(f *animation.Frame) {
	lines := [...]string{
		fmt.Sprintf("%s  %s", f.State, f.Gesture.Gesture),
		photoLine(f),
	}
	for i, line := range lines {
		r.hud.Dot = fixed.P(8, 16+i*15)
		r.hud.DrawString(line)
	}
}

func photoLine(f *animation.Frame) string {
	n := len(f.Scene.Planes)
	if !f.HasActive {
		return fmt.Sprintf("photos %d", n)
	}
	return fmt.Sprintf("photo %d/%d", f.ActivePhoto+1, n)
}

func (r *Raster) fillDisc(cx, cy, radius float32, col color.RGBA) {
	r2 := radius * radius
	r.eachPixel(cx, cy, radius, func(dx, dy float32) (color.RGBA, bool) {
		return col, dx*dx+dy*dy <= r2
	})
}

func (r *Raster) fillSquare(cx, cy, half, angle float32, col color.RGBA) {
	sin, cos := math32.Sincos(angle)
	r.eachPixel(cx, cy, half*math32.Sqrt2, func(dx, dy float32) (color.RGBA, bool) {
		u := dx*cos + dy*sin
		v := -dx*sin + dy*cos
		return col, math32.Abs(u) <= half && math32.Abs(v) <= half
	})
}

func (r *Raster) fillCandy(cx, cy, radius, angle float32, col color.RGBA) {
	sin, cos := math32.Sincos(angle)
	r2 := radius * radius
	stripe := max(radius/2, 1)
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	r.eachPixel(cx, cy, radius, func(dx, dy float32) (color.RGBA, bool) {
		if dx*dx+dy*dy > r2 {
			return col, false
		}
		u := dx*cos + dy*sin
		if int(math32.Floor(u/stripe))%2 == 0 {
			return white, true
		}
		return col, true
	})
}

func (r *Raster) eachPixel(cx, cy, extent float32, shade func(dx, dy float32) (color.RGBA, bool)) {
	b := r.img.Bounds()
	x0 := max(b.Min.X, int(math32.Floor(cx-extent)))
	x1 := min(b.Max.X-1, int(math32.Ceil(cx+extent)))
	y0 := max(b.Min.Y, int(math32.Floor(cy-extent)))
	y1 := min(b.Max.Y-1, int(math32.Ceil(cy+extent)))
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			if col, ok := shade(float32(x)+0.5-cx, float32(y)+0.5-cy); ok {
				r.img.SetRGBA(x, y, col)
			}
		}
	}
}

func sortFarFirst(s []sprite) {
	slices.SortFunc(s, func(a, b sprite) int {
		switch {
		case a.depth > b.depth:
			return -1
		case a.depth < b.depth:
			return 1
		default:
			return a.index - b.index
		}
	})
}

func paletteColor(i int) color.RGBA {
	c := scene.Palette[i%len(scene.Palette)]
	return color.RGBA{R: uint8(c >> 16), G: uint8(c >> 8), B: uint8(c), A: 255}
}

// projector maps world points to raster coordinates for one camera.
type projector struct {
	mvp    mgl32.Mat4
	focal  float32
	width  float32
	height float32
}

func newProjector(cam scene.Camera, width, height int) projector {
	fovy := mgl32.DegToRad(float32(cam.FOV))
	view := mgl32.LookAtV(vec3(cam.Position), vec3(cam.Focus), mgl32.Vec3{0, 1, 0})
	proj := mgl32.Perspective(fovy, float32(width)/float32(height), 0.1, 500)
	return projector{
		mvp:    proj.Mul4(view),
		focal:  1 / math32.Tan(fovy/2),
		width:  float32(width),
		height: float32(height),
	}
}

// project returns the raster position and view depth of v. ok is false for
// points behind the near plane.
func (p projector) project(v r3.Vec) (x, y, depth float32, ok bool) {
	clip := p.mvp.Mul4x1(mgl32.Vec4{float32(v.X), float32(v.Y), float32(v.Z), 1})
	w := clip.W()
	if w <= 0.1 {
		return 0, 0, 0, false
	}
	x = (clip.X()/w + 1) * 0.5 * p.width
	y = (1 - clip.Y()/w) * 0.5 * p.height
	return x, y, w, true
}

// scale returns the raster size of a world length seen at depth.
func (p projector) scale(length float64, depth float32) float32 {
	return float32(length) * p.focal * p.height * 0.5 / depth
}

func vec3(v r3.Vec) mgl32.Vec3 {
	return mgl32.Vec3{float32(v.X), float32(v.Y), float32(v.Z)}
}
