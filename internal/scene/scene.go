package scene

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r3"
)

// Shape is the mesh a particle is drawn with.
type Shape int

const (
	Sphere Shape = iota
	Cube
	Candy
)

func (s Shape) String() string {
	switch s {
	case Sphere:
		return "sphere"
	case Cube:
		return "cube"
	case Candy:
		return "candy"
	default:
		return "unknown"
	}
}

// Palette is the particle color cycle, as 0xRRGGBB.
var Palette = []uint32{
	0xFFD700, // gold
	0xC41E3A, // red
	0x228B22, // green
	0x00BFFF, // ice blue
	0xFF69B4, // pink
}

// Particle is one decorative object of the tree.
type Particle struct {
	Initial  r3.Vec // target when CLOSED
	Exploded r3.Vec // target when EXPLODED or ZOOMED
	Current  r3.Vec
	Shape    Shape
	Color    int // index into Palette
}

// Pose is the per-frame render transform of a particle. Poses are written in
// place every frame.
type Pose struct {
	Position r3.Vec
	Rotation r3.Vec
	Scale    float64
}

// PhotoPlane is a textured plane showing one user photo. Its index in
// Scene.Planes is its identity.
type PhotoPlane struct {
	Ref      string
	Position r3.Vec
	Scale    r3.Vec
	Yaw      float64
}

// Camera is a perspective camera that always looks at Focus.
type Camera struct {
	Position r3.Vec
	Focus    r3.Vec
	FOV      float64 // vertical field of view in degrees
}

// Glitter is the background star field.
type Glitter struct {
	Points []r3.Vec
	Yaw    float64
	Offset float64 // vertical bob
}

// Layout controls tree generation.
type Layout struct {
	Particles    int
	GlitterStars int
	Seed         uint64

	// TreeHeight is the vertical extent of the closed tree, centered on the origin.
	TreeHeight float64
	// Taper is the cone radius per unit of distance below the tip.
	Taper float64
	// Spread is the extent of the exploded cloud along each axis.
	Spread r3.Vec
	// GlitterExtent is the edge length of the star field cube.
	GlitterExtent float64
}

// DefaultLayout returns the stock tree.
func DefaultLayout() Layout {
	return Layout{
		Particles:     1050,
		GlitterStars:  3000,
		Seed:          1225,
		TreeHeight:    18,
		Taper:         0.45,
		Spread:        r3.Vec{X: 65, Y: 55, Z: 45},
		GlitterExtent: 120,
	}
}

// Scene is everything the animation driver moves and the renderer draws.
type Scene struct {
	Particles []Particle
	Poses     []Pose
	Planes    []PhotoPlane
	Camera    Camera
	Glitter   Glitter
}

// New generates a scene from the layout. The same layout always yields the
// same scene.
func New(layout Layout) *Scene {
	rng := rand.New(rand.NewPCG(layout.Seed, layout.Seed^0x9e3779b97f4a7c15))

	s := &Scene{
		Particles: make([]Particle, layout.Particles),
		Poses:     make([]Pose, layout.Particles),
		Camera: Camera{
			Position: r3.Vec{Z: 28},
			FOV:      55,
		},
	}

	half := layout.TreeHeight / 2
	for i := range s.Particles {
		height := rng.Float64()*layout.TreeHeight - half
		radius := math.Max(0.1, (half-height)*layout.Taper)
		angle := rng.Float64() * 2 * math.Pi

		initial := r3.Vec{
			X: math.Cos(angle) * radius * (0.3 + rng.Float64()*0.7),
			Y: height,
			Z: math.Sin(angle) * radius * (0.3 + rng.Float64()*0.7),
		}

		s.Particles[i] = Particle{
			Initial: initial,
			Exploded: r3.Vec{
				X: (rng.Float64() - 0.5) * layout.Spread.X,
				Y: (rng.Float64() - 0.5) * layout.Spread.Y,
				Z: (rng.Float64() - 0.5) * layout.Spread.Z,
			},
			Current: initial,
			Shape:   Shape(i % 3),
			Color:   i % len(Palette),
		}
		s.Poses[i] = Pose{Position: initial, Scale: 1}
	}

	s.Glitter.Points = make([]r3.Vec, layout.GlitterStars)
	for i := range s.Glitter.Points {
		s.Glitter.Points[i] = r3.Vec{
			X: (rng.Float64() - 0.5) * layout.GlitterExtent,
			Y: (rng.Float64() - 0.5) * layout.GlitterExtent,
			Z: (rng.Float64() - 0.5) * layout.GlitterExtent,
		}
	}

	return s
}

// SyncPhotos resizes the plane list to match refs. Planes keep their pose
// when their index survives; new planes start collapsed at the origin.
func (s *Scene) SyncPhotos(refs []string) {
	if len(refs) < len(s.Planes) {
		clear(s.Planes[len(refs):])
		s.Planes = s.Planes[:len(refs)]
	}
	for i, ref := range refs {
		if i < len(s.Planes) {
			s.Planes[i].Ref = ref
			continue
		}
		s.Planes = append(s.Planes, PhotoPlane{Ref: ref})
	}
}
