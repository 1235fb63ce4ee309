// Package gesture classifies hand landmark frames into discrete gestures.
package gesture

import (
	"fmt"
	"strings"

	"github.com/ayusman/tinsel/internal/detector"
)

// Gesture is a discrete hand pose label.
type Gesture int

const (
	// None means no hand, or a hand that matches no other gesture.
	None Gesture = iota
	// Fist means all fingertips are curled onto the palm.
	Fist
	// Open means all fingertips are spread away from the palm.
	Open
	// Pinch means the thumb and index tips are touching.
	Pinch
)

var gestureNames = [...]string{
	None:  "NONE",
	Fist:  "FIST",
	Open:  "OPEN",
	Pinch: "PINCH",
}

func (g Gesture) String() string {
	if g < 0 || int(g) >= len(gestureNames) {
		return fmt.Sprintf("Gesture(%d)", int(g))
	}
	return gestureNames[g]
}

// ParseGesture parses a gesture name, case-insensitively.
func ParseGesture(s string) (Gesture, error) {
	for i, name := range gestureNames {
		if strings.EqualFold(s, name) {
			return Gesture(i), nil
		}
	}
	return None, fmt.Errorf("unknown gesture %q", s)
}

// MarshalText encodes the gesture by name.
func (g Gesture) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText decodes a gesture name.
func (g *Gesture) UnmarshalText(text []byte) error {
	parsed, err := ParseGesture(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// Result is the classification of one landmark frame.
//
// Rotation is a heuristic signal: X is a tilt proxy and Y a yaw proxy
// derived from landmark deltas. It is not a calibrated rotation.
type Result struct {
	Gesture  Gesture          `json:"gesture"`
	Position detector.Point3D `json:"position"`
	Rotation detector.Point3D `json:"rotation"`
}

// Active reports whether the result carries a recognized gesture.
func (r Result) Active() bool {
	return r.Gesture != None
}

// NoHand returns the result used when no hand is in view: NONE at the image
// center with zero rotation.
func NoHand() Result {
	return Result{
		Gesture:  None,
		Position: detector.Point3D{X: 0.5, Y: 0.5, Z: 0},
	}
}
