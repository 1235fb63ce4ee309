package animation

import "gonum.org/v1/gonum/spatial/r3"

// Ease moves cur toward target by the fraction k of the remaining distance.
func Ease(cur, target r3.Vec, k float64) r3.Vec {
	return r3.Add(cur, r3.Scale(k, r3.Sub(target, cur)))
}

// EaseScalar is Ease for a single value.
func EaseScalar(cur, target, k float64) float64 {
	return cur + (target-cur)*k
}
