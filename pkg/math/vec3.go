// Package math provides the vector and matrix types used to evaluate Nitro
// model transforms.
package math

// Vec3 is a translation or scale component of an object transform.
type Vec3 struct {
	X, Y, Z float64
}

// Array returns the components as an array, the form TransformPoint takes.
func (v Vec3) Array() [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}
