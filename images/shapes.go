// Package images - Box geometry and image upsampling utilities
package images

import (
	"fmt"
	"image"
	"math"
)

// Rect is an axis-aligned bounding box in pixel coordinates.
//
// X1,Y1 is the top-left corner and X2,Y2 the bottom-right corner. X1 <= X2 and
// Y1 <= Y2 is expected but not enforced: an inverted or zero-sized box has zero
// area and never causes an error.
type Rect struct {
	X1, Y1, X2, Y2 float64
}

// NewRect builds a Rect from an (x1, y1, x2, y2) coordinate slice.
func NewRect(coords []float64) (Rect, error) {
	if len(coords) != 4 {
		return Rect{}, fmt.Errorf("rect needs 4 coordinates, got %d", len(coords))
	}
	return Rect{X1: coords[0], Y1: coords[1], X2: coords[2], Y2: coords[3]}, nil
}

// Width returns the horizontal extent of the box, clamped at zero.
func (r Rect) Width() float64 {
	return math.Max(0, r.X2-r.X1)
}

// Height returns the vertical extent of the box, clamped at zero.
func (r Rect) Height() float64 {
	return math.Max(0, r.Y2-r.Y1)
}

// Area returns the area of the box. Degenerate boxes have zero area.
func (r Rect) Area() float64 {
	return r.Width() * r.Height()
}

// Coords returns the coordinates in (x1, y1, x2, y2) order.
func (r Rect) Coords() [4]float64 {
	return [4]float64{r.X1, r.Y1, r.X2, r.Y2}
}

// IsFinite reports whether every coordinate is a finite number.
func (r Rect) IsFinite() bool {
	for _, c := range r.Coords() {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Scale maps the box onto an image captured at a different resolution.
//
// Coordinates at even positions (x1, x2) are multiplied by xScale and those at
// odd positions (y1, y2) by yScale. Every result is truncated toward zero, the
// same way annotations recorded at one resolution are snapped onto the pixel
// grid of another.
//
// Arguments:
//   - xScale: Horizontal scale factor.
//   - yScale: Vertical scale factor.
//
// Returns:
//   - Rect: The rescaled box with integral coordinates.
//
// Example Usage:
// ```go
//
//	r := Rect{X1: 0, Y1: 0, X2: 5, Y2: 5}
//	r.Scale(2, 2) // Rect{0, 0, 10, 10}
//
// ```
func (r Rect) Scale(xScale, yScale float64) Rect {
	coords := r.Coords()
	for i, c := range coords {
		if i%2 == 0 {
			coords[i] = math.Trunc(c * xScale)
		} else {
			coords[i] = math.Trunc(c * yScale)
		}
	}
	return Rect{X1: coords[0], Y1: coords[1], X2: coords[2], Y2: coords[3]}
}

// ToRectangle converts the box to an image.Rectangle, truncating fractional pixels.
func (r Rect) ToRectangle() image.Rectangle {
	return image.Rect(int(r.X1), int(r.Y1), int(r.X2), int(r.Y2))
}

func (r Rect) String() string {
	return fmt.Sprintf("(%.2f, %.2f), (%.2f, %.2f)", r.X1, r.Y1, r.X2, r.Y2)
}

// CalculateIoU measures how much two boxes overlap as Intersection over Union.
//
// The value is between 0.0 and 1.0:
//
//	- 1.0 means the boxes are identical.
//	- 0.0 means the boxes do not overlap at all (touching edges included).
//
// **1. Intersection**
//
//	The top-left corner of the overlap is the maximum of both top-left corners,
//	the bottom-right corner the minimum of both bottom-right corners. A negative
//	width or height means no overlap, so each side is clamped at zero and the
//	intersection area can never be negative.
//
// **2. Union**
//
//	Area(Union) = Area(A) + Area(B) - Area(Intersection)
//
// **3. Divide**
//
//	If the union is zero (two zero-area boxes) the score is 0 instead of a
//	division by zero.
//
// Arguments:
//   - r: The first box.
//   - o: The other box to compare against.
//
// Returns:
//   - float64: A value between 0.0 and 1.0 representing the IoU score.
//
// Example Usage:
// ```go
//
//	a := Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}
//	b := Rect{X1: 5, Y1: 5, X2: 15, Y2: 15}
//
//	CalculateIoU(a, b) // 25 / 175 = 0.142857
//
// ```
func CalculateIoU(r, o Rect) float64 {
	ix1 := max(r.X1, o.X1)
	iy1 := max(r.Y1, o.Y1)
	ix2 := min(r.X2, o.X2)
	iy2 := min(r.Y2, o.Y2)

	interArea := math.Max(0, ix2-ix1) * math.Max(0, iy2-iy1)

	// Raw products; inverted boxes fall through to the union guard.
	areaR := (r.X2 - r.X1) * (r.Y2 - r.Y1)
	areaO := (o.X2 - o.X1) * (o.Y2 - o.Y1)
	unionArea := areaR + areaO - interArea

	if unionArea <= 0 {
		return 0
	}
	return interArea / unionArea
}
