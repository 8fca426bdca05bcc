package core

import "fmt"

type Color struct {
	R, G, B, A float32
}

var (
	ColorWhite       = Color{1, 1, 1, 1}
	ColorBlack       = Color{0, 0, 0, 1}
	ColorTransparent = Color{0, 0, 0, 0}
)

// Size is a render size in pixels.
type Size struct {
	W, H int
}

func (s Size) IsZero() bool {
	return s.W <= 0 || s.H <= 0
}

func (s Size) Area() int {
	if s.IsZero() {
		return 0
	}
	return s.W * s.H
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.W, s.H)
}

type Rect struct {
	X, Y, Width, Height int
}
