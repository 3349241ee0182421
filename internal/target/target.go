package target

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arach/vif-sub000/internal/scene"
)

// ErrTargetNotFound is returned when a view or item cannot be resolved.
var ErrTargetNotFound = errors.New("target: not found")

// Bounds is the app window rectangle on screen.
type Bounds struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Point is an absolute screen point.
type Point struct {
	X float64
	Y float64
}

// CenteredBounds estimates the window rectangle when the window manager did
// not report one: the window is assumed centred on the screen.
func CenteredBounds(screen, window scene.Size) Bounds {
	return Bounds{
		X:      float64(screen.Width-window.Width) / 2,
		Y:      float64(screen.Height-window.Height) / 2,
		Width:  float64(window.Width),
		Height: float64(window.Height),
	}
}

// Resolver maps scene coordinates to the screen. The zero value has no
// bounds and passes coordinates through unchanged.
type Resolver struct {
	bounds *Bounds
	offset scene.Point
	screen scene.Size
	views  map[string]scene.View
}

// NewResolver creates a Resolver for the given views and target offset.
// screen is used for percentages before bounds are known.
func NewResolver(views map[string]scene.View, offset scene.Point, screen scene.Size) *Resolver {
	return &Resolver{views: views, offset: offset, screen: screen}
}

// SetBounds records the app window rectangle.
func (r *Resolver) SetBounds(b Bounds) {
	r.bounds = &b
}

// Bounds returns the app window rectangle, or nil before stage setup.
func (r *Resolver) Bounds() *Bounds {
	return r.bounds
}

// ResolveCoordinates returns the screen point for (x, y).
//
// Without bounds the pair is absolute. With bounds, a pair inside the window's
// extent (x < width and y < height) is window-relative and shifted by the
// window origin plus the target offset; anything else is absolute. An
// absolute point that happens to fall inside the extent resolves as relative.
func (r *Resolver) ResolveCoordinates(x, y float64) Point {
	if r.bounds == nil {
		return Point{X: x, Y: y}
	}
	if x < r.bounds.Width && y < r.bounds.Height {
		return Point{
			X: r.bounds.X + r.offset.X + x,
			Y: r.bounds.Y + r.offset.Y + y,
		}
	}
	return Point{X: x, Y: y}
}

// ResolveViewTarget resolves "view.item" to a screen point.
//
// The view's Items are checked first and go through ResolveCoordinates.
// Positions come next; they are always window-relative, with percentages
// taken of the window size, so they are shifted by the window origin and
// the target offset without the extent check. Before bounds are known a
// position is taken against the screen.
func (r *Resolver) ResolveViewTarget(ref string) (Point, error) {
	viewName, item, ok := strings.Cut(ref, ".")
	if !ok || viewName == "" || item == "" {
		return Point{}, fmt.Errorf("%w: %q is not view.item", ErrTargetNotFound, ref)
	}

	view, ok := r.views[viewName]
	if !ok {
		return Point{}, fmt.Errorf("%w: view %q", ErrTargetNotFound, viewName)
	}

	if p, ok := view.Items[item]; ok {
		return r.ResolveCoordinates(p.X, p.Y), nil
	}
	if pos, ok := view.Positions[item]; ok {
		return r.resolvePosition(pos), nil
	}

	return Point{}, fmt.Errorf("%w: %q in view %q", ErrTargetNotFound, item, viewName)
}

func (r *Resolver) resolvePosition(pos scene.Position) Point {
	if r.bounds == nil {
		return Point{
			X: pos.X.Resolve(float64(r.screen.Width)),
			Y: pos.Y.Resolve(float64(r.screen.Height)),
		}
	}
	b := r.bounds
	return Point{
		X: b.X + r.offset.X + pos.X.Resolve(b.Width),
		Y: b.Y + r.offset.Y + pos.Y.Resolve(b.Height),
	}
}

// Viewport pads b by padding points on every side.
func Viewport(b Bounds, padding int) Bounds {
	p := float64(padding)
	return Bounds{
		X:      b.X - p,
		Y:      b.Y - p,
		Width:  b.Width + 2*p,
		Height: b.Height + 2*p,
	}
}
