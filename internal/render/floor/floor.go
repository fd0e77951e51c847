// Package floor draws a top-down terminal view of the floor: walls, portals and
// the agents of the most recent tick.
package floor

import (
	"fmt"
	"math"

	"github.com/gdamore/tcell/v2"

	"github.com/steve-haar/door-simulator/internal/observerproto"
	"github.com/steve-haar/door-simulator/internal/sim/geom"
)

const (
	RuneWall    = '#'
	RuneAgent   = '@'
	RuneOutside = 'o'
)

var (
	StyleDefault = tcell.StyleDefault
	StyleWall    = tcell.StyleDefault.Foreground(tcell.ColorGray)
	StylePortal  = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	StyleAgent   = tcell.StyleDefault.Foreground(tcell.ColorLightGreen)
	StyleLeaving = tcell.StyleDefault.Foreground(tcell.ColorLightSkyBlue)
	StyleStatus  = tcell.StyleDefault.Reverse(true)
)

// Projection maps the square [-Extent, Extent] of the ground plane onto a grid
// of Cols x Rows cells. North (-Z) is the top row.
type Projection struct {
	Extent float64
	Cols   int
	Rows   int
}

// Cell returns the grid cell containing pos. ok is false outside the grid.
func (p Projection) Cell(pos geom.Vec2) (col, row int, ok bool) {
	if p.Cols <= 0 || p.Rows <= 0 || p.Extent <= 0 || !pos.Finite() {
		return 0, 0, false
	}
	col, okX := axis(pos.X, p.Extent, p.Cols)
	row, okZ := axis(pos.Z, p.Extent, p.Rows)
	return col, row, okX && okZ
}

func axis(v, extent float64, n int) (int, bool) {
	if v < -extent || v > extent {
		return 0, false
	}
	i := int(math.Floor((v + extent) / (2 * extent) * float64(n)))
	if i == n {
		i = n - 1
	}
	return i, true
}

// CellSize is the ground distance covered by one column.
func (p Projection) CellSize() float64 {
	if p.Cols <= 0 {
		return 0
	}
	return 2 * p.Extent / float64(p.Cols)
}

// ExtentFor is the half-size of the area worth drawing: the floor plus the
// staging and exit points outside it.
func ExtentFor(b observerproto.BootstrapResponse) float64 {
	e := b.WorldParams.FloorSize / 2
	for _, p := range b.Portals {
		for _, pt := range []geom.Vec2{p.StagingPoint(), p.ExitPoint()} {
			e = math.Max(e, math.Max(math.Abs(pt.X), math.Abs(pt.Z)))
		}
	}
	return e + 1
}

// Draw clears screen and renders the scene. The bottom row is a status line.
// tick may be nil before the first tick arrives.
func Draw(s tcell.Screen, b observerproto.BootstrapResponse, tick *observerproto.TickMsg) {
	s.Clear()
	w, h := s.Size()
	if w <= 0 || h <= 1 {
		return
	}
	proj := Projection{Extent: ExtentFor(b), Cols: w, Rows: h - 1}

	step := proj.CellSize() / 2
	for _, seg := range b.Walls {
		n := int(math.Ceil(seg.Length()/step)) + 1
		dir := seg.To.Sub(seg.From)
		for i := 0; i <= n; i++ {
			pt := seg.From.Add(dir.Scale(float64(i) / float64(n)))
			if x, y, ok := proj.Cell(pt); ok {
				s.SetContent(x, y, RuneWall, nil, StyleWall)
			}
		}
	}

	for i, p := range b.Portals {
		if x, y, ok := proj.Cell(p.Position); ok {
			s.SetContent(x, y, portalRune(i), nil, StylePortal)
		}
	}

	if tick != nil {
		for _, a := range tick.Agents {
			x, y, ok := proj.Cell(a.Pos)
			if !ok {
				continue
			}
			r, st := RuneAgent, StyleAgent
			if a.PathLen == 1 {
				st = StyleLeaving
			}
			if a.Outside {
				r = RuneOutside
			}
			s.SetContent(x, y, r, nil, st)
		}
	}

	drawText(s, 0, h-1, w, StatusLine(tick), StyleStatus)
}

// StatusLine summarises a tick for the bottom row.
func StatusLine(tick *observerproto.TickMsg) string {
	if tick == nil {
		return " waiting for first tick"
	}
	return fmt.Sprintf(" tick %d  t=%.1fs  agents %d  rate %.0f/min  speed %.1f  wall %.1f",
		tick.Tick, tick.Elapsed, len(tick.Agents),
		tick.Params.RatePerMinute, tick.Params.SpeedUnitsPerSec, tick.Params.WallHeight)
}

func portalRune(i int) rune {
	if i < 9 {
		return rune('1' + i)
	}
	return '+'
}

func drawText(s tcell.Screen, x, y, maxW int, text string, st tcell.Style) {
	col := x
	for _, r := range text {
		if col >= x+maxW {
			return
		}
		s.SetContent(col, y, r, nil, st)
		col++
	}
	for ; col < x+maxW; col++ {
		s.SetContent(col, y, ' ', nil, st)
	}
}
