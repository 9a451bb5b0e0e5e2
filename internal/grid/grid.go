// Package grid projects habits and their completion facts onto a window of
// calendar days. It owns no state: every call reads the stores afresh.
package grid

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/habitgrid/pkg/days"
	"github.com/mesh-intelligence/habitgrid/pkg/types"
)

// DefaultConcurrency bounds how many habits load their ranges at once.
const DefaultConcurrency = 4

// HabitLister is the part of types.HabitStore the projector reads.
type HabitLister interface {
	List(ctx context.Context) ([]types.Habit, error)
}

// RangeLoader is the part of types.CheckStore the projector reads.
type RangeLoader interface {
	RangeForHabit(ctx context.Context, habitID string, from, to days.Day) (days.Set, error)
}

// Cell is one (habit, day) position in the grid. Inactive cells fall
// before the habit's created day and are never checked.
type Cell struct {
	Day     days.Day `json:"day"`
	Active  bool     `json:"active"`
	Checked bool     `json:"checked"`
}

// Row holds one habit and a cell per window day.
type Row struct {
	Habit types.Habit `json:"habit"`
	Cells []Cell      `json:"cells"`
	// Completed counts every fact from the created day through the last
	// window day, including days scrolled out of the window.
	Completed int `json:"completed"`
}

// Grid is the projected view. Today is the last window day, or empty when
// the window is empty.
type Grid struct {
	Window []days.Day `json:"window"`
	Today  days.Day   `json:"today"`
	Rows   []Row      `json:"rows"`
}

// Projector builds grids with a bounded number of concurrent range loads.
type Projector struct {
	concurrency int
}

// Option configures a Projector.
type Option func(*Projector)

// WithConcurrency sets how many habits load at once. Values below 1 mean
// DefaultConcurrency.
func WithConcurrency(n int) Option {
	return func(p *Projector) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// NewProjector returns a Projector with the given options applied.
func NewProjector(opts ...Option) *Projector {
	p := &Projector{concurrency: DefaultConcurrency}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Project builds the grid with default options.
func Project(ctx context.Context, window []days.Day, habits HabitLister, checks RangeLoader) (Grid, error) {
	return NewProjector().Project(ctx, window, habits, checks)
}

// Project lists habits and issues one RangeForHabit per habit covering
// [created, last window day]. Rows keep List order.
func (p *Projector) Project(ctx context.Context, window []days.Day, habits HabitLister, checks RangeLoader) (Grid, error) {
	g := Grid{
		Window: append([]days.Day{}, window...),
		Rows:   []Row{},
	}
	if len(window) > 0 {
		g.Today = window[len(window)-1]
	}

	list, err := habits.List(ctx)
	if err != nil {
		return Grid{}, fmt.Errorf("listing habits: %w", err)
	}
	if len(list) == 0 {
		return g, nil
	}

	rows := make([]Row, len(list))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.concurrency)
	for i, h := range list {
		i, h := i, h
		eg.Go(func() error {
			row, err := projectRow(egCtx, g.Window, h, checks)
			if err != nil {
				return err
			}
			rows[i] = row
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Grid{}, err
	}

	g.Rows = rows
	return g, nil
}

func projectRow(ctx context.Context, window []days.Day, h types.Habit, checks RangeLoader) (Row, error) {
	row := Row{Habit: h, Cells: make([]Cell, len(window))}
	for i, d := range window {
		row.Cells[i] = Cell{Day: d, Active: h.ActiveOn(d)}
	}
	if len(window) == 0 {
		return row, nil
	}

	last := window[len(window)-1]
	if last.Before(h.Created) {
		return row, nil
	}

	set, err := checks.RangeForHabit(ctx, h.HabitID, h.Created, last)
	if err != nil {
		return Row{}, fmt.Errorf("loading checks for habit %s: %w", h.HabitID, err)
	}
	row.Completed = set.Len()
	for i := range row.Cells {
		if row.Cells[i].Active {
			row.Cells[i].Checked = set.Has(row.Cells[i].Day)
		}
	}
	return row, nil
}

// ActiveDays returns the number of active cells in the row.
func (r Row) ActiveDays() int {
	n := 0
	for _, c := range r.Cells {
		if c.Active {
			n++
		}
	}
	return n
}

// Cell returns the cell for d and whether d is in the row.
func (r Row) Cell(d days.Day) (Cell, bool) {
	for _, c := range r.Cells {
		if c.Day == d {
			return c, true
		}
	}
	return Cell{}, false
}

// Row returns the row for habitID and whether it exists.
func (g Grid) Row(habitID string) (Row, bool) {
	for _, r := range g.Rows {
		if r.Habit.HabitID == habitID {
			return r, true
		}
	}
	return Row{}, false
}

// Contains reports whether d is one of the window days.
func (g Grid) Contains(d days.Day) bool {
	if len(g.Window) == 0 {
		return false
	}
	return !d.Before(g.Window[0]) && !g.Window[len(g.Window)-1].Before(d)
}
