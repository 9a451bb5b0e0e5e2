// Package tracker drives habit writes and re-renders the grid only after
// each write has been confirmed by the journal.
//
// Writes to the same (habit, day) key run strictly in issue order, so the
// last request wins both in storage and on screen. Writes to different keys
// run independently. Deleting a habit waits for every queued write of that
// habit and holds back later ones until it finishes.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/habitgrid/internal/grid"
	"github.com/mesh-intelligence/habitgrid/pkg/days"
	"github.com/mesh-intelligence/habitgrid/pkg/types"
)

// DefaultWindowSize is the number of trailing days shown, including today.
const DefaultWindowSize = 30

// ErrClosed is returned by operations issued after Close.
var ErrClosed = errors.New("tracker is closed")

// Options configures a Tracker. Zero values select defaults.
type Options struct {
	WindowSize  int
	Now         func() time.Time
	Logger      *zap.Logger
	Concurrency int
	// OnRender receives every grid rendered after a successful write, in
	// the order the renders complete.
	OnRender func(grid.Grid)
}

// key identifies a write queue. An empty day is the habit-wide queue used
// by deletes.
type key struct {
	habitID string
	day     days.Day
}

// Tracker serializes writes per key and renders after each commit.
type Tracker struct {
	habits     types.HabitStore
	checks     types.CheckStore
	projector  *grid.Projector
	windowSize int
	now        func() time.Time
	logger     *zap.Logger
	onRender   func(grid.Grid)

	mu     sync.Mutex
	tails  map[key]chan struct{}
	halted error
	closed bool
	wg     sync.WaitGroup

	renderMu sync.Mutex
}

// New resolves both stores from an attached journal. If either cannot be
// obtained the result is a *types.StorageUnavailableError and no tracker.
func New(journal types.Journal, opts Options) (*Tracker, error) {
	habits, err := journal.Habits()
	if err != nil {
		return nil, unavailable(err)
	}
	checks, err := journal.Checks()
	if err != nil {
		return nil, unavailable(err)
	}

	t := &Tracker{
		habits:     habits,
		checks:     checks,
		projector:  grid.NewProjector(grid.WithConcurrency(opts.Concurrency)),
		windowSize: opts.WindowSize,
		now:        opts.Now,
		logger:     opts.Logger,
		onRender:   opts.OnRender,
		tails:      make(map[key]chan struct{}),
	}
	if t.windowSize <= 0 {
		t.windowSize = DefaultWindowSize
	}
	if t.now == nil {
		t.now = time.Now
	}
	if t.logger == nil {
		t.logger = zap.NewNop()
	}
	return t, nil
}

func unavailable(err error) error {
	var sue *types.StorageUnavailableError
	if errors.As(err, &sue) {
		return sue
	}
	return &types.StorageUnavailableError{Err: err}
}

// Window returns the days currently shown, oldest first.
func (t *Tracker) Window() []days.Day {
	return days.Window(t.windowSize, t.now())
}

// Grid projects the current window without writing anything.
func (t *Tracker) Grid(ctx context.Context) (grid.Grid, error) {
	if err := t.usable(); err != nil {
		return grid.Grid{}, err
	}
	return t.project(ctx)
}

// AddHabit creates a habit whose first active day is today. An empty name
// is rejected before any store call.
func (t *Tracker) AddHabit(ctx context.Context, name string) *Pending {
	name, err := types.NormalizeName(name)
	if err != nil {
		return failed(err)
	}
	return t.enqueue(ctx, nil, func(ctx context.Context) (Result, error) {
		created := days.Today(t.now())
		id, err := t.habits.Add(ctx, name, created)
		if err != nil {
			t.logWriteError("add habit", "", "", err)
			return Result{}, err
		}
		t.logger.Debug("habit added", zap.String("habit_id", id), zap.String("created", created.String()))
		return Result{HabitID: id}, nil
	})
}

// Toggle sets whether habitID is completed on day. The day must fall
// inside the current window and on or after the habit's created day.
func (t *Tracker) Toggle(ctx context.Context, habitID string, day days.Day, checked bool) *Pending {
	if habitID == "" {
		return failed(&types.ValidationError{Field: "habit_id", Reason: "must not be empty"})
	}
	if _, err := days.Parse(string(day)); err != nil {
		return failed(&types.ValidationError{Field: "day", Reason: err.Error()})
	}
	window := t.Window()
	if len(window) == 0 || day.Before(window[0]) || window[len(window)-1].Before(day) {
		return failed(&types.ValidationError{Field: "day", Reason: fmt.Sprintf("%s is outside the visible window", day)})
	}

	k := key{habitID: habitID, day: day}
	return t.enqueue(ctx, []key{k}, func(ctx context.Context) (Result, error) {
		h, err := t.habits.Get(ctx, habitID)
		if errors.Is(err, types.ErrNotFound) {
			return Result{}, &types.ValidationError{Field: "habit_id", Reason: fmt.Sprintf("no habit %s", habitID)}
		}
		if err != nil {
			return Result{}, err
		}
		if !h.ActiveOn(day) {
			return Result{}, &types.ValidationError{Field: "day", Reason: fmt.Sprintf("%s is before the habit was created on %s", day, h.Created)}
		}

		if err := t.checks.SetChecked(ctx, habitID, day, checked); err != nil {
			t.logWriteError("toggle", habitID, day, err)
			return Result{}, err
		}
		t.logger.Debug("check set",
			zap.String("habit_id", habitID),
			zap.String("day", day.String()),
			zap.Bool("checked", checked))
		return Result{HabitID: habitID, Day: day, Checked: checked}, nil
	})
}

// DeleteHabit removes the habit and then all of its completion facts. The
// grid is rendered once both have been confirmed.
func (t *Tracker) DeleteHabit(ctx context.Context, habitID string) *Pending {
	if habitID == "" {
		return failed(&types.ValidationError{Field: "habit_id", Reason: "must not be empty"})
	}
	k := key{habitID: habitID}
	return t.enqueue(ctx, []key{k}, func(ctx context.Context) (Result, error) {
		if err := t.habits.Delete(ctx, habitID); err != nil {
			t.logWriteError("delete habit", habitID, "", err)
			return Result{}, err
		}
		if err := t.checks.DeleteAllForHabit(ctx, habitID); err != nil {
			t.logWriteError("delete checks", habitID, "", err)
			return Result{}, err
		}
		t.logger.Debug("habit deleted", zap.String("habit_id", habitID))
		return Result{HabitID: habitID}, nil
	})
}

// Close stops accepting writes and waits for the queued ones to finish.
// It does not detach the journal.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.wg.Wait()
}

// Halted returns the fatal error that stopped the tracker, if any.
func (t *Tracker) Halted() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.halted
}

func (t *Tracker) usable() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.usableLocked()
}

func (t *Tracker) usableLocked() error {
	if t.halted != nil {
		return t.halted
	}
	if t.closed {
		return ErrClosed
	}
	return nil
}

// halt records a fatal store error; every later call fails with it.
func (t *Tracker) halt(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.halted != nil {
		return
	}
	t.halted = unavailable(err)
	t.logger.Error("storage unavailable, halting", zap.Error(err))
}

// enqueue runs write after every earlier write that shares a queue with
// it, then renders. A nil keys slice means the write has no ordering
// constraints.
func (t *Tracker) enqueue(ctx context.Context, keys []key, write func(context.Context) (Result, error)) *Pending {
	t.mu.Lock()
	if err := t.usableLocked(); err != nil {
		t.mu.Unlock()
		return failed(err)
	}

	deps, done := t.claimLocked(keys)
	t.wg.Add(1)
	t.mu.Unlock()

	p := newPending()
	go func() {
		defer t.wg.Done()
		defer t.release(keys, done)

		for i, dep := range deps {
			select {
			case <-dep:
			case <-ctx.Done():
				p.resolve(Result{}, ctx.Err())
				// Later writes on these keys still wait for ours.
				for _, rest := range deps[i:] {
					<-rest
				}
				return
			}
		}

		res, err := t.run(ctx, write)
		p.resolve(res, err)
	}()
	return p
}

// claimLocked collects the channels this write must wait for and installs
// its own completion channel as the new tail. t.mu must be held.
func (t *Tracker) claimLocked(keys []key) ([]chan struct{}, chan struct{}) {
	if len(keys) == 0 {
		return nil, nil
	}
	done := make(chan struct{})
	var deps []chan struct{}
	for _, k := range keys {
		if k.day == "" {
			// Habit-wide: wait for every queued write of this habit.
			for other, ch := range t.tails {
				if other.habitID == k.habitID {
					deps = append(deps, ch)
				}
			}
		} else {
			if ch, ok := t.tails[k]; ok {
				deps = append(deps, ch)
			}
			if ch, ok := t.tails[key{habitID: k.habitID}]; ok {
				deps = append(deps, ch)
			}
		}
		t.tails[k] = done
	}
	return deps, done
}

func (t *Tracker) release(keys []key, done chan struct{}) {
	if done == nil {
		return
	}
	close(done)
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, k := range keys {
		if t.tails[k] == done {
			delete(t.tails, k)
		}
	}
}

// run performs the write and, only once it has committed, projects the
// grid and hands it to OnRender.
func (t *Tracker) run(ctx context.Context, write func(context.Context) (Result, error)) (Result, error) {
	// Writes queued before Close still run; a halt stops them.
	if err := t.Halted(); err != nil {
		return Result{}, err
	}

	res, err := write(ctx)
	if err != nil {
		if types.IsFatal(err) {
			t.halt(err)
			return Result{}, t.Halted()
		}
		return Result{}, err
	}

	t.renderMu.Lock()
	defer t.renderMu.Unlock()
	g, err := t.project(ctx)
	if err != nil {
		return res, fmt.Errorf("rendering after write: %w", err)
	}
	res.Grid = g
	if t.onRender != nil {
		t.onRender(g)
	}
	return res, nil
}

func (t *Tracker) project(ctx context.Context) (grid.Grid, error) {
	g, err := t.projector.Project(ctx, t.Window(), t.habits, t.checks)
	if err != nil {
		if types.IsFatal(err) {
			t.halt(err)
			return grid.Grid{}, t.Halted()
		}
		return grid.Grid{}, err
	}
	return g, nil
}

func (t *Tracker) logWriteError(op, habitID string, day days.Day, err error) {
	if !errors.Is(err, types.ErrWriteFailed) {
		return
	}
	t.logger.Error("write failed",
		zap.String("op", op),
		zap.String("habit_id", habitID),
		zap.String("day", day.String()),
		zap.Error(err))
}
