package tracker

import (
	"context"

	"github.com/mesh-intelligence/habitgrid/internal/grid"
	"github.com/mesh-intelligence/habitgrid/pkg/days"
)

// Result describes a write that committed and the grid rendered after it.
type Result struct {
	HabitID string
	Day     days.Day // Empty for habit-level operations.
	Checked bool
	Grid    grid.Grid
}

// Pending is the completion handle of an asynchronous write. It resolves
// exactly once, after the write committed and the grid was re-projected,
// or with the error that stopped it.
type Pending struct {
	done chan struct{}
	res  Result
	err  error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

// failed returns a Pending that has already resolved with err.
func failed(err error) *Pending {
	p := newPending()
	p.resolve(Result{}, err)
	return p
}

func (p *Pending) resolve(res Result, err error) {
	p.res, p.err = res, err
	close(p.done)
}

// Done is closed once the result is available.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the write resolves or ctx is done. Abandoning the
// wait does not cancel the write.
func (p *Pending) Wait(ctx context.Context) (Result, error) {
	select {
	case <-p.done:
		return p.res, p.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
