package tracker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/mesh-intelligence/habitgrid/pkg/days"
	"github.com/mesh-intelligence/habitgrid/pkg/types"
)

// memJournal is an in-memory journal serving both stores. Every store
// call is counted so tests can assert that validation ran first.
type memJournal struct {
	mu     sync.Mutex
	habits []types.Habit
	facts  map[string]days.Set
	nextID int
	setLog []bool

	calls     atomic.Int32
	setErr    error
	habitsErr error
	beforeSet func(habitID string, day days.Day, value bool)
}

var (
	_ types.Journal    = (*memJournal)(nil)
	_ types.HabitStore = (*memJournal)(nil)
	_ types.CheckStore = (*memJournal)(nil)
)

func newMemJournal() *memJournal {
	return &memJournal{facts: make(map[string]days.Set)}
}

func (m *memJournal) seedHabit(id, name string, created days.Day) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.habits = append(m.habits, types.Habit{HabitID: id, Name: name, Created: created, Position: int64(m.nextID)})
}

func (m *memJournal) has(habitID string, day days.Day) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.facts[habitID].Has(day)
}

func (m *memJournal) log() []bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]bool{}, m.setLog...)
}

func (m *memJournal) Attach(types.Config) error { return nil }
func (m *memJournal) Detach() error             { return nil }

func (m *memJournal) Habits() (types.HabitStore, error) {
	if m.habitsErr != nil {
		return nil, m.habitsErr
	}
	return m, nil
}

func (m *memJournal) Checks() (types.CheckStore, error) { return m, nil }

func (m *memJournal) Add(_ context.Context, name string, created days.Day) (string, error) {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := fmt.Sprintf("h%d", m.nextID)
	m.habits = append(m.habits, types.Habit{HabitID: id, Name: name, Created: created, Position: int64(m.nextID)})
	return id, nil
}

func (m *memJournal) Get(_ context.Context, id string) (*types.Habit, error) {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.habits {
		if h.HabitID == id {
			return &h, nil
		}
	}
	return nil, types.ErrNotFound
}

func (m *memJournal) List(context.Context) ([]types.Habit, error) {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.Habit{}, m.habits...), nil
}

func (m *memJournal) Delete(_ context.Context, id string) error {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, h := range m.habits {
		if h.HabitID == id {
			m.habits = append(m.habits[:i], m.habits[i+1:]...)
			break
		}
	}
	return nil
}

func (m *memJournal) IsChecked(_ context.Context, habitID string, day days.Day) (bool, error) {
	m.calls.Add(1)
	return m.has(habitID, day), nil
}

func (m *memJournal) SetChecked(_ context.Context, habitID string, day days.Day, value bool) error {
	m.calls.Add(1)
	if m.beforeSet != nil {
		m.beforeSet(habitID, day, value)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.setLog = append(m.setLog, value)
	set, ok := m.facts[habitID]
	if !ok {
		set = days.NewSet()
		m.facts[habitID] = set
	}
	if value {
		set.Add(day)
	} else {
		delete(set, day)
	}
	return nil
}

func (m *memJournal) RangeForHabit(_ context.Context, habitID string, from, to days.Day) (days.Set, error) {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	out := days.NewSet()
	for d := range m.facts[habitID] {
		if !d.Before(from) && !to.Before(d) {
			out.Add(d)
		}
	}
	return out, nil
}

func (m *memJournal) DeleteAllForHabit(_ context.Context, habitID string) error {
	m.calls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.facts, habitID)
	return nil
}
