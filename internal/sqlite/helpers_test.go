package sqlite

import (
	"bufio"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/habitgrid/pkg/days"
	"github.com/mesh-intelligence/habitgrid/pkg/types"
)

// setupBackend creates an attached Backend in a temp dir and detaches it
// when the test ends.
func setupBackend(t *testing.T) *Backend {
	t.Helper()
	b := NewBackend()
	config := types.Config{
		Backend: types.BackendSQLite,
		DataDir: t.TempDir(),
	}
	require.NoError(t, b.Attach(config))
	t.Cleanup(func() { b.Detach() })
	return b
}

// stores returns both stores of an attached backend.
func stores(t *testing.T, b *Backend) (types.HabitStore, types.CheckStore) {
	t.Helper()
	habits, err := b.Habits()
	require.NoError(t, err)
	checks, err := b.Checks()
	require.NoError(t, err)
	return habits, checks
}

func dayOf(s string) days.Day {
	return days.Day(s)
}

// countLines returns the number of non-empty lines in path.
func countLines(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if len(sc.Bytes()) > 0 {
			n++
		}
	}
	require.NoError(t, sc.Err())
	return n
}

// mustTime returns local noon on the given day.
func mustTime(t *testing.T, d string) time.Time {
	t.Helper()
	midnight, err := days.Day(d).Time(time.Local)
	require.NoError(t, err)
	return midnight.Add(12 * time.Hour)
}
