// Shared helpers for habitgrid CLI commands.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/habitgrid/internal/tracker"
	"github.com/mesh-intelligence/habitgrid/pkg/days"
	"github.com/mesh-intelligence/habitgrid/pkg/sqlite"
	"github.com/mesh-intelligence/habitgrid/pkg/types"
)

// userErrors are the error classes caused by the invocation rather than
// the environment.
var userErrors = []error{
	types.ErrValidation,
	types.ErrNotFound,
	types.ErrInvalidID,
	types.ErrInvalidDay,
	types.ErrBackendEmpty,
	types.ErrBackendUnknown,
	types.ErrSyncStrategyUnknown,
	types.ErrBatchSizeInvalid,
	types.ErrBatchIntervalInvalid,
}

// classify attaches an exit code to an error from the journal or tracker.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return err
	}
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return userError(err)
		}
	}
	return sysError(err)
}

// errorMessage is the line printed to stderr for a failed command.
func errorMessage(err error) string {
	if errors.Is(err, types.ErrStorageUnavailable) {
		return fmt.Sprintf("%v\nThe habit journal could not be opened; check --data-dir and its permissions.", err)
	}
	return err.Error()
}

// session is an attached journal and a tracker over it.
type session struct {
	journal types.Journal
	habits  types.HabitStore
	checks  types.CheckStore
	tracker *tracker.Tracker
}

// open attaches the journal named by the effective configuration. The
// caller must call close. windowSize overrides the configured window when
// positive.
func (a *app) open(windowSize int) (*session, error) {
	cfg, err := a.effectiveConfig()
	if err != nil {
		return nil, classify(err)
	}
	if windowSize <= 0 {
		windowSize = cfg.WindowSize
	}

	journal := sqlite.NewBackend(a.logger)
	if err := journal.Attach(cfg.journalConfig()); err != nil {
		return nil, classify(err)
	}

	t, err := tracker.New(journal, tracker.Options{
		WindowSize: windowSize,
		Now:        a.now,
		Logger:     a.logger,
	})
	if err != nil {
		journal.Detach()
		return nil, classify(err)
	}
	habits, _ := journal.Habits()
	checks, _ := journal.Checks()

	a.logger.Debug("journal opened",
		zap.String("data_dir", cfg.DataDir),
		zap.Int("window_size", windowSize))
	return &session{journal: journal, habits: habits, checks: checks, tracker: t}, nil
}

// close waits for queued writes and detaches the journal.
func (s *session) close() error {
	s.tracker.Close()
	if err := s.journal.Detach(); err != nil {
		return sysError(fmt.Errorf("close journal: %w", err))
	}
	return nil
}

// resolveHabit finds a habit by exact ID, unique ID prefix, or
// case-insensitive name.
func resolveHabit(ctx context.Context, habits types.HabitStore, ref string) (*types.Habit, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, userError(&types.ValidationError{Field: "habit", Reason: "must not be empty"})
	}

	h, err := habits.Get(ctx, ref)
	if err == nil {
		return h, nil
	}
	if !errors.Is(err, types.ErrNotFound) {
		return nil, classify(err)
	}

	list, err := habits.List(ctx)
	if err != nil {
		return nil, classify(err)
	}
	var matches []types.Habit
	for _, h := range list {
		if strings.HasPrefix(h.HabitID, ref) || strings.EqualFold(h.Name, ref) {
			matches = append(matches, h)
		}
	}
	switch len(matches) {
	case 0:
		return nil, userError(fmt.Errorf("habit %q: %w", ref, types.ErrNotFound))
	case 1:
		return &matches[0], nil
	default:
		return nil, userError(fmt.Errorf("habit %q is ambiguous: matches %d habits", ref, len(matches)))
	}
}

// parseDayArg reads an optional day argument. It accepts YYYY-MM-DD,
// "today", and "yesterday"; absent means today.
func (a *app) parseDayArg(args []string, i int) (days.Day, error) {
	today := days.Today(a.now())
	if len(args) <= i {
		return today, nil
	}
	switch strings.ToLower(args[i]) {
	case "today":
		return today, nil
	case "yesterday":
		d, err := today.AddDays(-1)
		if err != nil {
			return "", sysError(err)
		}
		return d, nil
	}
	d, err := days.Parse(args[i])
	if err != nil {
		return "", userError(err)
	}
	return d, nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return sysError(fmt.Errorf("marshal JSON: %w", err))
	}
	fmt.Fprintln(w, string(out))
	return nil
}
