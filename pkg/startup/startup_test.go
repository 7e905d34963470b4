package startup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStartup(maxAttempts int) *Startup {
	s := NewStartup(ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}), maxAttempts)
	s.backoffUnit = time.Millisecond
	return s
}

func TestStart(t *testing.T) {
	t.Run("should start requirements first", func(t *testing.T) {
		started := []string{}
		record := func(name string) func(context.Context) error {
			return func(context.Context) error {
				started = append(started, name)
				return nil
			}
		}

		s := newTestStartup(1)
		s.AddDependency(Func{Name: "api", Requires: []string{"database", "search"}, StartFn: record("api")})
		s.AddDependency(Func{Name: "search", StartFn: record("search")})
		s.AddDependency(Func{Name: "database", StartFn: record("database")})

		require.NoError(t, s.Start(context.Background()))
		assert.Equal(t, []string{"database", "search", "api"}, started)
		assert.Equal(t, StatusStarted, s.Status("api"))
	})

	t.Run("should retry failed dependencies", func(t *testing.T) {
		calls := 0
		s := newTestStartup(3)
		s.AddDependency(Func{Name: "search", StartFn: func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("connection refused")
			}
			return nil
		}})

		require.NoError(t, s.Start(context.Background()))
		assert.Equal(t, 3, calls)
	})

	t.Run("should give up after the last attempt", func(t *testing.T) {
		s := newTestStartup(2)
		s.AddDependency(Func{Name: "cache", StartFn: func(context.Context) error { return errors.New("no route to host") }})

		err := s.Start(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "after 2 attempts")
		assert.Contains(t, err.Error(), "no route to host")
		assert.Equal(t, StatusFailed, s.Status("cache"))
	})

	t.Run("should reject unknown requirements", func(t *testing.T) {
		s := newTestStartup(1)
		s.AddDependency(Func{Name: "api", Requires: []string{"queue"}})

		err := s.Start(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown dependency 'queue'")
	})

	t.Run("should detect cycles", func(t *testing.T) {
		s := newTestStartup(1)
		s.AddDependency(Func{Name: "a", Requires: []string{"b"}})
		s.AddDependency(Func{Name: "b", Requires: []string{"a"}})

		err := s.Start(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cycle")
	})
}

func TestStop(t *testing.T) {
	t.Run("should stop started dependencies in reverse order", func(t *testing.T) {
		stopped := []string{}
		stop := func(name string) func(context.Context) error {
			return func(context.Context) error {
				stopped = append(stopped, name)
				return nil
			}
		}

		s := newTestStartup(1)
		s.AddDependency(Func{Name: "database", StopFn: stop("database")})
		s.AddDependency(Func{Name: "api", Requires: []string{"database"}, StopFn: stop("api")})

		require.NoError(t, s.Start(context.Background()))
		require.NoError(t, s.Stop(context.Background()))
		assert.Equal(t, []string{"api", "database"}, stopped)
		assert.Equal(t, StatusStopped, s.Status("database"))
	})
}
