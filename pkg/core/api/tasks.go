package api

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/rightsgod-hub/openclaw-deploy/pkg/logger"
)

// TaskRegistry supervises fire-and-forget background work. Every task is
// observed: its error (or panic) lands in the log, never on a caller, and
// Wait lets shutdown and tests drain in-flight tasks.
type TaskRegistry struct {
	logger logger.Logger
	wg     sync.WaitGroup
}

// NewTaskRegistry creates an empty registry.
func NewTaskRegistry(log logger.Logger) *TaskRegistry {
	return &TaskRegistry{logger: log}
}

// Go runs fn on a background goroutine with a fresh context, detached from
// the request that scheduled it. Returns the task id.
func (r *TaskRegistry) Go(name string, fn func(ctx context.Context) error) string {
	id := uuid.NewString()

	r.wg.Add(1)

	go func() {
		defer r.wg.Done()

		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error().
					Str("task", name).
					Str("task_id", id).
					Str("panic", fmt.Sprint(rec)).
					Msg("background task panicked")
			}
		}()

		if err := fn(context.Background()); err != nil {
			r.logger.Error().Err(err).Str("task", name).Str("task_id", id).
				Msg("background task failed")

			return
		}

		r.logger.Debug().Str("task", name).Str("task_id", id).Msg("background task finished")
	}()

	return id
}

// Wait blocks until all scheduled tasks have finished.
func (r *TaskRegistry) Wait() {
	r.wg.Wait()
}
