package api

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rightsgod-hub/openclaw-deploy/pkg/logger"
)

func TestTaskRegistryRunsAndWaits(t *testing.T) {
	reg := NewTaskRegistry(logger.NewTestLogger())

	var ran atomic.Int32

	id := reg.Go("count", func(context.Context) error {
		ran.Add(1)
		return nil
	})

	assert.NotEmpty(t, id)

	reg.Wait()
	assert.Equal(t, int32(1), ran.Load())
}

func TestTaskRegistrySwallowsErrors(t *testing.T) {
	reg := NewTaskRegistry(logger.NewTestLogger())

	reg.Go("fails", func(context.Context) error {
		return errors.New("boom")
	})

	// Wait must still return; the error is logged, not propagated.
	reg.Wait()
}

func TestTaskRegistryRecoversPanics(t *testing.T) {
	reg := NewTaskRegistry(logger.NewTestLogger())

	reg.Go("panics", func(context.Context) error {
		panic("unexpected state")
	})

	reg.Wait()

	// The registry stays usable after a panicked task.
	var ran atomic.Bool

	reg.Go("after", func(context.Context) error {
		ran.Store(true)
		return nil
	})

	reg.Wait()
	assert.True(t, ran.Load())
}
