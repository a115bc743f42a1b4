package concurrency_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/ipcdrop/api"
	"github.com/momentics/ipcdrop/internal/concurrency"
)

func TestSignal_OrdersTasksWithoutYields(t *testing.T) {
	rt := concurrency.NewRuntime(concurrency.Options{})
	ready := concurrency.NewSignal()
	var order []string

	err := rt.BlockOn(func(tc api.TaskContext) error {
		tc.Spawn("producer", func(tc api.TaskContext) error {
			order = append(order, "producer")
			ready.Fire()
			return nil
		})
		if err := ready.Wait(tc); err != nil {
			return err
		}
		order = append(order, "main")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"producer", "main"}, order)
}

func TestSignal_FailPropagates(t *testing.T) {
	rt := concurrency.NewRuntime(concurrency.Options{})
	sig := concurrency.NewSignal()
	sentinel := errors.New("bind failed")

	err := rt.BlockOn(func(tc api.TaskContext) error {
		tc.Spawn("failer", func(api.TaskContext) error {
			sig.Fail(sentinel)
			return sentinel
		})
		return sig.Wait(tc)
	})
	require.ErrorIs(t, err, sentinel)
	assert.True(t, sig.Fired())
	assert.ErrorIs(t, sig.Err(), sentinel)
}

func TestSignal_FiresOnce(t *testing.T) {
	sig := concurrency.NewSignal()
	assert.False(t, sig.Fired())
	assert.NoError(t, sig.Err())
	sig.Fire()
	sig.Fail(errors.New("ignored"))
	assert.True(t, sig.Fired())
	assert.NoError(t, sig.Err())
	<-sig.Done()
}
