package core

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudgetTrackerCharge(t *testing.T) {
	t.Run("accumulates cost across charges", func(t *testing.T) {
		tracker := NewBudgetTracker(1.0, DefaultRates())

		cost1, exceeded := tracker.Charge(4000, 4000)
		assert.False(t, exceeded)
		assert.Greater(t, cost1, 0.0)

		cost2, exceeded := tracker.Charge(4000, 4000)
		assert.False(t, exceeded)
		assert.InDelta(t, 2*cost1, cost2, 1e-12)
		assert.InDelta(t, cost2, tracker.CostEUR(), 1e-12)
	})

	t.Run("reports ceiling crossing exactly once charged", func(t *testing.T) {
		tracker := NewBudgetTracker(0.000001, DefaultRates())

		_, exceeded := tracker.Charge(100_000, 100_000)
		assert.True(t, exceeded)
		assert.True(t, tracker.Exceeded())

		// the crossing charge stays booked
		assert.Greater(t, tracker.CostEUR(), 0.000001)
	})

	t.Run("zero ceiling means unlimited", func(t *testing.T) {
		tracker := NewBudgetTracker(0, DefaultRates())

		_, exceeded := tracker.Charge(10_000_000, 10_000_000)
		assert.False(t, exceeded)
		assert.False(t, tracker.Exceeded())
	})
}

func TestBudgetTrackerConcurrentCharges(t *testing.T) {
	tracker := NewBudgetTracker(0, DefaultRates())

	const workers = 32
	const perWorker = 100

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				tracker.Charge(40, 80)
			}
		}()
	}
	wg.Wait()

	input, output := tracker.Tokens()
	require.Equal(t, workers*perWorker*40/4, input)
	require.Equal(t, workers*perWorker*80/4, output)
}

func TestBudgetTrackerTokens(t *testing.T) {
	tracker := NewBudgetTracker(0, DefaultRates())
	tracker.Charge(10, 7)

	input, output := tracker.Tokens()
	assert.Equal(t, 2, input, "integer division of chars by four")
	assert.Equal(t, 1, output)
}

func TestDefaultRates(t *testing.T) {
	rates := DefaultRates()
	assert.InDelta(t, 0.59/1_000_000, rates.InputUSDPerToken, 1e-15)
	assert.InDelta(t, 0.79/1_000_000, rates.OutputUSDPerToken, 1e-15)
	assert.InDelta(t, 0.92, rates.EURPerUSD, 1e-15)
}
