package core

import "sync"

// Rates converts estimated token usage into money. The defaults mirror Groq
// llama-3.1-70b pricing with a USD to EUR factor.
type Rates struct {
	InputUSDPerToken  float64
	OutputUSDPerToken float64
	EURPerUSD         float64
}

// DefaultRates returns the baseline pricing used when none is configured.
func DefaultRates() Rates {
	return Rates{
		InputUSDPerToken:  0.59 / 1_000_000,
		OutputUSDPerToken: 0.79 / 1_000_000,
		EURPerUSD:         0.92,
	}
}

// BudgetTracker accumulates consumed input/output characters and the derived
// monetary cost for one debate. Charge is the single atomic
// increment-and-compare shared by all concurrently executing turns.
// If the ceiling is 0, the budget is unlimited.
type BudgetTracker struct {
	mu          sync.Mutex
	inputChars  int
	outputChars int
	ceilingEUR  float64
	rates       Rates
}

// NewBudgetTracker creates a tracker with a cost ceiling in EUR.
func NewBudgetTracker(ceilingEUR float64, rates Rates) *BudgetTracker {
	return &BudgetTracker{ceilingEUR: ceilingEUR, rates: rates}
}

// Charge atomically adds usage and reports the new total cost and whether the
// ceiling is now exceeded. The charge that crosses the ceiling is never
// undone; exceeding signals the scheduler to stop after the current round.
func (b *BudgetTracker) Charge(inputChars, outputChars int) (costEUR float64, exceeded bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.inputChars += inputChars
	b.outputChars += outputChars

	cost := b.costLocked()
	return cost, b.ceilingEUR > 0 && cost > b.ceilingEUR
}

// CostEUR returns the current accumulated cost.
func (b *BudgetTracker) CostEUR() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.costLocked()
}

// Exceeded reports whether the accumulated cost is over the ceiling.
func (b *BudgetTracker) Exceeded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ceilingEUR > 0 && b.costLocked() > b.ceilingEUR
}

// Tokens returns the estimated input/output token totals.
func (b *BudgetTracker) Tokens() (input, output int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inputChars / 4, b.outputChars / 4
}

// costLocked derives cost from usage; caller holds the lock. Uses the common
// 1 token ~= 4 chars approximation.
func (b *BudgetTracker) costLocked() float64 {
	inputTokens := float64(b.inputChars / 4)
	outputTokens := float64(b.outputChars / 4)
	usd := inputTokens*b.rates.InputUSDPerToken + outputTokens*b.rates.OutputUSDPerToken
	return usd * b.rates.EURPerUSD
}
