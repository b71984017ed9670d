package inference

import (
	"fmt"
	"sort"
)

// Ledger counts per-species outcomes for the run report.
type Ledger struct {
	Source string
	Target string
	// Eligible counts reactions that passed classification.
	Eligible int
	// Inferred counts eligible reactions with a target counterpart,
	// including reused ones.
	Inferred int
	Reused   int
	Pathways int
	Skips    map[SkipReason]int
}

// NewLedger returns an empty ledger.
func NewLedger(source, target string) *Ledger {
	return &Ledger{Source: source, Target: target, Skips: make(map[SkipReason]int)}
}

// Skip counts one skipped reaction.
func (l *Ledger) Skip(reason SkipReason) { l.Skips[reason]++ }

// Percent is the inferred share of eligible reactions, 0 when none were
// eligible.
func (l *Ledger) Percent() float64 {
	if l.Eligible == 0 {
		return 0
	}
	return float64(l.Inferred) * 100 / float64(l.Eligible)
}

// Report renders the summary line written for each species.
func (l *Ledger) Report() string {
	return fmt.Sprintf("%s to %s: Inferred %d out of %d eligible reactions (%.2f%%)",
		l.Source, l.Target, l.Inferred, l.Eligible, l.Percent())
}

// SkipReasons returns the recorded reasons in sorted order.
func (l *Ledger) SkipReasons() []SkipReason {
	out := make([]SkipReason, 0, len(l.Skips))
	for r := range l.Skips {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
