package scoring

import (
	"sort"

	"github.com/wfunc/wiezen/models"
)

// LedgerRound is one entry of a game's ordered round history, as fed to
// RecalcFrom. The declaration is the round's own persisted submission; it was
// validated when it was created and is not re-validated here.
type LedgerRound struct {
	Number      int
	Declaration models.RoundDeclaration
}

// ScoreRow is the regenerated ledger row for one (round, player).
type ScoreRow struct {
	Delta int
	Total int
}

// RecalcResult carries the regenerated suffix of the ledger.
type RecalcResult struct {
	// Rounds maps round number -> player id -> regenerated row, for every
	// round numbered >= the requested start.
	Rounds map[int]map[uint]ScoreRow
	// Totals is the running total per player after the last round.
	Totals map[uint]int
	// Degraded lists Miserie rounds that had no persisted participant data
	// and therefore recalculated to all-zero deltas. Not an error; callers
	// should log it.
	Degraded []int
}

// RecalcFrom replays the settlement over every round numbered >= start and
// returns fresh deltas and running totals. baseline is the running total per
// player as of round start-1 (nil or missing entries mean zero). The caller
// replaces all stored score rows for the affected rounds with the result in
// a single transaction.
func RecalcFrom(start int, history []LedgerRound, seating []uint, baseline map[uint]int, cfg RuleConfig) RecalcResult {
	res := RecalcResult{
		Rounds: make(map[int]map[uint]ScoreRow),
		Totals: make(map[uint]int, len(seating)),
	}
	for _, id := range seating {
		res.Totals[id] = baseline[id]
	}

	ordered := make([]LedgerRound, 0, len(history))
	for _, r := range history {
		if r.Number >= start {
			ordered = append(ordered, r)
		}
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Number < ordered[j].Number })

	for _, r := range ordered {
		decl := r.Declaration

		// Rounds persisted before participant outcomes were recorded
		// cannot be resettled; they degrade to zero deltas.
		degraded := decl.Contract.IsMiserie() && decl.MiserieOutcomes == nil
		if degraded {
			res.Degraded = append(res.Degraded, r.Number)
		}

		_, sitter := DealerAndSitter(r.Number, seating)

		var deltas map[uint]int
		if degraded {
			deltas = make(map[uint]int, len(seating))
			for _, id := range seating {
				deltas[id] = 0
			}
		} else {
			deltas = ComputeScores(decl, cfg, seating, sitter)
		}

		rows := make(map[uint]ScoreRow, len(seating))
		for _, id := range seating {
			res.Totals[id] += deltas[id]
			rows[id] = ScoreRow{Delta: deltas[id], Total: res.Totals[id]}
		}
		res.Rounds[r.Number] = rows
	}
	return res
}
