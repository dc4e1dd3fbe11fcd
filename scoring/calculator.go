package scoring

import (
	"github.com/wfunc/wiezen/models"
)

// soloOpponents is the number of opponents the main player settles against
// when playing alone. It is a constant of the contract family (a 4-seat
// active table), not derived from the roster size.
const soloOpponents = 3

// ComputeScores settles a round and returns the signed point delta for every
// roster member. A sitter id of zero means no sitter; the sitter's delta is
// always zero.
func ComputeScores(decl models.RoundDeclaration, cfg RuleConfig, roster []uint, sitter uint) map[uint]int {
	deltas := make(map[uint]int, len(roster))
	for _, id := range roster {
		deltas[id] = 0
	}

	if decl.Contract.IsMiserie() {
		settleMiserie(decl, cfg, roster, sitter, deltas)
		return deltas
	}

	points := cfg.BasePoints(decl.Contract, decl.Partnered()) + decl.Overtricks
	total := points
	if decl.Result != models.ResultWon {
		total = -points
	}

	for _, id := range roster {
		if id == sitter {
			continue
		}
		switch {
		case decl.Partnered():
			if id == decl.MainPlayer || id == decl.Partner {
				deltas[id] = total
			} else {
				deltas[id] = -total
			}
		default: // 1 vs 3
			if id == decl.MainPlayer {
				deltas[id] = total * soloOpponents
			} else {
				deltas[id] = -total
			}
		}
	}
	return deltas
}

// settleMiserie applies the per-participant Miserie settlement. Every
// participant settles against all other active players independently and the
// contributions add up; with several participants their mutual deltas are
// applied once from each side. That makes multi-participant rounds the one
// place where the deltas do not sum to zero — existing table practice, kept
// as is.
func settleMiserie(decl models.RoundDeclaration, cfg RuleConfig, roster []uint, sitter uint, deltas map[uint]int) {
	base := cfg.BasePoints(decl.Contract, false)

	active := len(roster)
	if sitter != 0 {
		active--
	}

	for _, id := range roster {
		if id == sitter {
			continue
		}
		outcome, played := decl.MiserieOutcomes[id]
		if !played {
			continue
		}

		stake := base * (active - 1)
		if outcome == models.ResultWon {
			deltas[id] += stake
			for _, opp := range roster {
				if opp != id && opp != sitter {
					deltas[opp] -= base
				}
			}
		} else {
			deltas[id] -= stake
			for _, opp := range roster {
				if opp != id && opp != sitter {
					deltas[opp] += base
				}
			}
		}
	}
}
