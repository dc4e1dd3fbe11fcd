package scoring

import (
	"fmt"

	"github.com/wfunc/wiezen/models"
)

// ValidationError rejects an ill-formed round submission. The reason is
// meant to be shown to the table verbatim.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func invalidf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ValidateRound checks a round declaration against the rule table. Checks run
// in a fixed order and fail fast; a rejected round must not be scored or
// stored.
func ValidateRound(decl models.RoundDeclaration, cfg RuleConfig) error {
	// 1. Partner may not be the main player.
	if decl.Partner != 0 && decl.Partner == decl.MainPlayer {
		return invalidf("player and partner must not be the same person")
	}

	// 2–3. Overtricks within the configured ceiling.
	if limit, ok := cfg.OvertrickLimit(decl.Contract, decl.Result, decl.Partnered()); ok {
		if decl.Overtricks > limit {
			return invalidf("at most %d overtricks allowed for %s (%s)", limit, decl.Contract, decl.Result)
		}
	}

	// 4. Miserie and Solo have no overtrick concept.
	if decl.Contract.IsMiserie() || decl.Contract == models.ContractSolo {
		if decl.Overtricks != 0 {
			return invalidf("no overtricks allowed for %s", decl.Contract)
		}
	}

	// 5. Troel is always played with a partner.
	if decl.Contract == models.ContractTroel && decl.Partner == 0 {
		return invalidf("Troel always requires a partner")
	}

	// 6. Trump is mandatory for every contract outside the Miserie family.
	if decl.Contract.NeedsTrump() && decl.TrumpSuit == "" {
		return invalidf("choose a trump suit (hearts, diamonds, clubs or spades)")
	}

	return nil
}
