// Package scoring implements the contract rule table, round validation,
// dealer rotation, per-contract settlement and ledger recalculation for a
// Wiezen game. The package is purely computational: the caller supplies the
// rule configuration, the roster and the round history, and persists whatever
// the package returns.
package scoring

import (
	"errors"
	"fmt"

	"github.com/wfunc/wiezen/models"
)

// ErrInvalidConfig is returned when a rule configuration carries an
// out-of-range value.
var ErrInvalidConfig = errors.New("invalid rule config")

// RuleConfig is the immutable per-game table of contract point values and
// overtrick ceilings. The zero value is not usable; construct it through
// DefaultRules or FromDraft.
type RuleConfig struct {
	VraagPartnerPoints int
	VraagSoloPoints    int
	TroelPoints        int
	AbondancePoints    int
	SoloPoints         int
	MiseriePoints      int
	GroteMiseriePoints int

	VraagPartnerMaxWon  int
	VraagPartnerMaxLost int
	VraagSoloMaxWon     int
	VraagSoloMaxLost    int
	TroelMaxWon         int
	TroelMaxLost        int
	AbondanceMaxWon     int
	AbondanceMaxLost    int
}

// DefaultRules returns the standard Wiezen point table. Games persisted
// without an explicit configuration resolve to these values.
func DefaultRules() RuleConfig {
	return RuleConfig{
		VraagPartnerPoints: 2,
		VraagSoloPoints:    2,
		TroelPoints:        2,
		AbondancePoints:    5,
		SoloPoints:         13,
		MiseriePoints:      10,
		GroteMiseriePoints: 20,

		VraagPartnerMaxWon:  5,
		VraagPartnerMaxLost: 8,
		VraagSoloMaxWon:     5,
		VraagSoloMaxLost:    8,
		TroelMaxWon:         5,
		TroelMaxLost:        8,
		AbondanceMaxWon:     4,
		AbondanceMaxLost:    9,
	}
}

// FromDraft applies a staged draft on top of the defaults and validates the
// result. A nil draft yields the defaults.
func FromDraft(draft *models.DraftConfig) (RuleConfig, error) {
	cfg := DefaultRules()
	if draft != nil {
		apply := func(dst *int, src *int) {
			if src != nil {
				*dst = *src
			}
		}
		apply(&cfg.VraagPartnerPoints, draft.VraagPartnerPoints)
		apply(&cfg.VraagSoloPoints, draft.VraagSoloPoints)
		apply(&cfg.TroelPoints, draft.TroelPoints)
		apply(&cfg.AbondancePoints, draft.AbondancePoints)
		apply(&cfg.SoloPoints, draft.SoloPoints)
		apply(&cfg.MiseriePoints, draft.MiseriePoints)
		apply(&cfg.GroteMiseriePoints, draft.GroteMiseriePoints)

		apply(&cfg.VraagPartnerMaxWon, draft.VraagPartnerMaxWon)
		apply(&cfg.VraagPartnerMaxLost, draft.VraagPartnerMaxLost)
		apply(&cfg.VraagSoloMaxWon, draft.VraagSoloMaxWon)
		apply(&cfg.VraagSoloMaxLost, draft.VraagSoloMaxLost)
		apply(&cfg.TroelMaxWon, draft.TroelMaxWon)
		apply(&cfg.TroelMaxLost, draft.TroelMaxLost)
		apply(&cfg.AbondanceMaxWon, draft.AbondanceMaxWon)
		apply(&cfg.AbondanceMaxLost, draft.AbondanceMaxLost)
	}
	if err := cfg.Validate(); err != nil {
		return RuleConfig{}, err
	}
	return cfg, nil
}

// Validate rejects configurations with negative values.
func (c RuleConfig) Validate() error {
	fields := []struct {
		name  string
		value int
	}{
		{"vraag_partner_points", c.VraagPartnerPoints},
		{"vraag_solo_points", c.VraagSoloPoints},
		{"troel_points", c.TroelPoints},
		{"abondance_points", c.AbondancePoints},
		{"solo_points", c.SoloPoints},
		{"miserie_points", c.MiseriePoints},
		{"grote_miserie_points", c.GroteMiseriePoints},
		{"vraag_partner_max_won", c.VraagPartnerMaxWon},
		{"vraag_partner_max_lost", c.VraagPartnerMaxLost},
		{"vraag_solo_max_won", c.VraagSoloMaxWon},
		{"vraag_solo_max_lost", c.VraagSoloMaxLost},
		{"troel_max_won", c.TroelMaxWon},
		{"troel_max_lost", c.TroelMaxLost},
		{"abondance_max_won", c.AbondanceMaxWon},
		{"abondance_max_lost", c.AbondanceMaxLost},
	}
	for _, f := range fields {
		if f.value < 0 {
			return fmt.Errorf("%w: %s must not be negative, got %d", ErrInvalidConfig, f.name, f.value)
		}
	}
	return nil
}

// BasePoints returns the configured base value for a contract. For Vraag the
// value depends on whether a partner was declared.
func (c RuleConfig) BasePoints(contract models.Contract, partnered bool) int {
	switch contract {
	case models.ContractVraag:
		if partnered {
			return c.VraagPartnerPoints
		}
		return c.VraagSoloPoints
	case models.ContractTroel:
		return c.TroelPoints
	case models.ContractAbondance:
		return c.AbondancePoints
	case models.ContractSolo:
		return c.SoloPoints
	case models.ContractMiserie:
		return c.MiseriePoints
	case models.ContractGroteMiserie:
		return c.GroteMiseriePoints
	}
	return 0
}

// OvertrickLimit returns the overtrick ceiling for a contract and result.
// The second return value is false for contracts with no overtrick concept.
func (c RuleConfig) OvertrickLimit(contract models.Contract, result models.Result, partnered bool) (int, bool) {
	won := result == models.ResultWon
	switch contract {
	case models.ContractVraag:
		if partnered {
			if won {
				return c.VraagPartnerMaxWon, true
			}
			return c.VraagPartnerMaxLost, true
		}
		if won {
			return c.VraagSoloMaxWon, true
		}
		return c.VraagSoloMaxLost, true
	case models.ContractTroel:
		if won {
			return c.TroelMaxWon, true
		}
		return c.TroelMaxLost, true
	case models.ContractAbondance:
		if won {
			return c.AbondanceMaxWon, true
		}
		return c.AbondanceMaxLost, true
	}
	return 0, false
}
