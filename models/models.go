// models/models.go
package models

// Contract is the declared goal of a round.
type Contract string

const (
	ContractVraag        Contract = "Vraag"
	ContractTroel        Contract = "Troel"
	ContractAbondance    Contract = "Abondance"
	ContractMiserie      Contract = "Miserie"
	ContractGroteMiserie Contract = "Grote Miserie"
	ContractSolo         Contract = "Solo"
)

// IsMiserie reports whether the contract belongs to the Miserie family,
// which settles per participant instead of main-player-versus-the-rest.
func (c Contract) IsMiserie() bool {
	return c == ContractMiserie || c == ContractGroteMiserie
}

// NeedsTrump reports whether a trump suit must be declared for the contract.
func (c Contract) NeedsTrump() bool {
	return !c.IsMiserie()
}

// Result of a round (or of a single Miserie participant).
type Result string

const (
	ResultWon  Result = "won"
	ResultLost Result = "lost"
)

// Suit is the trump suit of a round.
type Suit string

const (
	SuitHearts   Suit = "hearts"
	SuitDiamonds Suit = "diamonds"
	SuitClubs    Suit = "clubs"
	SuitSpades   Suit = "spades"
)

// MiserieOutcomes maps a participating player to that player's individual
// result. It is persisted with the round so recalculation never has to
// reconstruct who opted in from aggregate fields.
type MiserieOutcomes map[uint]Result

// RoundDeclaration is everything a round submission declares. Player ids of
// zero mean "not set" (no partner, or no main player for Miserie rounds).
type RoundDeclaration struct {
	Contract        Contract
	Result          Result
	MainPlayer      uint
	Partner         uint
	TrumpSuit       Suit
	Overtricks      int
	MiserieOutcomes MiserieOutcomes
}

// Partnered reports whether the declaration includes a partner.
func (d RoundDeclaration) Partnered() bool {
	return d.Partner != 0
}

// RoundRequest is a round submission as received from a client. Zero player
// ids mean "not set".
type RoundRequest struct {
	Contract        Contract        `json:"contract"`
	Result          Result          `json:"result"`
	MainPlayer      uint            `json:"main_player,omitempty"`
	Partner         uint            `json:"partner,omitempty"`
	TrumpSuit       Suit            `json:"trump_suit,omitempty"`
	Overtricks      int             `json:"overtricks"`
	MiserieOutcomes MiserieOutcomes `json:"miserie_outcomes,omitempty"`
}

// Declaration normalizes the request into a round declaration: Miserie
// rounds carry no trump and always persist a participant map, so that only
// pre-migration rounds ever have a nil one.
func (r RoundRequest) Declaration() RoundDeclaration {
	decl := RoundDeclaration{
		Contract:        r.Contract,
		Result:          r.Result,
		MainPlayer:      r.MainPlayer,
		Partner:         r.Partner,
		TrumpSuit:       r.TrumpSuit,
		Overtricks:      r.Overtricks,
		MiserieOutcomes: r.MiserieOutcomes,
	}
	if decl.Contract.IsMiserie() {
		decl.TrumpSuit = ""
		if decl.MiserieOutcomes == nil {
			decl.MiserieOutcomes = MiserieOutcomes{}
		}
	} else {
		decl.MiserieOutcomes = nil
	}
	return decl
}

// DraftConfig is a rule configuration staged before a game exists. It is
// applied exactly once, at game creation; there is no ambient lifecycle.
// Nil fields fall back to the defaults.
type DraftConfig struct {
	VraagPartnerPoints *int `json:"vraag_partner_points,omitempty"`
	VraagSoloPoints    *int `json:"vraag_solo_points,omitempty"`
	TroelPoints        *int `json:"troel_points,omitempty"`
	AbondancePoints    *int `json:"abondance_points,omitempty"`
	SoloPoints         *int `json:"solo_points,omitempty"`
	MiseriePoints      *int `json:"miserie_points,omitempty"`
	GroteMiseriePoints *int `json:"grote_miserie_points,omitempty"`

	VraagPartnerMaxWon  *int `json:"vraag_partner_max_won,omitempty"`
	VraagPartnerMaxLost *int `json:"vraag_partner_max_lost,omitempty"`
	VraagSoloMaxWon     *int `json:"vraag_solo_max_won,omitempty"`
	VraagSoloMaxLost    *int `json:"vraag_solo_max_lost,omitempty"`
	TroelMaxWon         *int `json:"troel_max_won,omitempty"`
	TroelMaxLost        *int `json:"troel_max_lost,omitempty"`
	AbondanceMaxWon     *int `json:"abondance_max_won,omitempty"`
	AbondanceMaxLost    *int `json:"abondance_max_lost,omitempty"`
}

// PlayerInfo 玩家信息（用于对外视图）
type PlayerInfo struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// Standing is one row of the current scoreboard.
type Standing struct {
	PlayerID uint   `json:"player_id"`
	Name     string `json:"name"`
	Total    int    `json:"total"`
}

// RoundView is a scored round as shown in the history.
type RoundView struct {
	Number          int             `json:"number"`
	Contract        Contract        `json:"contract"`
	Result          Result          `json:"result"`
	TrumpSuit       Suit            `json:"trump_suit,omitempty"`
	Overtricks      int             `json:"overtricks"`
	MainPlayer      uint            `json:"main_player,omitempty"`
	Partner         uint            `json:"partner,omitempty"`
	DealerID        uint            `json:"dealer_id"`
	SitterID        uint            `json:"sitter_id,omitempty"`
	MiserieOutcomes MiserieOutcomes `json:"miserie_outcomes,omitempty"`
	Deltas          map[uint]int    `json:"deltas"`
}

// GameView is the full state of a game as served to clients.
type GameView struct {
	GameID       uint         `json:"game_id"`
	Players      []PlayerInfo `json:"players"`
	Standings    []Standing   `json:"standings"`
	Rounds       []RoundView  `json:"rounds"`
	NextDealerID uint         `json:"next_dealer_id"`
	NextSitterID uint         `json:"next_sitter_id,omitempty"`
}

// StandingsUpdate is pushed to live watchers after every mutation.
type StandingsUpdate struct {
	GameID     uint       `json:"game_id"`
	Standings  []Standing `json:"standings"`
	RoundCount int        `json:"round_count"`
}
