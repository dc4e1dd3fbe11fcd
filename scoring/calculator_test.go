package scoring

import (
	"testing"

	"github.com/wfunc/wiezen/models"
)

var fourPlayers = []uint{1, 2, 3, 4}

func assertDeltas(t *testing.T, got, want map[uint]int) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("delta map covers %d players, want %d", len(got), len(want))
	}
	for id, w := range want {
		if got[id] != w {
			t.Errorf("player %d: delta = %d, want %d", id, got[id], w)
		}
	}
}

func TestComputeScores_VraagPartneredWon(t *testing.T) {
	// base 2 + 2 overtricks = 4; main and partner +4, the other two -4.
	decl := models.RoundDeclaration{
		Contract: models.ContractVraag, Result: models.ResultWon,
		MainPlayer: 1, Partner: 2, TrumpSuit: models.SuitHearts, Overtricks: 2,
	}
	got := ComputeScores(decl, DefaultRules(), fourPlayers, 0)
	assertDeltas(t, got, map[uint]int{1: 4, 2: 4, 3: -4, 4: -4})
}

func TestComputeScores_AbondanceSoloLost(t *testing.T) {
	// base 5 + 1 = 6 lost; main pays 3x, everyone else collects 6.
	decl := models.RoundDeclaration{
		Contract: models.ContractAbondance, Result: models.ResultLost,
		MainPlayer: 2, TrumpSuit: models.SuitClubs, Overtricks: 1,
	}
	got := ComputeScores(decl, DefaultRules(), fourPlayers, 0)
	assertDeltas(t, got, map[uint]int{1: 6, 2: -18, 3: 6, 4: 6})
}

func TestComputeScores_SoloWon(t *testing.T) {
	decl := models.RoundDeclaration{
		Contract: models.ContractSolo, Result: models.ResultWon,
		MainPlayer: 3, TrumpSuit: models.SuitSpades,
	}
	got := ComputeScores(decl, DefaultRules(), fourPlayers, 0)
	assertDeltas(t, got, map[uint]int{1: -13, 2: -13, 3: 39, 4: -13})
}

func TestComputeScores_TroelWon(t *testing.T) {
	decl := models.RoundDeclaration{
		Contract: models.ContractTroel, Result: models.ResultWon,
		MainPlayer: 3, Partner: 4, TrumpSuit: models.SuitHearts,
	}
	got := ComputeScores(decl, DefaultRules(), fourPlayers, 0)
	assertDeltas(t, got, map[uint]int{1: -2, 2: -2, 3: 2, 4: 2})
}

func TestComputeScores_ZeroSumStandardContracts(t *testing.T) {
	cases := []models.RoundDeclaration{
		{Contract: models.ContractVraag, Result: models.ResultWon, MainPlayer: 1, Partner: 2, TrumpSuit: models.SuitHearts, Overtricks: 3},
		{Contract: models.ContractVraag, Result: models.ResultLost, MainPlayer: 1, TrumpSuit: models.SuitHearts, Overtricks: 5},
		{Contract: models.ContractTroel, Result: models.ResultLost, MainPlayer: 2, Partner: 3, TrumpSuit: models.SuitDiamonds},
		{Contract: models.ContractAbondance, Result: models.ResultWon, MainPlayer: 4, TrumpSuit: models.SuitClubs, Overtricks: 2},
		{Contract: models.ContractSolo, Result: models.ResultLost, MainPlayer: 2, TrumpSuit: models.SuitSpades},
	}
	for _, decl := range cases {
		got := ComputeScores(decl, DefaultRules(), fourPlayers, 0)
		sum := 0
		for _, d := range got {
			sum += d
		}
		if sum != 0 {
			t.Errorf("%s %s: deltas sum to %d, want 0 (%v)", decl.Contract, decl.Result, sum, got)
		}
	}
}

func TestComputeScores_SitterAlwaysZero(t *testing.T) {
	five := []uint{1, 2, 3, 4, 5}
	decl := models.RoundDeclaration{
		Contract: models.ContractSolo, Result: models.ResultWon,
		MainPlayer: 2, TrumpSuit: models.SuitHearts,
	}
	got := ComputeScores(decl, DefaultRules(), five, 5)
	if got[5] != 0 {
		t.Errorf("sitter delta = %d, want 0", got[5])
	}
	assertDeltas(t, got, map[uint]int{1: -13, 2: 39, 3: -13, 4: -13, 5: 0})
}

func TestComputeScores_MiserieSingleParticipant(t *testing.T) {
	decl := models.RoundDeclaration{
		Contract: models.ContractMiserie, Result: models.ResultWon,
		MiserieOutcomes: models.MiserieOutcomes{1: models.ResultWon},
	}
	got := ComputeScores(decl, DefaultRules(), fourPlayers, 0)
	assertDeltas(t, got, map[uint]int{1: 30, 2: -10, 3: -10, 4: -10})
}

func TestComputeScores_MiserieTwoParticipants(t *testing.T) {
	// Player 1 won (+30, the rest -10 each), player 2 lost (-30, the rest
	// +10 each). The two settlements add up, including against each other,
	// so the round does not sum to zero: that is how the table settles it.
	decl := models.RoundDeclaration{
		Contract: models.ContractMiserie, Result: models.ResultWon,
		MiserieOutcomes: models.MiserieOutcomes{
			1: models.ResultWon,
			2: models.ResultLost,
		},
	}
	got := ComputeScores(decl, DefaultRules(), fourPlayers, 0)
	assertDeltas(t, got, map[uint]int{1: 40, 2: -40, 3: 0, 4: 0})
}

func TestComputeScores_GroteMiserieFivePlayers(t *testing.T) {
	// With a sitter only 4 seats are active; the stake is 20 * 3 and the
	// sitter is left out of the settlement entirely.
	five := []uint{1, 2, 3, 4, 5}
	decl := models.RoundDeclaration{
		Contract: models.ContractGroteMiserie, Result: models.ResultLost,
		MiserieOutcomes: models.MiserieOutcomes{2: models.ResultLost},
	}
	got := ComputeScores(decl, DefaultRules(), five, 1)
	assertDeltas(t, got, map[uint]int{1: 0, 2: -60, 3: 20, 4: 20, 5: 20})
}

func TestComputeScores_MiserieSitterParticipantIgnored(t *testing.T) {
	// A stale participant entry for the sitter must not settle.
	five := []uint{1, 2, 3, 4, 5}
	decl := models.RoundDeclaration{
		Contract: models.ContractMiserie, Result: models.ResultWon,
		MiserieOutcomes: models.MiserieOutcomes{
			1: models.ResultWon,
			2: models.ResultWon,
		},
	}
	got := ComputeScores(decl, DefaultRules(), five, 1)
	assertDeltas(t, got, map[uint]int{1: 0, 2: 30, 3: -10, 4: -10, 5: -10})
}

func TestComputeScores_MiserieNoParticipants(t *testing.T) {
	decl := models.RoundDeclaration{
		Contract: models.ContractMiserie, Result: models.ResultWon,
		MiserieOutcomes: models.MiserieOutcomes{},
	}
	got := ComputeScores(decl, DefaultRules(), fourPlayers, 0)
	assertDeltas(t, got, map[uint]int{1: 0, 2: 0, 3: 0, 4: 0})
}
