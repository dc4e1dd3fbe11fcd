package scoring

// DealerAndSitter derives the dealer and sitter for a round from the round
// number and the fixed seating order (players sorted by id). The sitter only
// exists at a 5-player table and is always the dealer.
//
// The mapping is a pure function of the round number, never a stored "current
// dealer": round numbers shift when a round is deleted, and replaying history
// must land on the same dealers the renumbered rounds now imply.
func DealerAndSitter(roundNumber int, seating []uint) (dealer, sitter uint) {
	if len(seating) == 0 {
		return 0, 0
	}
	dealer = seating[(roundNumber-1)%len(seating)]
	if len(seating) == 5 {
		sitter = dealer
	}
	return dealer, sitter
}
