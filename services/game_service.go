// services/game_service.go
package services

import (
	"fmt"
	"sync"

	"github.com/wfunc/wiezen/logger"
	"github.com/wfunc/wiezen/models"
	"github.com/wfunc/wiezen/persistence"
	"github.com/wfunc/wiezen/scoring"
)

// defaultNames seeds a game started without a roster.
var defaultNames = []string{"Jan", "Piet", "Joris", "Korneel"}

// GameService orchestrates the scoring engine over the store. Mutations
// against the same game are serialized by a per-game lock: two interleaved
// edits over overlapping round ranges would otherwise race the
// delete-and-regenerate sequence and corrupt totals.
type GameService struct {
	store persistence.Store

	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func NewGameService(store persistence.Store) *GameService {
	return &GameService{
		store: store,
		locks: make(map[uint]*sync.Mutex),
	}
}

func (s *GameService) gameLock(gameID uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[gameID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[gameID] = lock
	}
	return lock
}

// StartGame creates a game with 4 or 5 players. An empty roster falls back
// to the traditional table. The draft configuration, if any, is resolved and
// frozen here; it has no life of its own afterwards.
func (s *GameService) StartGame(names []string, draft *models.DraftConfig) (*models.GameView, error) {
	trimmed := make([]string, 0, len(names))
	for _, n := range names {
		if n != "" {
			trimmed = append(trimmed, n)
		}
	}
	if len(trimmed) == 0 {
		trimmed = defaultNames
	}
	if len(trimmed) < 4 || len(trimmed) > 5 {
		return nil, &scoring.ValidationError{Reason: "4 or 5 players are required"}
	}

	var rules *scoring.RuleConfig
	if draft != nil {
		cfg, err := scoring.FromDraft(draft)
		if err != nil {
			return nil, err
		}
		rules = &cfg
	}

	game, players, err := s.store.CreateGame(trimmed, rules)
	if err != nil {
		return nil, err
	}
	logger.Log.Infow("game started", "game_id", game.ID, "players", len(players))
	return s.View(game.ID)
}

// ActiveGame returns the game currently being played.
func (s *GameService) ActiveGame() (*models.GormGame, error) {
	return s.store.ActiveGame()
}

// EndGame deactivates a game; its ledger stays queryable.
func (s *GameService) EndGame(gameID uint) error {
	lock := s.gameLock(gameID)
	lock.Lock()
	defer lock.Unlock()
	return s.store.EndGame(gameID)
}

// Rules exposes the game's resolved rule configuration.
func (s *GameService) Rules(gameID uint) (scoring.RuleConfig, error) {
	return s.store.Rules(gameID)
}

// AddRound validates, scores and appends a round to the ledger.
func (s *GameService) AddRound(gameID uint, req models.RoundRequest) error {
	lock := s.gameLock(gameID)
	lock.Lock()
	defer lock.Unlock()

	players, seating, err := s.roster(gameID)
	if err != nil {
		return err
	}
	rules, err := s.store.Rules(gameID)
	if err != nil {
		return err
	}

	decl := req.Declaration()
	if err := scoring.ValidateRound(decl, rules); err != nil {
		return err
	}

	rounds, err := s.store.Rounds(gameID)
	if err != nil {
		return err
	}
	number := len(rounds) + 1
	dealer, sitter := scoring.DealerAndSitter(number, seating)

	deltas := scoring.ComputeScores(decl, rules, seating, sitter)

	scores, err := s.store.Scores(gameID)
	if err != nil {
		return err
	}
	totals := totalsAt(scores, len(rounds), seating)

	round := roundRow(gameID, number, dealer, sitter, decl)
	rows := make([]models.GormScore, 0, len(players))
	for _, id := range seating {
		total := totals[id] + deltas[id]
		rows = append(rows, models.GormScore{
			GameID:       gameID,
			RoundNumber:  number,
			PlayerID:     id,
			PointsChange: deltas[id],
			CurrentTotal: total,
		})
	}

	if err := s.store.AppendRound(&round, rows); err != nil {
		return err
	}
	logger.Log.Infow("round recorded", "game_id", gameID, "round", number, "contract", decl.Contract)
	return nil
}

// EditRound replaces a round's declaration and replays the ledger from that
// round onward. Earlier rounds are untouched.
func (s *GameService) EditRound(gameID uint, number int, req models.RoundRequest) error {
	lock := s.gameLock(gameID)
	lock.Lock()
	defer lock.Unlock()

	_, seating, err := s.roster(gameID)
	if err != nil {
		return err
	}
	rules, err := s.store.Rules(gameID)
	if err != nil {
		return err
	}

	decl := req.Declaration()
	if err := scoring.ValidateRound(decl, rules); err != nil {
		return err
	}

	rounds, err := s.store.Rounds(gameID)
	if err != nil {
		return err
	}
	idx := roundIndex(rounds, number)
	if idx < 0 {
		return fmt.Errorf("round %d: %w", number, persistence.ErrRecordNotFound)
	}

	dealer, sitter := scoring.DealerAndSitter(number, seating)
	edited := rounds[idx]
	applyDeclaration(&edited, decl, dealer, sitter)
	rounds[idx] = edited

	res, rows, err := s.replay(gameID, number, rounds, seating, rules)
	if err != nil {
		return err
	}
	return s.commitRewrite(gameID, number, nil, []models.GormRound{edited}, rows, res)
}

// DeleteRound removes a round, renumbers the tail to close the gap and
// replays the ledger from the deleted round's original number.
func (s *GameService) DeleteRound(gameID uint, number int) error {
	lock := s.gameLock(gameID)
	lock.Lock()
	defer lock.Unlock()

	_, seating, err := s.roster(gameID)
	if err != nil {
		return err
	}
	rules, err := s.store.Rules(gameID)
	if err != nil {
		return err
	}
	rounds, err := s.store.Rounds(gameID)
	if err != nil {
		return err
	}
	idx := roundIndex(rounds, number)
	if idx < 0 {
		return fmt.Errorf("round %d: %w", number, persistence.ErrRecordNotFound)
	}

	removedID := rounds[idx].ID
	remaining := append([]models.GormRound{}, rounds[:idx]...)
	tail := rounds[idx+1:]

	// Shift the tail down and re-derive each round's dealer from its new
	// number.
	renumbered := make([]models.GormRound, 0, len(tail))
	for _, r := range tail {
		r.Number--
		dealer, sitter := scoring.DealerAndSitter(r.Number, seating)
		r.DealerID = dealer
		r.SitterID = sitter
		renumbered = append(renumbered, r)
		remaining = append(remaining, r)
	}

	res, rows, err := s.replay(gameID, number, remaining, seating, rules)
	if err != nil {
		return err
	}
	return s.commitRewrite(gameID, number, []uint{removedID}, renumbered, rows, res)
}

// UndoLastRound drops the final round. No later rounds exist, so nothing
// needs replaying.
func (s *GameService) UndoLastRound(gameID uint) error {
	lock := s.gameLock(gameID)
	lock.Lock()
	defer lock.Unlock()

	rounds, err := s.store.Rounds(gameID)
	if err != nil {
		return err
	}
	if len(rounds) == 0 {
		return fmt.Errorf("no rounds to undo: %w", persistence.ErrRecordNotFound)
	}
	last := rounds[len(rounds)-1]
	if err := s.store.RewriteRounds(gameID, last.Number, []uint{last.ID}, nil, nil); err != nil {
		return err
	}
	logger.Log.Infow("round undone", "game_id", gameID, "round", last.Number)
	return nil
}

// Standings returns the current scoreboard in seating order.
func (s *GameService) Standings(gameID uint) ([]models.Standing, error) {
	players, seating, err := s.roster(gameID)
	if err != nil {
		return nil, err
	}
	scores, err := s.store.Scores(gameID)
	if err != nil {
		return nil, err
	}
	lastRound := 0
	for _, sc := range scores {
		if sc.RoundNumber > lastRound {
			lastRound = sc.RoundNumber
		}
	}
	totals := totalsAt(scores, lastRound, seating)

	standings := make([]models.Standing, 0, len(players))
	for _, p := range players {
		standings = append(standings, models.Standing{
			PlayerID: p.ID,
			Name:     p.Name,
			Total:    totals[p.ID],
		})
	}
	return standings, nil
}

// View assembles the full game state: roster, standings, scored history with
// per-round dealers re-derived from round numbers, and the upcoming dealer.
func (s *GameService) View(gameID uint) (*models.GameView, error) {
	players, seating, err := s.roster(gameID)
	if err != nil {
		return nil, err
	}
	rounds, err := s.store.Rounds(gameID)
	if err != nil {
		return nil, err
	}
	scores, err := s.store.Scores(gameID)
	if err != nil {
		return nil, err
	}

	deltasByRound := make(map[int]map[uint]int)
	for _, sc := range scores {
		if deltasByRound[sc.RoundNumber] == nil {
			deltasByRound[sc.RoundNumber] = make(map[uint]int)
		}
		deltasByRound[sc.RoundNumber][sc.PlayerID] = sc.PointsChange
	}

	view := &models.GameView{GameID: gameID}
	for _, p := range players {
		view.Players = append(view.Players, models.PlayerInfo{ID: p.ID, Name: p.Name})
	}

	standings, err := s.Standings(gameID)
	if err != nil {
		return nil, err
	}
	view.Standings = standings

	for _, r := range rounds {
		dealer, sitter := scoring.DealerAndSitter(r.Number, seating)
		view.Rounds = append(view.Rounds, models.RoundView{
			Number:          r.Number,
			Contract:        r.ContractType,
			Result:          r.Result,
			TrumpSuit:       r.TrumpSuit,
			Overtricks:      r.Overtricks,
			MainPlayer:      r.MainPlayerID,
			Partner:         r.PartnerID,
			DealerID:        dealer,
			SitterID:        sitter,
			MiserieOutcomes: r.MiserieOutcomes,
			Deltas:          deltasByRound[r.Number],
		})
	}

	view.NextDealerID, view.NextSitterID = scoring.DealerAndSitter(len(rounds)+1, seating)
	return view, nil
}

// replay regenerates the score rows for every round numbered >= start.
func (s *GameService) replay(gameID uint, start int, rounds []models.GormRound, seating []uint, rules scoring.RuleConfig) (scoring.RecalcResult, []models.GormScore, error) {
	history := make([]scoring.LedgerRound, 0, len(rounds))
	for _, r := range rounds {
		history = append(history, scoring.LedgerRound{Number: r.Number, Declaration: r.Declaration()})
	}

	scores, err := s.store.Scores(gameID)
	if err != nil {
		return scoring.RecalcResult{}, nil, err
	}
	baseline := totalsAt(scores, start-1, seating)

	res := scoring.RecalcFrom(start, history, seating, baseline, rules)

	var rows []models.GormScore
	for _, r := range rounds {
		if r.Number < start {
			continue
		}
		for _, id := range seating {
			row := res.Rounds[r.Number][id]
			rows = append(rows, models.GormScore{
				GameID:       gameID,
				RoundNumber:  r.Number,
				PlayerID:     id,
				PointsChange: row.Delta,
				CurrentTotal: row.Total,
			})
		}
	}
	return res, rows, nil
}

func (s *GameService) commitRewrite(gameID uint, start int, removed []uint, rounds []models.GormRound, rows []models.GormScore, res scoring.RecalcResult) error {
	if err := s.store.RewriteRounds(gameID, start, removed, rounds, rows); err != nil {
		return err
	}
	for _, n := range res.Degraded {
		logger.Log.Warnw("miserie round has no persisted participant data, rescored to zero",
			"game_id", gameID, "round", n)
	}
	logger.Log.Infow("ledger recalculated", "game_id", gameID, "from_round", start)
	return nil
}

// roster loads the players and the derived seating order (ids ascending).
func (s *GameService) roster(gameID uint) ([]models.GormPlayer, []uint, error) {
	if _, err := s.store.GetGame(gameID); err != nil {
		return nil, nil, err
	}
	players, err := s.store.Players(gameID)
	if err != nil {
		return nil, nil, err
	}
	seating := make([]uint, 0, len(players))
	for _, p := range players {
		seating = append(seating, p.ID)
	}
	return players, seating, nil
}

// totalsAt reads the running totals as of the given round number (0 = all
// zeros) from the stored score rows.
func totalsAt(scores []models.GormScore, roundNumber int, seating []uint) map[uint]int {
	totals := make(map[uint]int, len(seating))
	for _, id := range seating {
		totals[id] = 0
	}
	if roundNumber <= 0 {
		return totals
	}
	for _, sc := range scores {
		if sc.RoundNumber == roundNumber {
			totals[sc.PlayerID] = sc.CurrentTotal
		}
	}
	return totals
}

func roundIndex(rounds []models.GormRound, number int) int {
	for i, r := range rounds {
		if r.Number == number {
			return i
		}
	}
	return -1
}

func roundRow(gameID uint, number int, dealer, sitter uint, decl models.RoundDeclaration) models.GormRound {
	return models.GormRound{
		GameID:          gameID,
		Number:          number,
		ContractType:    decl.Contract,
		Result:          decl.Result,
		TrumpSuit:       decl.TrumpSuit,
		Overtricks:      decl.Overtricks,
		DealerID:        dealer,
		SitterID:        sitter,
		MainPlayerID:    decl.MainPlayer,
		PartnerID:       decl.Partner,
		MiserieOutcomes: decl.MiserieOutcomes,
	}
}

func applyDeclaration(r *models.GormRound, decl models.RoundDeclaration, dealer, sitter uint) {
	r.ContractType = decl.Contract
	r.Result = decl.Result
	r.TrumpSuit = decl.TrumpSuit
	r.Overtricks = decl.Overtricks
	r.DealerID = dealer
	r.SitterID = sitter
	r.MainPlayerID = decl.MainPlayer
	r.PartnerID = decl.Partner
	r.MiserieOutcomes = decl.MiserieOutcomes
}
