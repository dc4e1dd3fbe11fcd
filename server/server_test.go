package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/wfunc/wiezen/broadcast"
	"github.com/wfunc/wiezen/models"
	"github.com/wfunc/wiezen/monitor"
	"github.com/wfunc/wiezen/persistence"
	"github.com/wfunc/wiezen/scoring"
	"github.com/wfunc/wiezen/services"
	"github.com/wfunc/wiezen/session"
)

// memStore is an in-memory persistence.Store for handler tests.
type memStore struct {
	nextID  uint
	games   map[uint]*models.GormGame
	players []models.GormPlayer
	rounds  []models.GormRound
	scores  []models.GormScore
	rules   map[uint]scoring.RuleConfig
}

func newMemStore() *memStore {
	return &memStore{
		games: make(map[uint]*models.GormGame),
		rules: make(map[uint]scoring.RuleConfig),
	}
}

func (m *memStore) id() uint {
	m.nextID++
	return m.nextID
}

func (m *memStore) CreateGame(names []string, rules *scoring.RuleConfig) (*models.GormGame, []models.GormPlayer, error) {
	for _, g := range m.games {
		g.IsActive = false
	}
	game := &models.GormGame{IsActive: true}
	game.ID = m.id()
	m.games[game.ID] = game

	var players []models.GormPlayer
	for _, name := range names {
		p := models.GormPlayer{GameID: game.ID, Name: name}
		p.ID = m.id()
		m.players = append(m.players, p)
		players = append(players, p)
	}
	if rules != nil {
		m.rules[game.ID] = *rules
	}
	return game, players, nil
}

func (m *memStore) ActiveGame() (*models.GormGame, error) {
	for _, g := range m.games {
		if g.IsActive {
			return g, nil
		}
	}
	return nil, persistence.ErrRecordNotFound
}

func (m *memStore) GetGame(id uint) (*models.GormGame, error) {
	g, ok := m.games[id]
	if !ok {
		return nil, persistence.ErrRecordNotFound
	}
	return g, nil
}

func (m *memStore) EndGame(id uint) error {
	g, ok := m.games[id]
	if !ok {
		return persistence.ErrRecordNotFound
	}
	g.IsActive = false
	return nil
}

func (m *memStore) Players(gameID uint) ([]models.GormPlayer, error) {
	var out []models.GormPlayer
	for _, p := range m.players {
		if p.GameID == gameID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) Rounds(gameID uint) ([]models.GormRound, error) {
	var out []models.GormRound
	for _, r := range m.rounds {
		if r.GameID == gameID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (m *memStore) Scores(gameID uint) ([]models.GormScore, error) {
	var out []models.GormScore
	for _, s := range m.scores {
		if s.GameID == gameID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RoundNumber != out[j].RoundNumber {
			return out[i].RoundNumber < out[j].RoundNumber
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	return out, nil
}

func (m *memStore) Rules(gameID uint) (scoring.RuleConfig, error) {
	if cfg, ok := m.rules[gameID]; ok {
		return cfg, nil
	}
	return scoring.DefaultRules(), nil
}

func (m *memStore) AppendRound(round *models.GormRound, scores []models.GormScore) error {
	round.ID = m.id()
	m.rounds = append(m.rounds, *round)
	m.scores = append(m.scores, scores...)
	return nil
}

func (m *memStore) RewriteRounds(gameID uint, start int, removed []uint, rounds []models.GormRound, scores []models.GormScore) error {
	kept := m.scores[:0]
	for _, s := range m.scores {
		if s.GameID == gameID && s.RoundNumber >= start {
			continue
		}
		kept = append(kept, s)
	}
	m.scores = kept

	gone := make(map[uint]bool, len(removed))
	for _, id := range removed {
		gone[id] = true
	}
	keptRounds := m.rounds[:0]
	for _, r := range m.rounds {
		if r.GameID == gameID && gone[r.ID] {
			continue
		}
		keptRounds = append(keptRounds, r)
	}
	m.rounds = keptRounds

	for _, updated := range rounds {
		found := false
		for i := range m.rounds {
			if m.rounds[i].ID == updated.ID {
				m.rounds[i] = updated
				found = true
				break
			}
		}
		if !found {
			m.rounds = append(m.rounds, updated)
		}
	}

	m.scores = append(m.scores, scores...)
	return nil
}

func (m *memStore) Close() error { return nil }

// newTestServer wires a Server around a memory store, without the RPC
// listener that NewServer opens.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	s := &Server{
		gameService:    services.NewGameService(newMemStore()),
		sessionManager: session.NewManager(),
		metrics:        monitor.NewMonitor("wiezen_test"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.broadcaster = broadcast.NewGameBroadcaster(s.sessionManager)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, ts *httptest.Server, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out bytes.Buffer
	if _, err := out.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, out.Bytes()
}

func decodeView(t *testing.T, data []byte) models.GameView {
	t.Helper()
	var view models.GameView
	if err := json.Unmarshal(data, &view); err != nil {
		t.Fatalf("decode game view: %v (%s)", err, data)
	}
	return view
}

func TestGetGame_NoActiveGame(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := doJSON(t, ts, http.MethodGet, "/game", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET /game without a game = %d, want 404", resp.StatusCode)
	}
}

func TestRoundLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, ts, http.MethodPost, "/game/start", map[string]interface{}{
		"player_names": []string{"Jan", "Piet", "Joris", "Korneel"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start game = %d: %s", resp.StatusCode, body)
	}
	view := decodeView(t, body)
	ids := make(map[string]uint)
	for _, p := range view.Players {
		ids[p.Name] = p.ID
	}

	resp, body = doJSON(t, ts, http.MethodPost, "/round", models.RoundRequest{
		Contract: models.ContractVraag, Result: models.ResultWon,
		MainPlayer: ids["Jan"], Partner: ids["Piet"],
		TrumpSuit: models.SuitHearts, Overtricks: 2,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add round = %d: %s", resp.StatusCode, body)
	}
	view = decodeView(t, body)
	if len(view.Rounds) != 1 || view.Rounds[0].Deltas[ids["Jan"]] != 4 {
		t.Fatalf("unexpected round view after add: %+v", view.Rounds)
	}

	resp, body = doJSON(t, ts, http.MethodPut, "/round/1", models.RoundRequest{
		Contract: models.ContractVraag, Result: models.ResultLost,
		MainPlayer: ids["Jan"], Partner: ids["Piet"],
		TrumpSuit: models.SuitHearts, Overtricks: 2,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("edit round = %d: %s", resp.StatusCode, body)
	}
	view = decodeView(t, body)
	if view.Rounds[0].Deltas[ids["Jan"]] != -4 {
		t.Fatalf("edit did not flip the result: %+v", view.Rounds[0])
	}

	resp, body = doJSON(t, ts, http.MethodDelete, "/round/1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete round = %d: %s", resp.StatusCode, body)
	}
	view = decodeView(t, body)
	if len(view.Rounds) != 0 {
		t.Fatalf("expected an empty ledger after delete, got %d rounds", len(view.Rounds))
	}
	for _, s := range view.Standings {
		if s.Total != 0 {
			t.Errorf("%s total = %d after delete, want 0", s.Name, s.Total)
		}
	}
}

func TestAddRound_ValidationFailureIs400(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, ts, http.MethodPost, "/game/start", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start game = %d: %s", resp.StatusCode, body)
	}
	view := decodeView(t, body)

	resp, body = doJSON(t, ts, http.MethodPost, "/round", models.RoundRequest{
		Contract: models.ContractVraag, Result: models.ResultWon,
		MainPlayer: view.Players[0].ID, Partner: view.Players[1].ID,
		TrumpSuit: models.SuitHearts, Overtricks: 6,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("over-ceiling round = %d, want 400: %s", resp.StatusCode, body)
	}
}

func TestEditRound_UnknownIs404(t *testing.T) {
	ts := newTestServer(t)
	resp, body := doJSON(t, ts, http.MethodPost, "/game/start", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start game = %d: %s", resp.StatusCode, body)
	}
	view := decodeView(t, body)

	resp, _ = doJSON(t, ts, http.MethodPut, "/round/7", models.RoundRequest{
		Contract: models.ContractSolo, Result: models.ResultWon,
		MainPlayer: view.Players[0].ID, TrumpSuit: models.SuitHearts,
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("edit of a missing round = %d, want 404", resp.StatusCode)
	}
}

func TestConfigStagedThenConsumed(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, ts, http.MethodPut, "/config", map[string]int{
		"vraag_partner_points": 3,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stage config = %d: %s", resp.StatusCode, body)
	}

	resp, body = doJSON(t, ts, http.MethodGet, "/config", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get config = %d", resp.StatusCode)
	}
	var cfg scoring.RuleConfig
	if err := json.Unmarshal(body, &cfg); err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if cfg.VraagPartnerPoints != 3 {
		t.Fatalf("staged VraagPartnerPoints = %d, want 3", cfg.VraagPartnerPoints)
	}

	// The new game picks up the staged draft.
	resp, body = doJSON(t, ts, http.MethodPost, "/game/start", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start game = %d: %s", resp.StatusCode, body)
	}
	view := decodeView(t, body)

	resp, body = doJSON(t, ts, http.MethodPost, "/round", models.RoundRequest{
		Contract: models.ContractVraag, Result: models.ResultWon,
		MainPlayer: view.Players[0].ID, Partner: view.Players[1].ID,
		TrumpSuit: models.SuitHearts,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add round = %d: %s", resp.StatusCode, body)
	}
	view = decodeView(t, body)
	if got := view.Rounds[0].Deltas[view.Players[0].ID]; got != 3 {
		t.Fatalf("delta with staged config = %d, want 3", got)
	}
}

func TestPutConfig_RejectedWhileGameActive(t *testing.T) {
	ts := newTestServer(t)
	resp, body := doJSON(t, ts, http.MethodPost, "/game/start", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start game = %d: %s", resp.StatusCode, body)
	}

	resp, _ = doJSON(t, ts, http.MethodPut, "/config", map[string]int{
		"solo_points": 20,
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("config change during a game = %d, want 409", resp.StatusCode)
	}
}

func TestPutConfig_NegativeValueIs400(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := doJSON(t, ts, http.MethodPut, "/config", map[string]int{
		"solo_points": -1,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("negative config value = %d, want 400", resp.StatusCode)
	}
}

func TestEndGame_NotifiesAndDeactivates(t *testing.T) {
	ts := newTestServer(t)
	resp, body := doJSON(t, ts, http.MethodPost, "/game/start", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start game = %d: %s", resp.StatusCode, body)
	}

	resp, _ = doJSON(t, ts, http.MethodPost, "/game/end", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("end game = %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, ts, http.MethodGet, "/game", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET /game after end = %d, want 404", resp.StatusCode)
	}
}

func TestWebSocketWatcherReceivesHello(t *testing.T) {
	ts := newTestServer(t)
	resp, body := doJSON(t, ts, http.MethodPost, "/game/start", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start game = %d: %s", resp.StatusCode, body)
	}

	wsURL := "ws" + ts.URL[len("http"):] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	var env struct {
		Event string                 `json:"event"`
		Data  models.StandingsUpdate `json:"data"`
	}
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read hello: %v", err)
	}
	if env.Event != "hello" {
		t.Fatalf("first event = %q, want hello", env.Event)
	}
	if len(env.Data.Standings) != 4 {
		t.Fatalf("hello standings rows = %d, want 4", len(env.Data.Standings))
	}
}
