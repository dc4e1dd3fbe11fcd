package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/rpc"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wfunc/wiezen/broadcast"
	"github.com/wfunc/wiezen/logger"
	"github.com/wfunc/wiezen/models"
	"github.com/wfunc/wiezen/monitor"
	"github.com/wfunc/wiezen/network"
	"github.com/wfunc/wiezen/persistence"
	wiezenrpc "github.com/wfunc/wiezen/rpc"
	"github.com/wfunc/wiezen/scoring"
	"github.com/wfunc/wiezen/services"
	"github.com/wfunc/wiezen/session"
	"github.com/wfunc/wiezen/timer"
)

const heartbeatInterval = 30 * time.Second

type Server struct {
	addr           string
	upgrader       websocket.Upgrader
	gameService    *services.GameService
	sessionManager *session.Manager
	broadcaster    broadcast.Broadcaster
	metrics        *monitor.Monitor
	rpcServer      *wiezenrpc.Server
	timers         *timer.Manager

	// The draft configuration staged for the next game. It lives only in
	// this process and is consumed at game creation.
	draftMutex sync.Mutex
	draft      *models.DraftConfig
}

func NewServer(addr, rpcAddr string, store persistence.Store) *Server {
	s := &Server{
		addr:           addr,
		gameService:    services.NewGameService(store),
		sessionManager: session.NewManager(),
		metrics:        monitor.NewMonitor("wiezen"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	s.broadcaster = broadcast.NewGameBroadcaster(s.sessionManager)

	s.timers = timer.NewManager()
	s.timers.Schedule(heartbeatInterval, heartbeatInterval, s.sweepWatchers)

	rpcServer, err := wiezenrpc.NewServer(rpcAddr)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer

	standingsService := wiezenrpc.NewStandingsService(s.gameService)
	rpc.Register(standingsService)

	return s
}

func (s *Server) Start() error {
	go s.rpcServer.Start()

	logger.Log.Infof("Score server listening on %s", s.addr)
	return http.ListenAndServe(s.addr, s.Handler())
}

func (s *Server) Shutdown() {
	s.timers.Stop()
	s.rpcServer.Stop()
}

// sweepWatchers pings every watcher; a failed write means the peer is gone
// and the session gets reaped. Read-loop cleanup races with this harmlessly,
// Remove is idempotent.
func (s *Server) sweepWatchers() {
	for _, sess := range s.sessionManager.All() {
		if err := sess.Send(network.EventPing, nil); err != nil {
			logger.Log.Infof("Reaping dead watcher session %s: %v", sess.GetID(), err)
			s.sessionManager.Remove(sess.GetID())
			sess.Close()
		}
	}
}

// Handler builds the HTTP surface. Split out from Start for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /game/start", s.handleStartGame)
	mux.HandleFunc("POST /game/end", s.handleEndGame)
	mux.HandleFunc("GET /game", s.handleGetGame)
	mux.HandleFunc("POST /round", s.handleAddRound)
	mux.HandleFunc("PUT /round/{number}", s.handleEditRound)
	mux.HandleFunc("DELETE /round/{number}", s.handleDeleteRound)
	mux.HandleFunc("POST /round/undo", s.handleUndoRound)
	mux.HandleFunc("GET /config", s.handleGetConfig)
	mux.HandleFunc("PUT /config", s.handlePutConfig)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.Handle("GET /metrics", s.metrics.Handler())
	return mux
}

type startGameRequest struct {
	PlayerNames []string            `json:"player_names"`
	Config      *models.DraftConfig `json:"config,omitempty"`
}

func (s *Server) handleStartGame(w http.ResponseWriter, r *http.Request) {
	var req startGameRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	draft := req.Config
	if draft == nil {
		// Fall back to the staged draft, consuming it.
		s.draftMutex.Lock()
		draft = s.draft
		s.draft = nil
		s.draftMutex.Unlock()
	}

	view, err := s.gameService.StartGame(req.PlayerNames, draft)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleEndGame(w http.ResponseWriter, r *http.Request) {
	game, err := s.gameService.ActiveGame()
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.gameService.EndGame(game.ID); err != nil {
		writeError(w, err)
		return
	}
	s.broadcaster.GameEnded(game.ID)
	writeJSON(w, http.StatusOK, map[string]uint{"game_id": game.ID})
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	game, err := s.gameService.ActiveGame()
	if err != nil {
		writeError(w, err)
		return
	}
	view, err := s.gameService.View(game.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleAddRound(w http.ResponseWriter, r *http.Request) {
	game, err := s.gameService.ActiveGame()
	if err != nil {
		writeError(w, err)
		return
	}
	var req models.RoundRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := s.gameService.AddRound(game.ID, req); err != nil {
		var verr *scoring.ValidationError
		if errors.As(err, &verr) {
			s.metrics.IncRoundsRejected()
		}
		writeError(w, err)
		return
	}
	s.metrics.IncRoundsRecorded()
	s.pushStandings(game.ID)

	view, err := s.gameService.View(game.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleEditRound(w http.ResponseWriter, r *http.Request) {
	number, err := roundNumber(r)
	if err != nil {
		writeError(w, err)
		return
	}
	game, err := s.gameService.ActiveGame()
	if err != nil {
		writeError(w, err)
		return
	}
	var req models.RoundRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	if err := s.gameService.EditRound(game.ID, number, req); err != nil {
		writeError(w, err)
		return
	}
	s.metrics.ObserveRecalc(time.Since(start))
	s.pushStandings(game.ID)

	view, err := s.gameService.View(game.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDeleteRound(w http.ResponseWriter, r *http.Request) {
	number, err := roundNumber(r)
	if err != nil {
		writeError(w, err)
		return
	}
	game, err := s.gameService.ActiveGame()
	if err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	if err := s.gameService.DeleteRound(game.ID, number); err != nil {
		writeError(w, err)
		return
	}
	s.metrics.ObserveRecalc(time.Since(start))
	s.pushStandings(game.ID)

	view, err := s.gameService.View(game.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleUndoRound(w http.ResponseWriter, r *http.Request) {
	game, err := s.gameService.ActiveGame()
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.gameService.UndoLastRound(game.ID); err != nil {
		writeError(w, err)
		return
	}
	s.pushStandings(game.ID)

	view, err := s.gameService.View(game.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	s.draftMutex.Lock()
	draft := s.draft
	s.draftMutex.Unlock()

	if draft == nil {
		writeJSON(w, http.StatusOK, scoring.DefaultRules())
		return
	}
	resolved, err := scoring.FromDraft(draft)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resolved)
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	// The rule table is frozen once a game runs; drafts can only be staged
	// between games.
	if _, err := s.gameService.ActiveGame(); err == nil {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "configuration cannot change while a game is active",
		})
		return
	}

	var draft models.DraftConfig
	if err := decodeBody(r, &draft); err != nil {
		writeError(w, err)
		return
	}
	// Validate eagerly so a broken draft never reaches game creation.
	if _, err := scoring.FromDraft(&draft); err != nil {
		writeError(w, err)
		return
	}

	s.draftMutex.Lock()
	s.draft = &draft
	s.draftMutex.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "staged"})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	gameID, err := s.watchTarget(r)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}

	wsConn := network.NewWSConnection(conn)
	sess := session.NewSession(uuid.New().String(), gameID, wsConn)
	s.sessionManager.Add(sess)
	s.metrics.IncWatchers()

	logger.Log.Infof("Watcher connected from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Watcher disconnected, session ID: %s", sess.GetID())
		s.sessionManager.Remove(sess.GetID())
		s.metrics.DecWatchers()
		wsConn.Close()
	}()

	// Greet with the current scoreboard.
	if standings, err := s.gameService.Standings(gameID); err == nil {
		rounds, _ := s.gameService.View(gameID)
		count := 0
		if rounds != nil {
			count = len(rounds.Rounds)
		}
		sess.Send(network.EventHello, models.StandingsUpdate{
			GameID:     gameID,
			Standings:  standings,
			RoundCount: count,
		})
	}

	wsConn.Listen()
}

func (s *Server) watchTarget(r *http.Request) (uint, error) {
	if raw := r.URL.Query().Get("game_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return 0, &scoring.ValidationError{Reason: "game_id must be a number"}
		}
		return uint(id), nil
	}
	game, err := s.gameService.ActiveGame()
	if err != nil {
		return 0, err
	}
	return game.ID, nil
}

func (s *Server) pushStandings(gameID uint) {
	standings, err := s.gameService.Standings(gameID)
	if err != nil {
		logger.Log.Warnf("Failed to load standings for broadcast: %v", err)
		return
	}
	view, err := s.gameService.View(gameID)
	if err != nil {
		logger.Log.Warnf("Failed to load game view for broadcast: %v", err)
		return
	}
	s.broadcaster.StandingsChanged(models.StandingsUpdate{
		GameID:     gameID,
		Standings:  standings,
		RoundCount: len(view.Rounds),
	})
}

func roundNumber(r *http.Request) (int, error) {
	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil || number < 1 {
		return 0, &scoring.ValidationError{Reason: "round number must be a positive integer"}
	}
	return number, nil
}

func decodeBody(r *http.Request, dst interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &scoring.ValidationError{Reason: "malformed request body"}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	var verr *scoring.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Reason})
	case errors.Is(err, scoring.ErrInvalidConfig):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, persistence.ErrRecordNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		logger.Log.Errorf("Internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
