package rpc

import (
	"net"
	"net/rpc"

	"github.com/wfunc/wiezen/logger"
	"github.com/wfunc/wiezen/models"
	"github.com/wfunc/wiezen/services"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server. Services are registered by the caller
// through net/rpc before Start.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// StandingsService exposes the scoreboard to sibling processes over net/rpc.
type StandingsService struct {
	gameService *services.GameService
}

func NewStandingsService(gs *services.GameService) *StandingsService {
	return &StandingsService{gameService: gs}
}

type StandingsArgs struct {
	GameID uint
}

type StandingsReply struct {
	Standings []models.Standing
}

func (ss *StandingsService) GetStandings(args *StandingsArgs, reply *StandingsReply) error {
	standings, err := ss.gameService.Standings(args.GameID)
	if err != nil {
		return err
	}
	reply.Standings = standings
	return nil
}

type ActiveGameArgs struct{}

type ActiveGameReply struct {
	GameID uint
}

func (ss *StandingsService) GetActiveGame(args *ActiveGameArgs, reply *ActiveGameReply) error {
	game, err := ss.gameService.ActiveGame()
	if err != nil {
		return err
	}
	reply.GameID = game.ID
	return nil
}
