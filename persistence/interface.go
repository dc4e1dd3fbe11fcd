// persistence/interface.go
package persistence

import (
	"fmt"

	"github.com/wfunc/wiezen/models"
	"github.com/wfunc/wiezen/scoring"
)

// Store 数据库接口。Mutating calls that touch several tables are atomic:
// an error leaves the ledger exactly as it was.
type Store interface {
	// CreateGame creates a game with its roster (seating order = creation
	// order) and an optional rule configuration, deactivating any game that
	// was still active. Nil rules means "use the defaults" and stores no row.
	CreateGame(names []string, rules *scoring.RuleConfig) (*models.GormGame, []models.GormPlayer, error)
	ActiveGame() (*models.GormGame, error)
	GetGame(id uint) (*models.GormGame, error)
	EndGame(id uint) error

	Players(gameID uint) ([]models.GormPlayer, error)
	Rounds(gameID uint) ([]models.GormRound, error)
	Scores(gameID uint) ([]models.GormScore, error)

	// Rules resolves the game's rule configuration, falling back to the
	// defaults when no row was ever persisted.
	Rules(gameID uint) (scoring.RuleConfig, error)

	// AppendRound stores a new round together with its score rows.
	AppendRound(round *models.GormRound, scores []models.GormScore) error

	// RewriteRounds applies a round mutation in one transaction: every score
	// row numbered >= start is dropped, the listed round rows are removed,
	// the given rounds are saved (renumbered tails included) and the
	// regenerated score rows inserted.
	RewriteRounds(gameID uint, start int, removed []uint, rounds []models.GormRound, scores []models.GormScore) error

	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = fmt.Errorf("record not found")
)
