// persistence/gorm_postgresql.go
package persistence

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wfunc/wiezen/models"
	"github.com/wfunc/wiezen/scoring"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

// autoMigrate 自动迁移表结构
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.GormGame{},
		&models.GormPlayer{},
		&models.GormRound{},
		&models.GormScore{},
		&models.GormRuleConfig{},
	)
}

func (p *GormPostgreSQL) CreateGame(names []string, rules *scoring.RuleConfig) (*models.GormGame, []models.GormPlayer, error) {
	var game models.GormGame
	var players []models.GormPlayer

	err := p.db.Transaction(func(tx *gorm.DB) error {
		// 先停用所有进行中的牌局
		if err := tx.Model(&models.GormGame{}).Where("is_active = ?", true).
			Update("is_active", false).Error; err != nil {
			return err
		}

		game = models.GormGame{IsActive: true}
		if err := tx.Create(&game).Error; err != nil {
			return err
		}

		for _, name := range names {
			player := models.GormPlayer{GameID: game.ID, Name: name}
			if err := tx.Create(&player).Error; err != nil {
				return err
			}
			players = append(players, player)
		}

		if rules != nil {
			row := ruleConfigRow(game.ID, *rules)
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &game, players, nil
}

func (p *GormPostgreSQL) ActiveGame() (*models.GormGame, error) {
	var game models.GormGame
	if err := p.db.Where("is_active = ?", true).Order("id desc").First(&game).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &game, nil
}

func (p *GormPostgreSQL) GetGame(id uint) (*models.GormGame, error) {
	var game models.GormGame
	if err := p.db.First(&game, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &game, nil
}

func (p *GormPostgreSQL) EndGame(id uint) error {
	result := p.db.Model(&models.GormGame{}).Where("id = ?", id).Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// Players 返回按 ID 升序的玩家，即发牌轮转用的座位顺序。
func (p *GormPostgreSQL) Players(gameID uint) ([]models.GormPlayer, error) {
	var players []models.GormPlayer
	err := p.db.Where("game_id = ?", gameID).Order("id asc").Find(&players).Error
	return players, err
}

func (p *GormPostgreSQL) Rounds(gameID uint) ([]models.GormRound, error) {
	var rounds []models.GormRound
	err := p.db.Where("game_id = ?", gameID).Order("number asc").Find(&rounds).Error
	return rounds, err
}

func (p *GormPostgreSQL) Scores(gameID uint) ([]models.GormScore, error) {
	var scores []models.GormScore
	err := p.db.Where("game_id = ?", gameID).
		Order("round_number asc, player_id asc").Find(&scores).Error
	return scores, err
}

func (p *GormPostgreSQL) Rules(gameID uint) (scoring.RuleConfig, error) {
	var row models.GormRuleConfig
	if err := p.db.Where("game_id = ?", gameID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 旧牌局没有配置行，用默认值
			return scoring.DefaultRules(), nil
		}
		return scoring.RuleConfig{}, err
	}
	return ruleConfigFromRow(row), nil
}

func (p *GormPostgreSQL) AppendRound(round *models.GormRound, scores []models.GormScore) error {
	return p.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(round).Error; err != nil {
			return err
		}
		if len(scores) > 0 {
			if err := tx.Create(&scores).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *GormPostgreSQL) RewriteRounds(gameID uint, start int, removed []uint, rounds []models.GormRound, scores []models.GormScore) error {
	return p.db.Transaction(func(tx *gorm.DB) error {
		// 先删掉受影响的积分行
		if err := tx.Unscoped().
			Where("game_id = ? AND round_number >= ?", gameID, start).
			Delete(&models.GormScore{}).Error; err != nil {
			return err
		}

		if len(removed) > 0 {
			if err := tx.Unscoped().
				Where("game_id = ? AND id IN ?", gameID, removed).
				Delete(&models.GormRound{}).Error; err != nil {
				return err
			}
		}

		// Ascending save order keeps the (game, number) unique index happy
		// while a deleted round's tail shifts down.
		ordered := make([]models.GormRound, len(rounds))
		copy(ordered, rounds)
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].Number < ordered[j].Number })
		for i := range ordered {
			if err := tx.Save(&ordered[i]).Error; err != nil {
				return err
			}
		}

		if len(scores) > 0 {
			if err := tx.Create(&scores).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func ruleConfigRow(gameID uint, cfg scoring.RuleConfig) models.GormRuleConfig {
	return models.GormRuleConfig{
		GameID:              gameID,
		VraagPartnerPoints:  cfg.VraagPartnerPoints,
		VraagSoloPoints:     cfg.VraagSoloPoints,
		TroelPoints:         cfg.TroelPoints,
		AbondancePoints:     cfg.AbondancePoints,
		SoloPoints:          cfg.SoloPoints,
		MiseriePoints:       cfg.MiseriePoints,
		GroteMiseriePoints:  cfg.GroteMiseriePoints,
		VraagPartnerMaxWon:  cfg.VraagPartnerMaxWon,
		VraagPartnerMaxLost: cfg.VraagPartnerMaxLost,
		VraagSoloMaxWon:     cfg.VraagSoloMaxWon,
		VraagSoloMaxLost:    cfg.VraagSoloMaxLost,
		TroelMaxWon:         cfg.TroelMaxWon,
		TroelMaxLost:        cfg.TroelMaxLost,
		AbondanceMaxWon:     cfg.AbondanceMaxWon,
		AbondanceMaxLost:    cfg.AbondanceMaxLost,
	}
}

func ruleConfigFromRow(row models.GormRuleConfig) scoring.RuleConfig {
	return scoring.RuleConfig{
		VraagPartnerPoints:  row.VraagPartnerPoints,
		VraagSoloPoints:     row.VraagSoloPoints,
		TroelPoints:         row.TroelPoints,
		AbondancePoints:     row.AbondancePoints,
		SoloPoints:          row.SoloPoints,
		MiseriePoints:       row.MiseriePoints,
		GroteMiseriePoints:  row.GroteMiseriePoints,
		VraagPartnerMaxWon:  row.VraagPartnerMaxWon,
		VraagPartnerMaxLost: row.VraagPartnerMaxLost,
		VraagSoloMaxWon:     row.VraagSoloMaxWon,
		VraagSoloMaxLost:    row.VraagSoloMaxLost,
		TroelMaxWon:         row.TroelMaxWon,
		TroelMaxLost:        row.TroelMaxLost,
		AbondanceMaxWon:     row.AbondanceMaxWon,
		AbondanceMaxLost:    row.AbondanceMaxLost,
	}
}
