// models/gorm_models.go
package models

import (
	"gorm.io/gorm"
)

// GormGame 牌局模型
type GormGame struct {
	gorm.Model
	IsActive bool `gorm:"index;default:true"`
}

// GormPlayer 玩家模型。座位顺序就是按 ID 升序。
type GormPlayer struct {
	gorm.Model
	GameID uint   `gorm:"index;not null"`
	Name   string `gorm:"not null"`
}

// GormRound 回合模型
type GormRound struct {
	gorm.Model
	GameID       uint     `gorm:"index;not null;uniqueIndex:idx_rounds_game_number"`
	Number       int      `gorm:"not null;uniqueIndex:idx_rounds_game_number"`
	ContractType Contract `gorm:"not null"`
	Result       Result   `gorm:"not null"`
	TrumpSuit    Suit
	Overtricks   int
	DealerID     uint `gorm:"not null"`
	SitterID     uint // 0 = no sitter (4-player game)
	MainPlayerID uint // 0 for Miserie rounds
	PartnerID    uint // 0 = no partner

	// Per-participant outcomes for Miserie rounds. Nil on rounds persisted
	// before this column existed; those recalculate to all-zero deltas.
	MiserieOutcomes MiserieOutcomes `gorm:"type:jsonb;serializer:json"`
}

// Declaration rebuilds the round's original declaration for rescoring.
func (r *GormRound) Declaration() RoundDeclaration {
	return RoundDeclaration{
		Contract:        r.ContractType,
		Result:          r.Result,
		MainPlayer:      r.MainPlayerID,
		Partner:         r.PartnerID,
		TrumpSuit:       r.TrumpSuit,
		Overtricks:      r.Overtricks,
		MiserieOutcomes: r.MiserieOutcomes,
	}
}

// GormScore 积分模型：每 (回合, 玩家) 一行。
// CurrentTotal is derived: previous round's total plus PointsChange.
type GormScore struct {
	gorm.Model
	GameID       uint `gorm:"index;not null;uniqueIndex:idx_scores_game_round_player"`
	RoundNumber  int  `gorm:"not null;uniqueIndex:idx_scores_game_round_player"`
	PlayerID     uint `gorm:"not null;uniqueIndex:idx_scores_game_round_player"`
	PointsChange int  `gorm:"not null"`
	CurrentTotal int  `gorm:"not null"`
}

// GormRuleConfig 计分规则配置，一局一行；缺省时使用默认值。
type GormRuleConfig struct {
	gorm.Model
	GameID uint `gorm:"uniqueIndex;not null"`

	VraagPartnerPoints int `gorm:"not null"`
	VraagSoloPoints    int `gorm:"not null"`
	TroelPoints        int `gorm:"not null"`
	AbondancePoints    int `gorm:"not null"`
	SoloPoints         int `gorm:"not null"`
	MiseriePoints      int `gorm:"not null"`
	GroteMiseriePoints int `gorm:"not null"`

	VraagPartnerMaxWon  int `gorm:"not null"`
	VraagPartnerMaxLost int `gorm:"not null"`
	VraagSoloMaxWon     int `gorm:"not null"`
	VraagSoloMaxLost    int `gorm:"not null"`
	TroelMaxWon         int `gorm:"not null"`
	TroelMaxLost        int `gorm:"not null"`
	AbondanceMaxWon     int `gorm:"not null"`
	AbondanceMaxLost    int `gorm:"not null"`
}
