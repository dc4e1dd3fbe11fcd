// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"

	"github.com/wfunc/wiezen/models"
	"github.com/wfunc/wiezen/scoring"
)

// PostgreSQL 数据库实现（database/sql + lib/pq，不经过 GORM）
type PostgreSQL struct {
	db *sql.DB
}

const queryTimeout = 5 * time.Second

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	// 初始化表结构
	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS gorm_games (
            id SERIAL PRIMARY KEY,
            is_active BOOLEAN NOT NULL DEFAULT TRUE,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            deleted_at TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS gorm_players (
            id SERIAL PRIMARY KEY,
            game_id INTEGER NOT NULL,
            name VARCHAR(100) NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            deleted_at TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS gorm_rounds (
            id SERIAL PRIMARY KEY,
            game_id INTEGER NOT NULL,
            number INTEGER NOT NULL,
            contract_type VARCHAR(50) NOT NULL,
            result VARCHAR(20) NOT NULL,
            trump_suit VARCHAR(20),
            overtricks INTEGER NOT NULL DEFAULT 0,
            dealer_id INTEGER NOT NULL,
            sitter_id INTEGER NOT NULL DEFAULT 0,
            main_player_id INTEGER NOT NULL DEFAULT 0,
            partner_id INTEGER NOT NULL DEFAULT 0,
            miserie_outcomes JSONB,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            deleted_at TIMESTAMP,
            UNIQUE (game_id, number)
        )`,
		`CREATE TABLE IF NOT EXISTS gorm_scores (
            id SERIAL PRIMARY KEY,
            game_id INTEGER NOT NULL,
            round_number INTEGER NOT NULL,
            player_id INTEGER NOT NULL,
            points_change INTEGER NOT NULL,
            current_total INTEGER NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            deleted_at TIMESTAMP,
            UNIQUE (game_id, round_number, player_id)
        )`,
		`CREATE TABLE IF NOT EXISTS gorm_rule_configs (
            id SERIAL PRIMARY KEY,
            game_id INTEGER UNIQUE NOT NULL,
            vraag_partner_points INTEGER NOT NULL,
            vraag_solo_points INTEGER NOT NULL,
            troel_points INTEGER NOT NULL,
            abondance_points INTEGER NOT NULL,
            solo_points INTEGER NOT NULL,
            miserie_points INTEGER NOT NULL,
            grote_miserie_points INTEGER NOT NULL,
            vraag_partner_max_won INTEGER NOT NULL,
            vraag_partner_max_lost INTEGER NOT NULL,
            vraag_solo_max_won INTEGER NOT NULL,
            vraag_solo_max_lost INTEGER NOT NULL,
            troel_max_won INTEGER NOT NULL,
            troel_max_lost INTEGER NOT NULL,
            abondance_max_won INTEGER NOT NULL,
            abondance_max_lost INTEGER NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            deleted_at TIMESTAMP
        )`,
		`CREATE INDEX IF NOT EXISTS idx_gorm_players_game_id ON gorm_players(game_id)`,
		`CREATE INDEX IF NOT EXISTS idx_gorm_rounds_game_id ON gorm_rounds(game_id)`,
		`CREATE INDEX IF NOT EXISTS idx_gorm_scores_game_id ON gorm_scores(game_id)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (p *PostgreSQL) CreateGame(names []string, rules *scoring.RuleConfig) (*models.GormGame, []models.GormPlayer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE gorm_games SET is_active = FALSE WHERE is_active = TRUE`); err != nil {
		return nil, nil, err
	}

	var game models.GormGame
	game.IsActive = true
	if err := tx.QueryRowContext(ctx,
		`INSERT INTO gorm_games (is_active) VALUES (TRUE) RETURNING id`).Scan(&game.ID); err != nil {
		return nil, nil, err
	}

	var players []models.GormPlayer
	for _, name := range names {
		player := models.GormPlayer{GameID: game.ID, Name: name}
		if err := tx.QueryRowContext(ctx,
			`INSERT INTO gorm_players (game_id, name) VALUES ($1, $2) RETURNING id`,
			game.ID, name).Scan(&player.ID); err != nil {
			return nil, nil, err
		}
		players = append(players, player)
	}

	if rules != nil {
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO gorm_rule_configs (
                game_id,
                vraag_partner_points, vraag_solo_points, troel_points,
                abondance_points, solo_points, miserie_points, grote_miserie_points,
                vraag_partner_max_won, vraag_partner_max_lost,
                vraag_solo_max_won, vraag_solo_max_lost,
                troel_max_won, troel_max_lost,
                abondance_max_won, abondance_max_lost
            ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
			game.ID,
			rules.VraagPartnerPoints, rules.VraagSoloPoints, rules.TroelPoints,
			rules.AbondancePoints, rules.SoloPoints, rules.MiseriePoints, rules.GroteMiseriePoints,
			rules.VraagPartnerMaxWon, rules.VraagPartnerMaxLost,
			rules.VraagSoloMaxWon, rules.VraagSoloMaxLost,
			rules.TroelMaxWon, rules.TroelMaxLost,
			rules.AbondanceMaxWon, rules.AbondanceMaxLost); err != nil {
			return nil, nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return &game, players, nil
}

func (p *PostgreSQL) ActiveGame() (*models.GormGame, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var game models.GormGame
	err := p.db.QueryRowContext(ctx,
		`SELECT id, is_active FROM gorm_games
         WHERE is_active = TRUE AND deleted_at IS NULL
         ORDER BY id DESC LIMIT 1`).Scan(&game.ID, &game.IsActive)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &game, nil
}

func (p *PostgreSQL) GetGame(id uint) (*models.GormGame, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var game models.GormGame
	err := p.db.QueryRowContext(ctx,
		`SELECT id, is_active FROM gorm_games WHERE id = $1 AND deleted_at IS NULL`,
		id).Scan(&game.ID, &game.IsActive)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &game, nil
}

func (p *PostgreSQL) EndGame(id uint) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	res, err := p.db.ExecContext(ctx,
		`UPDATE gorm_games SET is_active = FALSE, updated_at = CURRENT_TIMESTAMP WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (p *PostgreSQL) Players(gameID uint) ([]models.GormPlayer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	rows, err := p.db.QueryContext(ctx,
		`SELECT id, game_id, name FROM gorm_players
         WHERE game_id = $1 AND deleted_at IS NULL ORDER BY id ASC`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var players []models.GormPlayer
	for rows.Next() {
		var player models.GormPlayer
		if err := rows.Scan(&player.ID, &player.GameID, &player.Name); err != nil {
			return nil, err
		}
		players = append(players, player)
	}
	return players, rows.Err()
}

func (p *PostgreSQL) Rounds(gameID uint) ([]models.GormRound, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, `
        SELECT id, game_id, number, contract_type, result, trump_suit,
               overtricks, dealer_id, sitter_id, main_player_id, partner_id,
               miserie_outcomes
        FROM gorm_rounds
        WHERE game_id = $1 AND deleted_at IS NULL
        ORDER BY number ASC`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.GormRound
	for rows.Next() {
		var round models.GormRound
		var trump sql.NullString
		var outcomes []byte
		if err := rows.Scan(&round.ID, &round.GameID, &round.Number,
			&round.ContractType, &round.Result, &trump, &round.Overtricks,
			&round.DealerID, &round.SitterID, &round.MainPlayerID,
			&round.PartnerID, &outcomes); err != nil {
			return nil, err
		}
		if trump.Valid {
			round.TrumpSuit = models.Suit(trump.String)
		}
		if outcomes != nil {
			if err := json.Unmarshal(outcomes, &round.MiserieOutcomes); err != nil {
				return nil, err
			}
		}
		result = append(result, round)
	}
	return result, rows.Err()
}

func (p *PostgreSQL) Scores(gameID uint) ([]models.GormScore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	rows, err := p.db.QueryContext(ctx, `
        SELECT id, game_id, round_number, player_id, points_change, current_total
        FROM gorm_scores
        WHERE game_id = $1 AND deleted_at IS NULL
        ORDER BY round_number ASC, player_id ASC`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []models.GormScore
	for rows.Next() {
		var s models.GormScore
		if err := rows.Scan(&s.ID, &s.GameID, &s.RoundNumber, &s.PlayerID,
			&s.PointsChange, &s.CurrentTotal); err != nil {
			return nil, err
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

func (p *PostgreSQL) Rules(gameID uint) (scoring.RuleConfig, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var cfg scoring.RuleConfig
	err := p.db.QueryRowContext(ctx, `
        SELECT vraag_partner_points, vraag_solo_points, troel_points,
               abondance_points, solo_points, miserie_points, grote_miserie_points,
               vraag_partner_max_won, vraag_partner_max_lost,
               vraag_solo_max_won, vraag_solo_max_lost,
               troel_max_won, troel_max_lost,
               abondance_max_won, abondance_max_lost
        FROM gorm_rule_configs WHERE game_id = $1`, gameID).Scan(
		&cfg.VraagPartnerPoints, &cfg.VraagSoloPoints, &cfg.TroelPoints,
		&cfg.AbondancePoints, &cfg.SoloPoints, &cfg.MiseriePoints, &cfg.GroteMiseriePoints,
		&cfg.VraagPartnerMaxWon, &cfg.VraagPartnerMaxLost,
		&cfg.VraagSoloMaxWon, &cfg.VraagSoloMaxLost,
		&cfg.TroelMaxWon, &cfg.TroelMaxLost,
		&cfg.AbondanceMaxWon, &cfg.AbondanceMaxLost)
	if err != nil {
		if err == sql.ErrNoRows {
			return scoring.DefaultRules(), nil
		}
		return scoring.RuleConfig{}, err
	}
	return cfg, nil
}

func (p *PostgreSQL) AppendRound(round *models.GormRound, scores []models.GormScore) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertRound(ctx, tx, round); err != nil {
		return err
	}
	if err := insertScores(ctx, tx, scores); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgreSQL) RewriteRounds(gameID uint, start int, removed []uint, rounds []models.GormRound, scores []models.GormScore) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM gorm_scores WHERE game_id = $1 AND round_number >= $2`,
		gameID, start); err != nil {
		return err
	}

	for _, id := range removed {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM gorm_rounds WHERE game_id = $1 AND id = $2`,
			gameID, id); err != nil {
			return err
		}
	}

	ordered := make([]models.GormRound, len(rounds))
	copy(ordered, rounds)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Number < ordered[j].Number })
	for i := range ordered {
		if err := updateRound(ctx, tx, &ordered[i]); err != nil {
			return err
		}
	}

	if err := insertScores(ctx, tx, scores); err != nil {
		return err
	}
	return tx.Commit()
}

func insertRound(ctx context.Context, tx *sql.Tx, round *models.GormRound) error {
	outcomes, err := marshalOutcomes(round.MiserieOutcomes)
	if err != nil {
		return err
	}
	return tx.QueryRowContext(ctx, `
        INSERT INTO gorm_rounds (
            game_id, number, contract_type, result, trump_suit, overtricks,
            dealer_id, sitter_id, main_player_id, partner_id, miserie_outcomes
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING id`,
		round.GameID, round.Number, round.ContractType, round.Result,
		nullSuit(round.TrumpSuit), round.Overtricks, round.DealerID,
		round.SitterID, round.MainPlayerID, round.PartnerID, outcomes).
		Scan(&round.ID)
}

func updateRound(ctx context.Context, tx *sql.Tx, round *models.GormRound) error {
	outcomes, err := marshalOutcomes(round.MiserieOutcomes)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
        UPDATE gorm_rounds SET
            number = $2, contract_type = $3, result = $4, trump_suit = $5,
            overtricks = $6, dealer_id = $7, sitter_id = $8,
            main_player_id = $9, partner_id = $10, miserie_outcomes = $11,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $1`,
		round.ID, round.Number, round.ContractType, round.Result,
		nullSuit(round.TrumpSuit), round.Overtricks, round.DealerID,
		round.SitterID, round.MainPlayerID, round.PartnerID, outcomes)
	return err
}

func insertScores(ctx context.Context, tx *sql.Tx, scores []models.GormScore) error {
	for _, s := range scores {
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO gorm_scores (game_id, round_number, player_id, points_change, current_total)
            VALUES ($1,$2,$3,$4,$5)`,
			s.GameID, s.RoundNumber, s.PlayerID, s.PointsChange, s.CurrentTotal); err != nil {
			return err
		}
	}
	return nil
}

func marshalOutcomes(outcomes models.MiserieOutcomes) (interface{}, error) {
	if outcomes == nil {
		return nil, nil
	}
	data, err := json.Marshal(outcomes)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func nullSuit(s models.Suit) interface{} {
	if s == "" {
		return nil
	}
	return string(s)
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
