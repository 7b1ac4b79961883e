package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/credo-protocol/credo-engine/internal/models"

	_ "github.com/lib/pq"
)

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(connStr string) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresStorage{db: db}

	err = s.initTables()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	return s, nil
}

// SaveScore 保存一次评分结果快照
func (s *PostgresStorage) SaveScore(ctx context.Context, address string, result models.ScoreResult, metrics models.WalletMetrics, version string) error {
	subScores, err := json.Marshal(result.SubScores)
	if err != nil {
		return fmt.Errorf("failed to marshal sub scores: %w", err)
	}
	metricsDoc, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	query := `
        INSERT INTO score_history (
            address, score, model_type, confidence,
            sub_scores, metrics, version, created_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8
        )
    `

	_, err = s.db.ExecContext(ctx, query,
		address,
		result.Score,
		result.ModelType,
		result.Confidence,
		subScores,
		metricsDoc,
		version,
		time.Now(),
	)

	if err != nil {
		return fmt.Errorf("failed to save score: %w", err)
	}

	return nil
}

// GetScoreHistory returns the most recent scores for an address, newest first.
func (s *PostgresStorage) GetScoreHistory(ctx context.Context, address string, limit int) ([]models.ScoreRecord, error) {
	query := `
        SELECT address, score, model_type, confidence, version, created_at
        FROM score_history
        WHERE address = $1
        ORDER BY created_at DESC
        LIMIT $2
    `

	rows, err := s.db.QueryContext(ctx, query, address, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query score history: %w", err)
	}
	defer rows.Close()

	var result []models.ScoreRecord
	for rows.Next() {
		var record models.ScoreRecord
		err := rows.Scan(
			&record.Address,
			&record.Score,
			&record.ModelType,
			&record.Confidence,
			&record.Version,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan score record: %w", err)
		}
		result = append(result, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating score history rows: %w", err)
	}

	return result, nil
}

// SaveSubmission 记录一次链上提交的结果
func (s *PostgresStorage) SaveSubmission(ctx context.Context, outcome models.SubmissionOutcome) error {
	query := `
        INSERT INTO submission_log (
            user_address, score, success, tx_hash, gas_used, error, created_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7
        )
    `

	_, err := s.db.ExecContext(ctx, query,
		outcome.User,
		outcome.Score,
		outcome.Success,
		outcome.TransactionHash,
		outcome.GasUsed,
		outcome.Error,
		time.Now(),
	)

	if err != nil {
		return fmt.Errorf("failed to save submission: %w", err)
	}

	return nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

func (s *PostgresStorage) initTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS score_history (
			id SERIAL PRIMARY KEY,
			address VARCHAR(64) NOT NULL,
			score INT NOT NULL,
			model_type VARCHAR(50),
			confidence NUMERIC(10, 4),
			sub_scores JSONB,
			metrics JSONB,
			version VARCHAR(16),
			created_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_score_history_address
			ON score_history (address, created_at DESC)`,

		`CREATE TABLE IF NOT EXISTS submission_log (
			id SERIAL PRIMARY KEY,
			user_address VARCHAR(64) NOT NULL,
			score INT NOT NULL,
			success BOOLEAN NOT NULL,
			tx_hash VARCHAR(80),
			gas_used BIGINT,
			error TEXT,
			created_at TIMESTAMP DEFAULT NOW()
		)`,
	}

	for _, query := range queries {
		_, err := s.db.Exec(query)
		if err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}
