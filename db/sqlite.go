// Package db persists prediction assessments in SQLite for audit and history
// queries.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"churnpredict/pipeline"
	"churnpredict/retention"
)

// Config controls the SQLite connection.
type Config struct {
	Path      string `yaml:"path"`
	EnableWAL bool   `yaml:"enable_wal"`
}

// Store is the predictions audit log.
type Store struct {
	db *sql.DB

	insertOnce sync.Once
	insert     *sql.Stmt
	insertErr  error
}

const schema = `
CREATE TABLE IF NOT EXISTS predictions (
    id TEXT PRIMARY KEY,
    customer_id TEXT,
    prediction TEXT NOT NULL,
    probability REAL,
    tier TEXT NOT NULL,
    advice TEXT,
    imputed TEXT,
    model_version TEXT,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_predictions_created ON predictions(created_at);
CREATE INDEX IF NOT EXISTS idx_predictions_customer ON predictions(customer_id, created_at);
`

// Open opens or creates the database and applies the schema.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("database path is required")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := cfg.Path + "?_busy_timeout=5000"
	if cfg.EnableWAL {
		dsn += "&_journal_mode=WAL&_synchronous=NORMAL"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) insertStmt() (*sql.Stmt, error) {
	s.insertOnce.Do(func() {
		s.insert, s.insertErr = s.db.Prepare(`
            INSERT OR REPLACE INTO predictions (
                id, customer_id, prediction, probability, tier, advice, imputed, model_version, created_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	})
	return s.insert, s.insertErr
}

// SavePrediction records one assessment.
func (s *Store) SavePrediction(ctx context.Context, a retention.Assessment) error {
	return s.SavePredictions(ctx, []retention.Assessment{a})
}

// SavePredictions records assessments in a single transaction.
func (s *Store) SavePredictions(ctx context.Context, assessments []retention.Assessment) error {
	if len(assessments) == 0 {
		return nil
	}
	stmt, err := s.insertStmt()
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, a := range assessments {
		advice, err := json.Marshal(a.Advice)
		if err != nil {
			return err
		}
		imputed, err := json.Marshal(a.Imputed)
		if err != nil {
			return err
		}
		var prob sql.NullFloat64
		if a.Probability != nil {
			prob = sql.NullFloat64{Float64: *a.Probability, Valid: true}
		}
		_, err = tx.Stmt(stmt).ExecContext(ctx,
			a.ID,
			a.CustomerID,
			string(a.Prediction),
			prob,
			string(a.Tier),
			string(advice),
			string(imputed),
			a.ModelVersion,
			a.CreatedAt.UTC().UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("insert prediction %s: %w", a.ID, err)
		}
	}
	return tx.Commit()
}

const selectColumns = `SELECT id, customer_id, prediction, probability, tier, advice, imputed, model_version, created_at
    FROM predictions`

// RecentPredictions returns up to limit assessments, newest first.
func (s *Store) RecentPredictions(ctx context.Context, limit int) ([]retention.Assessment, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	return scanAssessments(rows)
}

// CustomerPredictions returns the history of one customer, newest first.
func (s *Store) CustomerPredictions(ctx context.Context, customerID string, limit int) ([]retention.Assessment, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` WHERE customer_id = ? ORDER BY created_at DESC, id LIMIT ?`, customerID, limit)
	if err != nil {
		return nil, err
	}
	return scanAssessments(rows)
}

func scanAssessments(rows *sql.Rows) ([]retention.Assessment, error) {
	defer rows.Close()

	assessments := make([]retention.Assessment, 0)
	for rows.Next() {
		var (
			a                   retention.Assessment
			customerID, version sql.NullString
			prediction, tier    string
			prob                sql.NullFloat64
			advice, imputed     sql.NullString
			createdAt           int64
		)
		if err := rows.Scan(&a.ID, &customerID, &prediction, &prob, &tier, &advice, &imputed, &version, &createdAt); err != nil {
			return nil, err
		}
		a.CustomerID = customerID.String
		a.Prediction = pipeline.Label(prediction)
		a.Tier = retention.Tier(tier)
		a.ModelVersion = version.String
		a.CreatedAt = time.UnixMilli(createdAt).UTC()
		if prob.Valid {
			p := prob.Float64
			a.Probability = &p
		}
		if err := unmarshalList(advice, &a.Advice); err != nil {
			return nil, fmt.Errorf("prediction %s advice: %w", a.ID, err)
		}
		if err := unmarshalList(imputed, &a.Imputed); err != nil {
			return nil, fmt.Errorf("prediction %s imputed: %w", a.ID, err)
		}
		assessments = append(assessments, a)
	}
	return assessments, rows.Err()
}

func unmarshalList(text sql.NullString, out *[]string) error {
	if !text.Valid || text.String == "" || text.String == "null" {
		return nil
	}
	return json.Unmarshal([]byte(text.String), out)
}

// Stats summarises the audit log.
type Stats struct {
	Total  int                    `json:"total"`
	ByTier map[retention.Tier]int `json:"by_tier"`
}

// Stats counts stored assessments in total and per tier.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{ByTier: make(map[retention.Tier]int)}
	rows, err := s.db.QueryContext(ctx, `SELECT tier, COUNT(*) FROM predictions GROUP BY tier`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			tier  string
			count int
		)
		if err := rows.Scan(&tier, &count); err != nil {
			return stats, err
		}
		stats.ByTier[retention.Tier(tier)] = count
		stats.Total += count
	}
	return stats, rows.Err()
}

// Close releases the prepared statement and the database.
func (s *Store) Close() error {
	if s.insert != nil {
		s.insert.Close()
	}
	return s.db.Close()
}
