package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"credit-eligibility-workers/internal/common/config"

	_ "github.com/lib/pq"
)

type PostgresClient struct {
	DB *sql.DB
}

func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

// NewPostgresFromDB wraps an already opened handle, typically a sqlmock.
func NewPostgresFromDB(db *sql.DB) *PostgresClient {
	return &PostgresClient{DB: db}
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

func (c *PostgresClient) GetDB() *sql.DB {
	return c.DB
}

// WithTx runs fn in a transaction. The transaction is rolled back when fn
// returns an error and committed otherwise.
func (c *PostgresClient) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return WithTx(ctx, c.DB, fn)
}

func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// EnsureSchema creates the tables the workers read and write when they do
// not exist yet.
func (c *PostgresClient) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := c.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS beneficiaries (
		id                VARCHAR(32) PRIMARY KEY,
		name              VARCHAR(256) NOT NULL,
		phone             VARCHAR(20),
		email             VARCHAR(254),
		income_est        DOUBLE PRECISION,
		income_category   VARCHAR(50),
		case_type         VARCHAR(10),
		model_score       DOUBLE PRECISION,
		risk_band         VARCHAR(50),
		eligibility_label VARCHAR(50),
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS credit_score_logs (
		id             UUID PRIMARY KEY,
		beneficiary_id VARCHAR(32) NOT NULL REFERENCES beneficiaries(id) ON DELETE CASCADE,
		score          INTEGER NOT NULL,
		risk_band      VARCHAR(50) NOT NULL,
		eligibility    VARCHAR(50) NOT NULL,
		breakdown      JSONB NOT NULL,
		model_used     VARCHAR(100) NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS beneficiary_documents (
		beneficiary_id  VARCHAR(32) NOT NULL REFERENCES beneficiaries(id) ON DELETE CASCADE,
		doc_type        VARCHAR(20) NOT NULL,
		document_number VARCHAR(100) NOT NULL,
		image_path      TEXT,
		uploaded_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (beneficiary_id, doc_type)
	)`,
	`CREATE TABLE IF NOT EXISTS loan_applications (
		id             UUID PRIMARY KEY,
		beneficiary_id VARCHAR(32) NOT NULL REFERENCES beneficiaries(id) ON DELETE CASCADE,
		loan_amount    NUMERIC(12,2) NOT NULL,
		tenure_months  INTEGER NOT NULL,
		phone          VARCHAR(20) NOT NULL,
		email          VARCHAR(254) NOT NULL,
		status         VARCHAR(20) NOT NULL DEFAULT 'PENDING',
		route          VARCHAR(20),
		officer_id     VARCHAR(64),
		decision_notes TEXT NOT NULL DEFAULT '',
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS loan_history (
		id               UUID PRIMARY KEY,
		beneficiary_id   VARCHAR(32) NOT NULL REFERENCES beneficiaries(id) ON DELETE CASCADE,
		application_id   UUID REFERENCES loan_applications(id),
		amount           DOUBLE PRECISION NOT NULL,
		tenure           INTEGER NOT NULL,
		repayment_status VARCHAR(50) NOT NULL DEFAULT 'Pending',
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id          UUID PRIMARY KEY,
		entity_type VARCHAR(50) NOT NULL,
		entity_id   VARCHAR(64) NOT NULL,
		action      VARCHAR(50) NOT NULL,
		details     JSONB,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}
