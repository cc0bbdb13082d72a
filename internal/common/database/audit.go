package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// AuditEntry is one row of audit_log.
type AuditEntry struct {
	EntityType string
	EntityID   string
	Action     string
	Details    map[string]interface{}
}

// WriteAudit inserts an audit_log row and returns its id.
func WriteAudit(ctx context.Context, db Execer, entry AuditEntry) (string, error) {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		details = []byte("{}")
	}

	id := uuid.New().String()
	_, err = db.ExecContext(ctx, `
		INSERT INTO audit_log (id, entity_type, entity_id, action, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id,
		entry.EntityType,
		entry.EntityID,
		entry.Action,
		details,
		time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("insert audit log: %w", err)
	}
	return id, nil
}

// Postgres error classes checked by the workers.
const (
	pqForeignKeyViolation = "23503"
	pqUniqueViolation     = "23505"
)

func IsForeignKeyViolation(err error) bool {
	return hasPQCode(err, pqForeignKeyViolation)
}

func IsUniqueViolation(err error) bool {
	return hasPQCode(err, pqUniqueViolation)
}

func hasPQCode(err error, code string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == code
	}
	return false
}
