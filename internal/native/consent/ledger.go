// Package consent records the user's decision to let calbridge access a
// CalDAV account. The ledger plays the role the operating system's privacy
// database plays for a native calendar store: once access is granted or denied
// the decision sticks until it is reset.
package consent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/teemow/calbridge/internal/calendar"
)

// Grant is one recorded decision
type Grant struct {
	Account   string
	Status    calendar.AuthorizationStatus
	DecidedAt time.Time
}

// Ledger stores decisions in a sqlite database
type Ledger struct {
	db *sql.DB
}

// Open opens (and creates if needed) the ledger database at path
func Open(path string) (*Ledger, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create consent directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open consent database: %w", err)
	}
	// a single connection keeps ":memory:" databases alive across calls
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping consent database: %w", err)
	}

	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate consent database: %w", err)
	}
	return l, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS grants (
			account TEXT PRIMARY KEY,
			status INTEGER NOT NULL,
			decided_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS grant_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			account TEXT NOT NULL,
			status INTEGER NOT NULL,
			decided_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_grant_history_account ON grant_history(account)`,
	}
	for _, m := range migrations {
		if _, err := l.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// Status returns the recorded decision for account, or StatusNotDetermined
// when none was recorded.
func (l *Ledger) Status(ctx context.Context, account string) (calendar.AuthorizationStatus, error) {
	var status int
	err := l.db.QueryRowContext(ctx, `SELECT status FROM grants WHERE account = ?`, account).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return calendar.StatusNotDetermined, nil
	}
	if err != nil {
		return calendar.StatusNotDetermined, fmt.Errorf("failed to read consent for account: %w", err)
	}
	return calendar.AuthorizationStatus(status), nil
}

// Record stores a decision, replacing any earlier one
func (l *Ledger) Record(ctx context.Context, account string, status calendar.AuthorizationStatus) error {
	now := time.Now().UTC()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin consent transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO grants (account, status, decided_at) VALUES (?, ?, ?)
		 ON CONFLICT(account) DO UPDATE SET status = excluded.status, decided_at = excluded.decided_at`,
		account, int(status), now); err != nil {
		return fmt.Errorf("failed to record consent: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO grant_history (account, status, decided_at) VALUES (?, ?, ?)`,
		account, int(status), now); err != nil {
		return fmt.Errorf("failed to record consent history: %w", err)
	}
	return tx.Commit()
}

// Reset forgets the decision for account, so the next handshake asks again
func (l *Ledger) Reset(ctx context.Context, account string) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM grants WHERE account = ?`, account); err != nil {
		return fmt.Errorf("failed to reset consent: %w", err)
	}
	return nil
}

// List returns the current decisions ordered by account
func (l *Ledger) List(ctx context.Context) ([]Grant, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT account, status, decided_at FROM grants ORDER BY account`)
	if err != nil {
		return nil, fmt.Errorf("failed to list consent: %w", err)
	}
	defer rows.Close()

	var grants []Grant
	for rows.Next() {
		var (
			g      Grant
			status int
		)
		if err := rows.Scan(&g.Account, &status, &g.DecidedAt); err != nil {
			return nil, fmt.Errorf("failed to scan consent: %w", err)
		}
		g.Status = calendar.AuthorizationStatus(status)
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// History returns how many decisions were ever recorded for account
func (l *Ledger) History(ctx context.Context, account string) (int, error) {
	var n int
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM grant_history WHERE account = ?`, account).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count consent history: %w", err)
	}
	return n, nil
}
