package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/meow-stack/chainplan/internal/remote"
	"github.com/meow-stack/chainplan/internal/store"
)

const (
	roleActive       = "active"
	roleBackgrounded = "backgrounded"
)

// SQLitePersister keeps the snapshot in a SQLite database. Plans are stored
// as JSON documents keyed by plan id and role.
type SQLitePersister struct {
	db *sql.DB
}

// NewSQLitePersister opens or creates the database at path.
func NewSQLitePersister(path string) (*SQLitePersister, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating state dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One writer; SQLite serializes anyway.
	db.SetMaxOpenConns(1)

	queries := []string{
		`CREATE TABLE IF NOT EXISTS plans (
			plan_id TEXT NOT NULL,
			role TEXT NOT NULL,
			backgrounded_at TEXT,
			response TEXT,
			PRIMARY KEY (plan_id, role)
		);`,
		`CREATE TABLE IF NOT EXISTS cancelled_plans (
			plan_id TEXT PRIMARY KEY
		);`,
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT
		);`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}
	return &SQLitePersister{db: db}, nil
}

// Load implements Persister.
func (p *SQLitePersister) Load(ctx context.Context) (*store.Snapshot, error) {
	snap := &store.Snapshot{}

	rows, err := p.db.QueryContext(ctx,
		`SELECT plan_id, role, backgrounded_at, response FROM plans ORDER BY role, plan_id`)
	if err != nil {
		return nil, fmt.Errorf("querying plans: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var planID, role string
		var at, doc sql.NullString
		if err := rows.Scan(&planID, &role, &at, &doc); err != nil {
			return nil, fmt.Errorf("scanning plan: %w", err)
		}
		resp, err := decodeResponse(doc)
		if err != nil {
			return nil, fmt.Errorf("decoding plan %s: %w", planID, err)
		}

		switch role {
		case roleActive:
			snap.ActivePlan = resp
		case roleBackgrounded:
			rec := store.BackgroundedRecord{PlanID: planID, LastKnown: resp}
			if at.Valid {
				rec.BackgroundedAt, _ = time.Parse(time.RFC3339Nano, at.String)
			}
			snap.Backgrounded = append(snap.Backgrounded, rec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	cancelled, err := p.db.QueryContext(ctx, `SELECT plan_id FROM cancelled_plans ORDER BY plan_id`)
	if err != nil {
		return nil, fmt.Errorf("querying cancelled plans: %w", err)
	}
	defer cancelled.Close()
	for cancelled.Next() {
		var id string
		if err := cancelled.Scan(&id); err != nil {
			return nil, err
		}
		snap.Cancelled = append(snap.Cancelled, id)
	}
	if err := cancelled.Err(); err != nil {
		return nil, err
	}

	var savedAt sql.NullString
	err = p.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'saved_at'`).Scan(&savedAt)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if savedAt.Valid {
		snap.SavedAt, _ = time.Parse(time.RFC3339Nano, savedAt.String)
	}
	return snap, nil
}

// Save implements Persister. The snapshot replaces the stored one in a
// single transaction.
func (p *SQLitePersister) Save(ctx context.Context, snap *store.Snapshot) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{`DELETE FROM plans`, `DELETE FROM cancelled_plans`} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return err
		}
	}

	insert := `INSERT INTO plans (plan_id, role, backgrounded_at, response) VALUES (?, ?, ?, ?)`
	if snap.ActivePlan != nil {
		doc, err := json.Marshal(snap.ActivePlan)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, insert, snap.ActivePlan.PlanID, roleActive, nil, string(doc)); err != nil {
			return fmt.Errorf("saving active plan: %w", err)
		}
	}
	for _, rec := range snap.Backgrounded {
		var doc any
		if rec.LastKnown != nil {
			data, err := json.Marshal(rec.LastKnown)
			if err != nil {
				return err
			}
			doc = string(data)
		}
		at := rec.BackgroundedAt.UTC().Format(time.RFC3339Nano)
		if _, err := tx.ExecContext(ctx, insert, rec.PlanID, roleBackgrounded, at, doc); err != nil {
			return fmt.Errorf("saving backgrounded plan %s: %w", rec.PlanID, err)
		}
	}
	for _, id := range snap.Cancelled {
		if _, err := tx.ExecContext(ctx, `INSERT INTO cancelled_plans (plan_id) VALUES (?)`, id); err != nil {
			return fmt.Errorf("saving cancelled plan %s: %w", id, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES ('saved_at', ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		snap.SavedAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return err
	}
	return tx.Commit()
}

// Close implements Persister.
func (p *SQLitePersister) Close() error {
	return p.db.Close()
}

func decodeResponse(doc sql.NullString) (*remote.PlanResponse, error) {
	if !doc.Valid || doc.String == "" {
		return nil, nil
	}
	var resp remote.PlanResponse
	if err := json.Unmarshal([]byte(doc.String), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
