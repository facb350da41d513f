package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"elicit/internal/interview"
)

// PostgresStore keeps session records in a single jsonb-backed table.
type PostgresStore struct {
	db         *sql.DB
	schemaOnce sync.Once
	schemaErr  error
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Close() error { return p.db.Close() }

func (p *PostgresStore) ensureSchema() error {
	p.schemaOnce.Do(func() {
		_, p.schemaErr = p.db.Exec(`CREATE TABLE IF NOT EXISTS interview_sessions (
			session_id TEXT PRIMARY KEY,
			record     JSONB NOT NULL,
			saved_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	})
	return p.schemaErr
}

func (p *PostgresStore) Save(sessionID string, s *interview.Session) error {
	if err := p.ensureSchema(); err != nil {
		return err
	}
	record, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sessionID, err)
	}
	_, err = p.db.Exec(`INSERT INTO interview_sessions (session_id, record, saved_at)
		VALUES ($1, $2, now())
		ON CONFLICT (session_id) DO UPDATE SET record = $2, saved_at = now()`,
		sessionID, record)
	return err
}

func (p *PostgresStore) Load(sessionID string) (*interview.Session, error) {
	if err := p.ensureSchema(); err != nil {
		return nil, err
	}
	var record []byte
	err := p.db.QueryRow(`SELECT record FROM interview_sessions WHERE session_id = $1`, sessionID).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interview.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	var s interview.Session
	if err := json.Unmarshal(record, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return &s, nil
}

func (p *PostgresStore) Delete(sessionID string) error {
	if err := p.ensureSchema(); err != nil {
		return err
	}
	res, err := p.db.Exec(`DELETE FROM interview_sessions WHERE session_id = $1`, sessionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return interview.ErrSessionNotFound
	}
	return nil
}

func (p *PostgresStore) List() ([]interview.StoredSessionInfo, error) {
	if err := p.ensureSchema(); err != nil {
		return nil, err
	}
	rows, err := p.db.Query(`SELECT session_id, record, saved_at FROM interview_sessions ORDER BY saved_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []interview.StoredSessionInfo
	for rows.Next() {
		var id string
		var record []byte
		var savedAt time.Time
		if err := rows.Scan(&id, &record, &savedAt); err != nil {
			return nil, err
		}
		var s interview.Session
		if err := json.Unmarshal(record, &s); err != nil {
			continue
		}
		infos = append(infos, describe(envelope{
			Meta:    meta{SessionID: id, SavedAt: savedAt.Format(time.RFC3339), Version: storeVersion},
			Session: &s,
		}))
	}
	return infos, rows.Err()
}

// NewFromEnv picks Postgres when dsn is set, the file store otherwise,
// falling back to files when the database is unreachable.
func NewFromEnv(dsn, dir string) (interview.SessionStore, error) {
	if strings.TrimSpace(dsn) != "" {
		s, err := NewPostgresStore(dsn)
		if err == nil {
			return s, nil
		}
		log.Printf("session store: postgres unreachable, using file store: %v", err)
	}
	return NewFileStore(dir)
}
