package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"axe/internal/logging"
)

// Session identifies one conversation thread. A session's working path is
// immutable after creation; last_message_at moves forward on every append.
type Session struct {
	ID            string
	Path          string
	Name          string
	CreatedAt     time.Time
	LastMessageAt time.Time
	MessageCount  int
}

// SessionFilter selects which sessions ListSessions returns relative to a
// working path.
type SessionFilter int

const (
	CurrentPath SessionFilter = iota
	OtherPaths
)

// CreateSession allocates a new session under path with a sequential display
// name scoped to that path ("Session 1", "Session 2", ...).
func (s *Store) CreateSession(path string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE path = ?`, path).Scan(&count); err != nil {
		return nil, fmt.Errorf("%w: count sessions: %v", ErrUnavailable, err)
	}

	sess := &Session{
		ID:   uuid.NewString(),
		Path: path,
		Name: fmt.Sprintf("Session %d", count+1),
	}
	row := s.db.QueryRow(
		`INSERT INTO sessions (id, path, name) VALUES (?, ?, ?)
		 RETURNING created_at, last_message_at`,
		sess.ID, sess.Path, sess.Name,
	)
	if err := row.Scan(&sess.CreatedAt, &sess.LastMessageAt); err != nil {
		return nil, fmt.Errorf("%w: create session: %v", ErrUnavailable, err)
	}

	logging.Session("created session id=%s path=%s name=%q", sess.ID, sess.Path, sess.Name)
	return sess, nil
}

// EnsureSession returns the most recent session for path, creating one when
// the path has never been used. This backs the implicit session on first
// message in a fresh working directory.
func (s *Store) EnsureSession(path string) (*Session, error) {
	s.mu.RLock()
	row := s.db.QueryRow(
		`SELECT id, path, name, created_at, last_message_at
		 FROM sessions WHERE path = ?
		 ORDER BY last_message_at DESC LIMIT 1`,
		path,
	)
	sess, err := scanSession(row)
	s.mu.RUnlock()

	if err == nil {
		return sess, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("%w: lookup session: %v", ErrUnavailable, err)
	}
	return s.CreateSession(path)
}

// GetSession loads one session by id.
func (s *Store) GetSession(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(
		`SELECT id, path, name, created_at, last_message_at
		 FROM sessions WHERE id = ?`, id,
	)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get session: %v", ErrUnavailable, err)
	}
	return sess, nil
}

// ListSessions returns sessions filtered against path, most recently active
// first, with message counts included for display.
func (s *Store) ListSessions(path string, filter SessionFilter) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	op := "="
	if filter == OtherPaths {
		op = "!="
	}
	rows, err := s.db.Query(
		`SELECT s.id, s.path, s.name, s.created_at, s.last_message_at,
		        (SELECT COUNT(*) FROM messages m WHERE m.session_id = s.id)
		 FROM sessions s
		 WHERE s.path `+op+` ?
		 ORDER BY s.last_message_at DESC`,
		path,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list sessions: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Path, &sess.Name, &sess.CreatedAt, &sess.LastMessageAt, &sess.MessageCount); err != nil {
			return nil, fmt.Errorf("%w: scan session: %v", ErrUnavailable, err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list sessions: %v", ErrUnavailable, err)
	}
	return sessions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var sess Session
	if err := row.Scan(&sess.ID, &sess.Path, &sess.Name, &sess.CreatedAt, &sess.LastMessageAt); err != nil {
		return nil, err
	}
	return &sess, nil
}
