package store

import (
	"fmt"
	"time"

	"axe/internal/logging"
)

// Message is one turn unit belonging to exactly one session. Messages are
// immutable once written; id order is chronological order.
type Message struct {
	ID        int64
	SessionID string
	Role      string
	Content   string
	CreatedAt time.Time
}

// Append durably writes one message and bumps the owning session's
// last_message_at in the same transaction.
func (s *Store) Append(sessionID, role, content string) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("append session=%s role=%s len=%d", sessionID, role, len(content))

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", ErrUnavailable, err)
	}
	defer tx.Rollback()

	msg := &Message{SessionID: sessionID, Role: role, Content: content}
	row := tx.QueryRow(
		`INSERT INTO messages (session_id, role, content) VALUES (?, ?, ?)
		 RETURNING id, created_at`,
		sessionID, role, content,
	)
	if err := row.Scan(&msg.ID, &msg.CreatedAt); err != nil {
		return nil, fmt.Errorf("%w: insert message: %v", ErrUnavailable, err)
	}

	if _, err := tx.Exec(
		`UPDATE sessions SET last_message_at = ? WHERE id = ?`,
		msg.CreatedAt, sessionID,
	); err != nil {
		return nil, fmt.Errorf("%w: touch session: %v", ErrUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrUnavailable, err)
	}
	return msg, nil
}

// Recent returns the last limit messages of a session in chronological order
// (oldest first), or all of them when fewer exist.
func (s *Store) Recent(sessionID string, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(
		`SELECT id, session_id, role, content, created_at
		 FROM messages WHERE session_id = ?
		 ORDER BY id DESC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query messages: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan message: %v", ErrUnavailable, err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: query messages: %v", ErrUnavailable, err)
	}

	// Query walked newest-first; flip to chronological.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
