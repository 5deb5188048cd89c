// Package store persists chat sessions and their messages in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"aura-go/aura"
	"aura-go/internal/logger"
)

// DefaultTitle is given to sessions created without a title. TouchSession
// replaces it with the start of the first message.
const DefaultTitle = "New Conversation"

const (
	titleLimit  = 30
	titlePrefix = 27
)

// ErrNotFound is returned for an unknown session id.
var ErrNotFound = errors.New("session not found")

// Session is a stored conversation.
type Session struct {
	ID           string
	Title        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
	Pinned       bool
}

// Store wraps a SQLite database holding sessions and messages.
// It implements aura.ConversationStore.
type Store struct {
	db  *sql.DB
	log logger.Logger

	mu        sync.RWMutex
	closed    bool
	now       func() time.Time
	insertMsg *sql.Stmt
}

var _ aura.ConversationStore = (*Store)(nil)

// Option is a functional option for Store
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		s.log = l
	}
}

// Open opens (and initializes) the database file at path, creating parent
// directories as needed.
func Open(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, errors.New("database path must not be empty")
	}
	if dir := filepath.Dir(filepath.Clean(path)); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to ensure database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open conversation store: %w", err)
	}

	if err := bootstrap(db); err != nil {
		db.Close()
		return nil, err
	}

	insertMsg, err := db.Prepare(`INSERT INTO messages (id, session_id, content, from_user, created_at, token_count) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare insert statement: %w", err)
	}

	s := &Store{
		db:        db,
		log:       logger.Default(),
		now:       time.Now,
		insertMsg: insertMsg,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "store")
	s.log.Debug("conversation store opened", "path", path)
	return s, nil
}

func bootstrap(db *sql.DB) error {
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		return fmt.Errorf("failed to configure database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			message_count INTEGER NOT NULL DEFAULT 0,
			pinned INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			from_user INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			token_count INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at);
	`); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

func (s *Store) check() error {
	if s == nil || s.db == nil {
		return errors.New("conversation store is not initialized")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.New("conversation store is closed")
	}
	return nil
}

// CreateSession starts a new conversation. An empty title becomes DefaultTitle.
func (s *Store) CreateSession(ctx context.Context, title string) (Session, error) {
	if err := s.check(); err != nil {
		return Session{}, err
	}
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}

	now := s.now()
	sess := Session{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, title, created_at, updated_at, message_count, pinned) VALUES (?, ?, ?, ?, 0, 0)`,
		sess.ID, sess.Title, now.UnixNano(), now.UnixNano(),
	)
	if err != nil {
		return Session{}, fmt.Errorf("failed to create session: %w", err)
	}
	s.log.Debug("session created", "session", sess.ID)
	return sess, nil
}

// Session returns one session by id, or ErrNotFound.
func (s *Store) Session(ctx context.Context, id string) (Session, error) {
	if err := s.check(); err != nil {
		return Session{}, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, created_at, updated_at, message_count, pinned FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Session{}, fmt.Errorf("failed to read session: %w", err)
	}
	return sess, nil
}

// Sessions lists every session, pinned ones first, then most recently updated.
func (s *Store) Sessions(ctx context.Context) ([]Session, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, created_at, updated_at, message_count, pinned FROM sessions ORDER BY pinned DESC, updated_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session rows: %w", err)
	}
	return sessions, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(r scanner) (Session, error) {
	var (
		sess             Session
		created, updated int64
		pinned           int
	)
	if err := r.Scan(&sess.ID, &sess.Title, &created, &updated, &sess.MessageCount, &pinned); err != nil {
		return Session{}, err
	}
	sess.CreatedAt = time.Unix(0, created)
	sess.UpdatedAt = time.Unix(0, updated)
	sess.Pinned = pinned != 0
	return sess, nil
}

// AppendMessage stores msg, assigning an id and timestamp when they are unset.
func (s *Store) AppendMessage(ctx context.Context, msg aura.Message) (aura.Message, error) {
	if err := s.check(); err != nil {
		return aura.Message{}, err
	}
	if msg.SessionID == "" {
		return aura.Message{}, errors.New("session id must not be empty")
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}

	_, err := s.insertMsg.ExecContext(ctx,
		msg.ID, msg.SessionID, msg.Content, boolInt(msg.FromUser), msg.CreatedAt.UnixNano(), msg.TokenCount)
	if err != nil {
		return aura.Message{}, fmt.Errorf("failed to append message: %w", err)
	}
	return msg, nil
}

// Messages returns every message of a session, oldest first.
func (s *Store) Messages(ctx context.Context, sessionID string) ([]aura.Message, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.queryMessages(ctx,
		`SELECT id, session_id, content, from_user, created_at, token_count FROM messages
		 WHERE session_id = ? ORDER BY created_at ASC, rowid ASC`, sessionID)
}

// RecentTurns returns the last limit messages of a session, oldest first.
func (s *Store) RecentTurns(ctx context.Context, sessionID string, limit int) ([]aura.Turn, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	msgs, err := s.queryMessages(ctx,
		`SELECT id, session_id, content, from_user, created_at, token_count FROM (
			SELECT id, session_id, content, from_user, created_at, token_count, rowid AS seq FROM messages
			WHERE session_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?
		 ) ORDER BY created_at ASC, seq ASC`, sessionID, limit)
	if err != nil {
		return nil, err
	}

	turns := make([]aura.Turn, len(msgs))
	for i, m := range msgs {
		turns[i] = aura.Turn{Text: m.Content, FromUser: m.FromUser, CreatedAt: m.CreatedAt}
	}
	return turns, nil
}

// Search returns messages of any session containing query, newest first.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]aura.Message, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		return nil, errors.New("limit must be greater than zero")
	}
	return s.queryMessages(ctx,
		`SELECT id, session_id, content, from_user, created_at, token_count FROM messages
		 WHERE content LIKE ? ESCAPE '\' ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		"%"+escapeLike(query)+"%", limit)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (s *Store) queryMessages(ctx context.Context, query string, args ...any) ([]aura.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var msgs []aura.Message
	for rows.Next() {
		var (
			m        aura.Message
			fromUser int
			ts       int64
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Content, &fromUser, &ts, &m.TokenCount); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		m.FromUser = fromUser != 0
		m.CreatedAt = time.Unix(0, ts)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}
	return msgs, nil
}

// Rename sets a session's title.
func (s *Store) Rename(ctx context.Context, id, title string) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.updateSession(ctx, `UPDATE sessions SET title = ? WHERE id = ?`, title, id)
}

// SetPinned pins or unpins a session.
func (s *Store) SetPinned(ctx context.Context, id string, pinned bool) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.updateSession(ctx, `UPDATE sessions SET pinned = ? WHERE id = ?`, boolInt(pinned), id)
}

func (s *Store) updateSession(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, args[len(args)-1])
	}
	return nil
}

// DeleteSession removes a session and all its messages.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if err := s.check(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	s.log.Debug("session deleted", "session", id)
	return nil
}

// TouchSession recounts a session's messages and bumps its update time. A
// session still carrying DefaultTitle is renamed after its first message.
func (s *Store) TouchSession(ctx context.Context, id string) error {
	if err := s.check(); err != nil {
		return err
	}

	sess, err := s.Session(ctx, id)
	if err != nil {
		return err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE session_id = ?`, id).Scan(&count); err != nil {
		return fmt.Errorf("failed to count messages: %w", err)
	}

	title := sess.Title
	if title == DefaultTitle {
		var first string
		err := s.db.QueryRowContext(ctx,
			`SELECT content FROM messages WHERE session_id = ? ORDER BY created_at ASC, rowid ASC LIMIT 1`, id).Scan(&first)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("failed to read first message: %w", err)
		default:
			if t := TitleFrom(first); t != "" {
				title = t
			}
		}
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE sessions SET title = ?, message_count = ?, updated_at = ? WHERE id = ?`,
		title, count, s.now().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// TitleFrom derives a session title from a message: messages over 30
// characters keep their first 27 followed by "...".
func TitleFrom(content string) string {
	content = strings.TrimSpace(content)
	runes := []rune(content)
	if len(runes) > titleLimit {
		return string(runes[:titlePrefix]) + "..."
	}
	return content
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.insertMsg != nil {
		errs = append(errs, s.insertMsg.Close())
	}
	errs = append(errs, s.db.Close())
	return errors.Join(errs...)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
