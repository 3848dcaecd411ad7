package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/tasklane/convo/internal/models"
)

// SQLiteStore handles SQLite database operations. It is the development
// fallback used when no DATABASE_URL is configured.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/convo.db".
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/convo.db"
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		avatar_url TEXT NOT NULL DEFAULT '',
		api_token TEXT UNIQUE
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS applications (
		task_id TEXT NOT NULL REFERENCES tasks(id),
		provider_id TEXT NOT NULL REFERENCES users(id),
		PRIMARY KEY (task_id, provider_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL,
		sender_id TEXT NOT NULL,
		receiver_id TEXT NOT NULL,
		content TEXT NOT NULL,
		is_read INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_task_created ON messages(task_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender_id);
	CREATE INDEX IF NOT EXISTS idx_messages_receiver ON messages(receiver_id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetUserByToken resolves a bearer token to its user.
func (s *SQLiteStore) GetUserByToken(ctx context.Context, token string) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, avatar_url
		FROM users WHERE api_token = ?
	`, token))
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, avatar_url
		FROM users WHERE id = ?
	`, id.String()))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var idStr string
	err := row.Scan(&idStr, &user.FirstName, &user.LastName, &user.AvatarURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	user.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetTask retrieves the authorization slice of a task.
func (s *SQLiteStore) GetTask(ctx context.Context, taskID string) (*models.TaskRef, error) {
	task := &models.TaskRef{}
	var clientStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, client_id FROM tasks WHERE id = ?
	`, taskID).Scan(&task.ID, &clientStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	task.ClientID, err = uuid.Parse(clientStr)
	if err != nil {
		return nil, err
	}
	return task, nil
}

// HasApplication reports whether the user has applied to the task.
func (s *SQLiteStore) HasApplication(ctx context.Context, taskID string, userID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM applications WHERE task_id = ? AND provider_id = ?
		)
	`, taskID, userID.String()).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// InsertMessage persists a new message, assigning its ID and timestamp.
func (s *SQLiteStore) InsertMessage(ctx context.Context, msg *models.Message) error {
	msg.ID = ulid.Make().String()
	msg.CreatedAt = time.Now().UTC()
	msg.IsRead = false

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, task_id, sender_id, receiver_id, content, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.TaskID, msg.SenderID.String(), msg.ReceiverID.String(),
		msg.Content, msg.IsRead, msg.CreatedAt)
	return err
}

// GetMessage retrieves a message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	return s.scanMessage(s.db.QueryRowContext(ctx, `
		SELECT id, task_id, sender_id, receiver_id, content, is_read, created_at
		FROM messages WHERE id = ?
	`, id))
}

func (s *SQLiteStore) scanMessage(row *sql.Row) (*models.Message, error) {
	msg := &models.Message{}
	var senderStr, receiverStr string
	err := row.Scan(&msg.ID, &msg.TaskID, &senderStr, &receiverStr,
		&msg.Content, &msg.IsRead, &msg.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if msg.SenderID, err = uuid.Parse(senderStr); err != nil {
		return nil, err
	}
	if msg.ReceiverID, err = uuid.Parse(receiverStr); err != nil {
		return nil, err
	}
	return msg, nil
}

// ListTaskMessages returns all messages of a task thread, oldest first.
func (s *SQLiteStore) ListTaskMessages(ctx context.Context, taskID string) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, sender_id, receiver_id, content, is_read, created_at
		FROM messages WHERE task_id = ?
		ORDER BY created_at ASC, id ASC
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return s.collectMessages(rows)
}

// ListConversations returns one summary per task thread, newest first.
// SQLite lacks DISTINCT ON, so the latest row per task is picked with a
// correlated subquery on (created_at, id). The subquery is restricted to
// the caller's own rows: the latest message of the whole task may belong
// to another participant pair, and must not hide the caller's thread.
func (s *SQLiteStore) ListConversations(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error) {
	id := userID.String()
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.task_id, m.sender_id, m.receiver_id, m.content, m.is_read, m.created_at
		FROM messages m
		WHERE (m.sender_id = ? OR m.receiver_id = ?)
		  AND m.id = (
			SELECT m2.id FROM messages m2
			WHERE m2.task_id = m.task_id
			  AND (m2.sender_id = ? OR m2.receiver_id = ?)
			ORDER BY m2.created_at DESC, m2.id DESC
			LIMIT 1
		  )
	`, id, id, id, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	latest, err := s.collectMessages(rows)
	if err != nil {
		return nil, err
	}

	unread := map[string]int{}
	urows, err := s.db.QueryContext(ctx, `
		SELECT task_id, COUNT(*) FROM messages
		WHERE receiver_id = ? AND is_read = 0
		GROUP BY task_id
	`, id)
	if err != nil {
		return nil, err
	}
	defer urows.Close()
	for urows.Next() {
		var taskID string
		var n int
		if err := urows.Scan(&taskID, &n); err != nil {
			return nil, err
		}
		unread[taskID] = n
	}
	if err := urows.Err(); err != nil {
		return nil, err
	}

	return buildSummaries(latest, unread, userID), nil
}

// MarkMessageRead sets is_read and returns the updated row.
func (s *SQLiteStore) MarkMessageRead(ctx context.Context, id string) (*models.Message, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE messages SET is_read = 1 WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return s.GetMessage(ctx, id)
}

func (s *SQLiteStore) collectMessages(rows *sql.Rows) ([]models.Message, error) {
	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		var senderStr, receiverStr string
		if err := rows.Scan(&msg.ID, &msg.TaskID, &senderStr, &receiverStr,
			&msg.Content, &msg.IsRead, &msg.CreatedAt); err != nil {
			return nil, err
		}
		var err error
		if msg.SenderID, err = uuid.Parse(senderStr); err != nil {
			return nil, err
		}
		if msg.ReceiverID, err = uuid.Parse(receiverStr); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
