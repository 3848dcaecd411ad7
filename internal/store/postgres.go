package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/tasklane/convo/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate creates the tables this service reads and writes. Users, tasks
// and applications are owned by the marketplace service; the CREATE IF NOT
// EXISTS statements only matter for standalone development databases.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			avatar_url TEXT NOT NULL DEFAULT '',
			api_token TEXT UNIQUE
		);

		CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			client_id UUID NOT NULL REFERENCES users(id)
		);

		CREATE TABLE IF NOT EXISTS applications (
			task_id TEXT NOT NULL REFERENCES tasks(id),
			provider_id UUID NOT NULL REFERENCES users(id),
			PRIMARY KEY (task_id, provider_id)
		);

		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			sender_id UUID NOT NULL,
			receiver_id UUID NOT NULL,
			content TEXT NOT NULL,
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE INDEX IF NOT EXISTS idx_messages_task_created ON messages(task_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender_id);
		CREATE INDEX IF NOT EXISTS idx_messages_receiver ON messages(receiver_id);
	`)
	return err
}

// GetUserByToken resolves a bearer token to its user.
func (s *PostgresStore) GetUserByToken(ctx context.Context, token string) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, avatar_url
		FROM users WHERE api_token = $1
	`, token).Scan(&user.ID, &user.FirstName, &user.LastName, &user.AvatarURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// GetUserByID retrieves a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, avatar_url
		FROM users WHERE id = $1
	`, id).Scan(&user.ID, &user.FirstName, &user.LastName, &user.AvatarURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// GetTask retrieves the authorization slice of a task.
func (s *PostgresStore) GetTask(ctx context.Context, taskID string) (*models.TaskRef, error) {
	task := &models.TaskRef{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, client_id FROM tasks WHERE id = $1
	`, taskID).Scan(&task.ID, &task.ClientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return task, nil
}

// HasApplication reports whether the user has applied to the task.
func (s *PostgresStore) HasApplication(ctx context.Context, taskID string, userID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM applications WHERE task_id = $1 AND provider_id = $2
		)
	`, taskID, userID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// InsertMessage persists a new message, assigning its ID and timestamp.
func (s *PostgresStore) InsertMessage(ctx context.Context, msg *models.Message) error {
	msg.ID = ulid.Make().String()
	msg.CreatedAt = time.Now().UTC()
	msg.IsRead = false

	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, task_id, sender_id, receiver_id, content, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, msg.ID, msg.TaskID, msg.SenderID, msg.ReceiverID, msg.Content, msg.IsRead, msg.CreatedAt)
	return err
}

// GetMessage retrieves a message by ID.
func (s *PostgresStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	msg := &models.Message{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, task_id, sender_id, receiver_id, content, is_read, created_at
		FROM messages WHERE id = $1
	`, id).Scan(&msg.ID, &msg.TaskID, &msg.SenderID, &msg.ReceiverID, &msg.Content, &msg.IsRead, &msg.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// ListTaskMessages returns all messages of a task thread, oldest first.
// Ascending order is load-bearing: clients render top to bottom and append
// live messages at the end.
func (s *PostgresStore) ListTaskMessages(ctx context.Context, taskID string) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, task_id, sender_id, receiver_id, content, is_read, created_at
		FROM messages WHERE task_id = $1
		ORDER BY created_at ASC, id ASC
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

// ListConversations returns one summary per task thread the user
// participates in, newest activity first. Threads are grouped by task id
// alone, matching the upstream behavior (see DESIGN.md).
func (s *PostgresStore) ListConversations(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (task_id)
			id, task_id, sender_id, receiver_id, content, is_read, created_at
		FROM messages
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY task_id, created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	latest, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	unread := map[string]int{}
	urows, err := s.pool.Query(ctx, `
		SELECT task_id, COUNT(*) FROM messages
		WHERE receiver_id = $1 AND is_read = FALSE
		GROUP BY task_id
	`, userID)
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
func (s *PostgresStore) MarkMessageRead(ctx context.Context, id string) (*models.Message, error) {
	msg := &models.Message{}
	err := s.pool.QueryRow(ctx, `
		UPDATE messages SET is_read = TRUE WHERE id = $1
		RETURNING id, task_id, sender_id, receiver_id, content, is_read, created_at
	`, id).Scan(&msg.ID, &msg.TaskID, &msg.SenderID, &msg.ReceiverID, &msg.Content, &msg.IsRead, &msg.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

func scanMessages(rows pgx.Rows) ([]models.Message, error) {
	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.TaskID, &msg.SenderID, &msg.ReceiverID,
			&msg.Content, &msg.IsRead, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
