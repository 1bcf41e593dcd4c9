package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/beaverai/beaver/internal/project/models"
)

// SQLRepository stores the project domain in a relational database. Writes
// go through the writer pool; reads go through the read-only pool so SQLite
// WAL readers do not contend with the single writer.
type SQLRepository struct {
	db *sqlx.DB // writer
	ro *sqlx.DB // reader
}

var _ Repository = (*SQLRepository)(nil)

// NewSQLRepository wraps existing connections (shared ownership) and
// initializes the schema.
func NewSQLRepository(writer, reader *sqlx.DB) (*SQLRepository, error) {
	repo := &SQLRepository{db: writer, ro: reader}
	if err := repo.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return repo, nil
}

// Close is a no-op; the connection pools are owned by the caller.
func (r *SQLRepository) Close() error { return nil }

func (r *SQLRepository) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT DEFAULT '',
		phase TEXT NOT NULL DEFAULT 'initialization',
		status TEXT NOT NULL DEFAULT 'active',
		sandbox_id TEXT DEFAULT '',
		preview_url TEXT DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		title TEXT DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		role TEXT NOT NULL,
		agent_type TEXT DEFAULT '',
		content TEXT NOT NULL,
		metadata TEXT DEFAULT '{}',
		created_at DATETIME NOT NULL,
		FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS sandbox_logs (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		command TEXT NOT NULL,
		stdout TEXT DEFAULT '',
		stderr TEXT DEFAULT '',
		exit_code INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_projects_user_id ON projects(user_id);
	CREATE INDEX IF NOT EXISTS idx_conversations_project_id ON conversations(project_id);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation_id ON messages(conversation_id);
	CREATE INDEX IF NOT EXISTS idx_sandbox_logs_project_id ON sandbox_logs(project_id);
	`
	_, err := r.db.Exec(schema)
	return err
}

// CreateProject inserts a new project, assigning an id when absent.
func (r *SQLRepository) CreateProject(ctx context.Context, project *models.Project) error {
	if project.ID == "" {
		project.ID = uuid.New().String()
	}
	if project.Status == "" {
		project.Status = models.ProjectActive
	}
	if project.Phase == "" {
		project.Phase = "initialization"
	}
	now := time.Now().UTC()
	project.CreatedAt = now
	project.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO projects (id, user_id, name, description, phase, status, sandbox_id, preview_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), project.ID, project.UserID, project.Name, project.Description, project.Phase, project.Status,
		project.SandboxID, project.PreviewURL, project.CreatedAt, project.UpdatedAt)
	return err
}

// GetProject retrieves a project by ID.
func (r *SQLRepository) GetProject(ctx context.Context, id string) (*models.Project, error) {
	project := &models.Project{}
	err := r.ro.GetContext(ctx, project, r.ro.Rebind(`
		SELECT id, user_id, name, description, phase, status, sandbox_id, preview_url, created_at, updated_at
		FROM projects WHERE id = ?
	`), id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project not found: %s", id)
	}
	return project, err
}

// UpdateProject updates an existing project.
func (r *SQLRepository) UpdateProject(ctx context.Context, project *models.Project) error {
	project.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE projects
		SET name = ?,
			description = ?,
			phase = ?,
			status = ?,
			sandbox_id = ?,
			preview_url = ?,
			updated_at = ?
		WHERE id = ?
	`), project.Name, project.Description, project.Phase, project.Status,
		project.SandboxID, project.PreviewURL, project.UpdatedAt, project.ID)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("project not found: %s", project.ID)
	}
	return nil
}

// DeleteProject deletes a project and, via cascading keys, its
// conversations, messages, and sandbox logs.
func (r *SQLRepository) DeleteProject(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM projects WHERE id = ?`), id)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("project not found: %s", id)
	}
	return nil
}

// ListProjects returns the user's projects, newest first.
func (r *SQLRepository) ListProjects(ctx context.Context, userID string) ([]*models.Project, error) {
	projects := []*models.Project{}
	err := r.ro.SelectContext(ctx, &projects, r.ro.Rebind(`
		SELECT id, user_id, name, description, phase, status, sandbox_id, preview_url, created_at, updated_at
		FROM projects WHERE user_id = ?
		ORDER BY created_at DESC
	`), userID)
	return projects, err
}

// CreateConversation inserts a new conversation.
func (r *SQLRepository) CreateConversation(ctx context.Context, conversation *models.Conversation) error {
	if conversation.ID == "" {
		conversation.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	conversation.CreatedAt = now
	conversation.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO conversations (id, project_id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`), conversation.ID, conversation.ProjectID, conversation.Title, conversation.CreatedAt, conversation.UpdatedAt)
	return err
}

// GetConversation retrieves a conversation by ID.
func (r *SQLRepository) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	conversation := &models.Conversation{}
	err := r.ro.GetContext(ctx, conversation, r.ro.Rebind(`
		SELECT id, project_id, title, created_at, updated_at
		FROM conversations WHERE id = ?
	`), id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("conversation not found: %s", id)
	}
	return conversation, err
}

// ListConversations returns a project's conversations, newest first.
func (r *SQLRepository) ListConversations(ctx context.Context, projectID string) ([]*models.Conversation, error) {
	conversations := []*models.Conversation{}
	err := r.ro.SelectContext(ctx, &conversations, r.ro.Rebind(`
		SELECT id, project_id, title, created_at, updated_at
		FROM conversations WHERE project_id = ?
		ORDER BY created_at DESC
	`), projectID)
	return conversations, err
}

// CreateMessage inserts a message; metadata is stored as JSON.
func (r *SQLRepository) CreateMessage(ctx context.Context, message *models.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	metadata := "{}"
	if message.Metadata != nil {
		encoded, err := json.Marshal(message.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode message metadata: %w", err)
		}
		metadata = string(encoded)
	}

	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO messages (id, conversation_id, role, agent_type, content, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), message.ID, message.ConversationID, message.Role, message.AgentType, message.Content, metadata, message.CreatedAt); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE conversations SET updated_at = ? WHERE id = ?
	`), message.CreatedAt, message.ConversationID)
	return err
}

// ListMessages returns a conversation's messages in chronological order.
func (r *SQLRepository) ListMessages(ctx context.Context, conversationID string, opts ListMessagesOptions) ([]*models.Message, error) {
	query := `
		SELECT id, conversation_id, role, agent_type, content, metadata, created_at
		FROM messages WHERE conversation_id = ?
	`
	args := []interface{}{conversationID}

	if opts.Before != "" {
		query += ` AND created_at < (SELECT created_at FROM messages WHERE id = ?)`
		args = append(args, opts.Before)
	}
	query += ` ORDER BY created_at ASC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := r.ro.QueryContext(ctx, r.ro.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []*models.Message{}
	for rows.Next() {
		message := &models.Message{}
		var metadata string
		if err := rows.Scan(&message.ID, &message.ConversationID, &message.Role,
			&message.AgentType, &message.Content, &metadata, &message.CreatedAt); err != nil {
			return nil, err
		}
		if metadata != "" && metadata != "{}" {
			if err := json.Unmarshal([]byte(metadata), &message.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode message metadata: %w", err)
			}
		}
		messages = append(messages, message)
	}
	return messages, rows.Err()
}

// CreateSandboxLog inserts a sandbox command log entry.
func (r *SQLRepository) CreateSandboxLog(ctx context.Context, log *models.SandboxLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO sandbox_logs (id, project_id, command, stdout, stderr, exit_code, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), log.ID, log.ProjectID, log.Command, log.Stdout, log.Stderr, log.ExitCode, log.CreatedAt)
	return err
}

// ListSandboxLogs returns a project's most recent sandbox logs.
func (r *SQLRepository) ListSandboxLogs(ctx context.Context, projectID string, limit int) ([]*models.SandboxLog, error) {
	if limit <= 0 {
		limit = 100
	}
	logs := []*models.SandboxLog{}
	err := r.ro.SelectContext(ctx, &logs, r.ro.Rebind(`
		SELECT id, project_id, command, stdout, stderr, exit_code, created_at
		FROM sandbox_logs WHERE project_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`), projectID, limit)
	return logs, err
}
