package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/astralabs/astra/internal/llm"
)

// SQLiteStore is a SQLite-backed conversation store.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return store, nil
}

// migrate creates the database schema.
func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	-- Turns are append-only. seq gives a stable total order even when
	-- multiple turns share a timestamp (tool results land in batches).
	CREATE TABLE IF NOT EXISTS turns (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		conversation_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		tool_calls TEXT,
		tool_call_id TEXT,
		tool_name TEXT,
		timestamp TIMESTAMP NOT NULL,
		FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_turns_conversation ON turns(conversation_id, seq);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// AppendTurn appends a turn to a conversation, creating the
// conversation row if needed.
func (s *SQLiteStore) AppendTurn(conversationID string, turn Turn) error {
	now := time.Now().UTC()
	turnID, _ := uuid.NewV7()

	var toolCallsJSON any
	if len(turn.ToolCalls) > 0 {
		data, err := json.Marshal(turn.ToolCalls)
		if err != nil {
			return fmt.Errorf("marshal tool calls: %w", err)
		}
		toolCallsJSON = string(data)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT OR IGNORE INTO conversations (id, created_at, updated_at)
		VALUES (?, ?, ?)
	`, conversationID, now, now)
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO turns (id, seq, conversation_id, role, content, tool_calls, tool_call_id, tool_name, timestamp)
		VALUES (?,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM turns WHERE conversation_id = ?),
			?, ?, ?, ?, ?, ?, ?)
	`, turnID.String(), conversationID, conversationID,
		turn.Role, turn.Content, toolCallsJSON,
		nullable(turn.ToolCallID), nullable(turn.ToolName), now)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}

	_, err = tx.Exec(`UPDATE conversations SET updated_at = ? WHERE id = ?`, now, conversationID)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}

	return tx.Commit()
}

// GetTurns retrieves all turns of a conversation in insertion order.
func (s *SQLiteStore) GetTurns(conversationID string) ([]Turn, error) {
	rows, err := s.db.Query(`
		SELECT id, role, content, tool_calls, tool_call_id, tool_name, timestamp
		FROM turns
		WHERE conversation_id = ?
		ORDER BY seq ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	turns := []Turn{}
	for rows.Next() {
		var t Turn
		var toolCalls, toolCallID, toolName sql.NullString
		if err := rows.Scan(&t.ID, &t.Role, &t.Content, &toolCalls, &toolCallID, &toolName, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if toolCalls.Valid && toolCalls.String != "" {
			var calls []llm.ToolCall
			if err := json.Unmarshal([]byte(toolCalls.String), &calls); err != nil {
				return nil, fmt.Errorf("unmarshal tool calls for turn %s: %w", t.ID, err)
			}
			t.ToolCalls = calls
		}
		t.ToolCallID = toolCallID.String
		t.ToolName = toolName.String
		turns = append(turns, t)
	}

	return turns, rows.Err()
}

// GetConversation retrieves a conversation with its transcript.
// Returns nil (and no error) when the conversation does not exist.
func (s *SQLiteStore) GetConversation(id string) (*Conversation, error) {
	row := s.db.QueryRow(`
		SELECT id, created_at, updated_at FROM conversations WHERE id = ?
	`, id)

	var conv Conversation
	if err := row.Scan(&conv.ID, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query conversation: %w", err)
	}

	turns, err := s.GetTurns(id)
	if err != nil {
		return nil, err
	}
	conv.Turns = turns
	return &conv, nil
}

// ListConversations returns conversation metadata without transcripts,
// most recently updated first.
func (s *SQLiteStore) ListConversations() ([]Conversation, error) {
	rows, err := s.db.Query(`
		SELECT id, created_at, updated_at FROM conversations ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	convs := []Conversation{}
	for rows.Next() {
		var conv Conversation
		if err := rows.Scan(&conv.ID, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		convs = append(convs, conv)
	}

	return convs, rows.Err()
}

// Clear removes a conversation and its turns.
func (s *SQLiteStore) Clear(conversationID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM turns WHERE conversation_id = ?`, conversationID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM conversations WHERE id = ?`, conversationID); err != nil {
		return err
	}

	return tx.Commit()
}

// Stats returns storage statistics.
func (s *SQLiteStore) Stats() map[string]any {
	var convCount, turnCount int
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM conversations`).Scan(&convCount)
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM turns`).Scan(&turnCount)

	return map[string]any{
		"conversations": convCount,
		"turns":         turnCount,
		"storage":       "sqlite",
	}
}

// nullable converts an empty string to NULL for insertion.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
