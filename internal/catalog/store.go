// Package catalog stores recorded transcripts in SQLite so they can be
// listed, searched and replayed by ID.
//
// Only the two input documents and a few summary columns are kept.
// Nothing about a replay in progress is ever written here.
package catalog

import (
	"bytes"
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Mr-Dark-debug/tokenreplay/internal/transcript"
)

//go:embed schema.sql
var schemaFS embed.FS

var (
	// ErrNotFound is returned when no transcript has the requested ID.
	ErrNotFound = errors.New("transcript not found")
	// ErrInvalidDocument wraps decode failures on Insert.
	ErrInvalidDocument = errors.New("invalid document")
)

// Document names accepted by DBService.Document.
const (
	DocConversation = "conversation"
	DocMetrics      = "metrics"
)

// Store is the catalog's persistence interface.
type Store interface {
	// Insert validates and stores a conversation/metrics pair.
	Insert(ctx context.Context, name string, conversation, metrics []byte) (*Transcript, error)
	// Get returns the summary of one transcript.
	Get(ctx context.Context, id string) (*Transcript, error)
	// Document returns a stored document verbatim.
	Document(ctx context.Context, id, doc string) ([]byte, error)
	// List returns transcripts matching filter, newest first.
	List(ctx context.Context, filter Filter) ([]*Transcript, error)
	// SearchTurns finds turns whose prompt or response contains query.
	SearchTurns(ctx context.Context, query string, limit int) ([]*TurnHit, error)
	// Delete removes a transcript and its turns.
	Delete(ctx context.Context, id string) error

	Close() error
}

// Transcript summarises a stored conversation/metrics pair.
type Transcript struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Turns        int     `json:"turns"`
	ContextTurns int     `json:"context_turns"`
	SystemTokens int     `json:"system_tokens"`
	TotalCost    float64 `json:"total_cost"`
	CreatedAt    int64   `json:"created_at"` // Unix nanoseconds
}

// Filter narrows List.
type Filter struct {
	Name   string `json:"name,omitempty"` // substring match
	Since  *int64 `json:"since,omitempty"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// TurnHit is one turn matched by SearchTurns.
type TurnHit struct {
	TranscriptID  string  `json:"transcript_id"`
	Name          string  `json:"name"`
	Turn          int     `json:"turn"`
	UserPrompt    string  `json:"user_prompt"`
	AgentResponse string  `json:"agent_response"`
	ContextType   *string `json:"context_type,omitempty"`
	Cost          float64 `json:"cost"`
}

// DBService implements Store on SQLite.
type DBService struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string

	stmtInsertTranscript *sql.Stmt
	stmtInsertTurn       *sql.Stmt
}

// NewDBService opens the catalog at path and applies the schema. Use
// ":memory:" for a throwaway catalog.
func NewDBService(path string) (*DBService, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=ON", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening catalog at %s: %w", path, err)
	}

	// One connection: SQLite has a single writer, and an in-memory
	// database lives only as long as its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	svc := &DBService{db: db, path: path}

	if err := svc.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	if err := svc.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing statements: %w", err)
	}
	return svc, nil
}

func (s *DBService) initSchema() error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("reading embedded schema: %w", err)
	}
	if _, err := s.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

func (s *DBService) prepareStatements() error {
	var err error

	s.stmtInsertTranscript, err = s.db.Prepare(`
		INSERT INTO transcripts (transcript_id, name, conversation, metrics,
			turn_count, context_turns, system_tokens, total_cost, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing InsertTranscript: %w", err)
	}

	s.stmtInsertTurn, err = s.db.Prepare(`
		INSERT INTO transcript_turns (transcript_id, turn_index, user_prompt,
			agent_response, context_type, input_tokens, output_tokens, cost)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing InsertTurn: %w", err)
	}
	return nil
}

// Insert decodes both documents, so that nothing unreadable enters the
// catalog, and stores them with their turns in one transaction.
func (s *DBService) Insert(ctx context.Context, name string, conversation, metrics []byte) (*Transcript, error) {
	conv, err := transcript.DecodeConversation(bytes.NewReader(conversation))
	if err != nil {
		return nil, fmt.Errorf("%w: conversation: %w", ErrInvalidDocument, err)
	}
	m, err := transcript.DecodeMetrics(bytes.NewReader(metrics))
	if err != nil {
		return nil, fmt.Errorf("%w: metrics: %w", ErrInvalidDocument, err)
	}

	t := &Transcript{
		ID:           uuid.NewString(),
		Name:         name,
		Turns:        len(conv.Turns),
		ContextTurns: conv.ContextTurns(),
		SystemTokens: m.SystemTokens,
		TotalCost:    m.TotalCost,
		CreatedAt:    time.Now().UnixNano(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning insert transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.StmtContext(ctx, s.stmtInsertTranscript).ExecContext(ctx,
		t.ID, t.Name, conversation, metrics,
		t.Turns, t.ContextTurns, t.SystemTokens, t.TotalCost, t.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting transcript %s: %w", t.ID, err)
	}

	stmt := tx.StmtContext(ctx, s.stmtInsertTurn)
	for i, turn := range conv.Turns {
		var (
			contextType *string
			usage       transcript.TokenUsage
			cost        float64
		)
		if turn.Context != nil {
			ct := turn.Context.ContextType
			contextType = &ct
		}
		// Metrics may be shorter than the conversation; such turns are
		// stored without usage.
		if i < len(m.Metrics) {
			tm := m.Metrics[i]
			usage = tm.ConversationUsage
			cost = tm.ConversationCost
			if tm.ContextCost != nil {
				cost += *tm.ContextCost
			}
		}
		if _, err := stmt.ExecContext(ctx,
			t.ID, i, turn.UserPrompt, turn.AgentResponse, contextType,
			usage.InputTokens, usage.OutputTokens, cost,
		); err != nil {
			return nil, fmt.Errorf("inserting turn %d of %s: %w", i, t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transcript %s: %w", t.ID, err)
	}
	return t, nil
}

const selectTranscript = `SELECT transcript_id, name, turn_count, context_turns,
	system_tokens, total_cost, created_at FROM transcripts`

// Get returns the summary of one transcript.
func (s *DBService) Get(ctx context.Context, id string) (*Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectTranscript+` WHERE transcript_id = ?`, id)
	t, err := scanTranscript(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying transcript %s: %w", id, err)
	}
	return t, nil
}

// Document returns the stored conversation or metrics document.
func (s *DBService) Document(ctx context.Context, id, doc string) ([]byte, error) {
	var column string
	switch doc {
	case DocConversation:
		column = "conversation"
	case DocMetrics:
		column = "metrics"
	default:
		return nil, fmt.Errorf("unknown document %q", doc)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT `+column+` FROM transcripts WHERE transcript_id = ?`, id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s of %s: %w", doc, id, err)
	}
	return data, nil
}

// List returns transcripts matching filter, most recent first.
func (s *DBService) List(ctx context.Context, filter Filter) ([]*Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := selectTranscript + ` WHERE 1=1`
	args := make([]interface{}, 0)

	if filter.Name != "" {
		query += ` AND name LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(filter.Name)+"%")
	}
	if filter.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, *filter.Since)
	}

	query += ` ORDER BY created_at DESC, rowid DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	} else {
		query += ` LIMIT 100`
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing transcripts: %w", err)
	}
	defer rows.Close()

	var out []*Transcript
	for rows.Next() {
		t, err := scanTranscript(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transcript row: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SearchTurns matches query case-insensitively against prompts and
// responses.
func (s *DBService) SearchTurns(ctx context.Context, query string, limit int) ([]*TurnHit, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + escapeLike(query) + "%"

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT tt.transcript_id, t.name, tt.turn_index, tt.user_prompt,
			tt.agent_response, tt.context_type, tt.cost
		FROM transcript_turns tt
		INNER JOIN transcripts t ON t.transcript_id = tt.transcript_id
		WHERE tt.user_prompt LIKE ? ESCAPE '\' OR tt.agent_response LIKE ? ESCAPE '\'
		ORDER BY t.created_at DESC, tt.turn_index ASC
		LIMIT ?
	`, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("searching turns for %q: %w", query, err)
	}
	defer rows.Close()

	var hits []*TurnHit
	for rows.Next() {
		h := &TurnHit{}
		if err := rows.Scan(&h.TranscriptID, &h.Name, &h.Turn, &h.UserPrompt,
			&h.AgentResponse, &h.ContextType, &h.Cost); err != nil {
			return nil, fmt.Errorf("scanning turn row: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// Delete removes a transcript; its turns go with it.
func (s *DBService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM transcripts WHERE transcript_id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting transcript %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Close releases prepared statements and the connection.
func (s *DBService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, stmt := range []*sql.Stmt{s.stmtInsertTranscript, s.stmtInsertTurn} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTranscript(row scanner) (*Transcript, error) {
	t := &Transcript{}
	if err := row.Scan(&t.ID, &t.Name, &t.Turns, &t.ContextTurns,
		&t.SystemTokens, &t.TotalCost, &t.CreatedAt); err != nil {
		return nil, err
	}
	return t, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
