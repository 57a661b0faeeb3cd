package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const schema = `
CREATE TABLE IF NOT EXISTS knowledge_documents (
	id         TEXT PRIMARY KEY,
	deck_id    TEXT NOT NULL,
	source     TEXT NOT NULL,
	sequence   INTEGER NOT NULL,
	content    TEXT NOT NULL,
	embedding  BYTEA NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_knowledge_documents_deck ON knowledge_documents (deck_id);
`

// SQLStore keeps documents and their embeddings in a SQL database and ranks
// them by cosine similarity in process. The SQL is portable across the
// sqlite3 and pgx drivers.
type SQLStore struct {
	db       *sql.DB
	embedder Embedder
}

// NewSQLStore wraps an open database. Call Migrate before first use.
func NewSQLStore(db *sql.DB, embedder Embedder) *SQLStore {
	return &SQLStore{db: db, embedder: embedder}
}

// OpenSQLStore opens, pings and migrates the database behind driver and dsn.
func OpenSQLStore(ctx context.Context, driver, dsn string, embedder Embedder) (*SQLStore, error) {
	if driver == "" || dsn == "" {
		return nil, fmt.Errorf("knowledge store driver and DSN must be provided")
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open(%s): %w", driver, err)
	}
	s := NewSQLStore(db, embedder)
	if err := s.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the documents table if it does not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range splitStatements(schema) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate knowledge store: %w", err)
		}
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *SQLStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("knowledge store ping failed: %w", err)
	}
	return nil
}

// Close releases the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Index embeds docs and inserts them in one transaction.
func (s *SQLStore) Index(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed %d documents: %w", len(docs), err)
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin index transaction: %w", err)
	}
	defer tx.Rollback()

	const insert = `
		INSERT INTO knowledge_documents (id, deck_id, source, sequence, content, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	now := time.Now().UTC()
	for i, d := range docs {
		if len(vectors[i]) == 0 {
			return fmt.Errorf("document %d of deck %s: %w", d.Sequence, d.DeckID, ErrNoEmbedding)
		}
		blob := encodeVector(normalizeVector(vectors[i]))
		if _, err := tx.ExecContext(ctx, insert, uuid.NewString(), d.DeckID, d.Source, d.Sequence, d.Content, blob, now); err != nil {
			return fmt.Errorf("failed to insert knowledge document: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit index transaction: %w", err)
	}
	return nil
}

// Query ranks the stored documents of deckID, or of every deck when deckID is
// empty, against text.
func (s *SQLStore) Query(ctx context.Context, text, deckID string, k int) ([]Match, error) {
	if text == "" {
		return nil, fmt.Errorf("query text must not be empty")
	}
	if k <= 0 {
		k = DefaultTopK
	}

	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("query: %w", ErrNoEmbedding)
	}
	query := normalizeVector(vectors[0])

	rows, err := s.selectDocuments(ctx, deckID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			m    Match
			blob []byte
		)
		if err := rows.Scan(&m.ID, &m.Metadata.DeckID, &m.Metadata.Source, &m.Metadata.Sequence, &m.Content, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan knowledge document: %w", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", m.ID, err)
		}
		// Documents embedded with a different model cannot be compared.
		if len(vec) != len(query) {
			continue
		}
		m.Score = cosineSimilarity(query, vec)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read knowledge documents: %w", err)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (s *SQLStore) selectDocuments(ctx context.Context, deckID string) (*sql.Rows, error) {
	const cols = `SELECT id, deck_id, source, sequence, content, embedding FROM knowledge_documents`
	var (
		rows *sql.Rows
		err  error
	)
	if deckID == "" {
		rows, err = s.db.QueryContext(ctx, cols)
	} else {
		rows, err = s.db.QueryContext(ctx, cols+` WHERE deck_id = $1`, deckID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query knowledge documents: %w", err)
	}
	return rows, nil
}

// CountDeck returns the number of documents indexed for deckID.
func (s *SQLStore) CountDeck(ctx context.Context, deckID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge_documents WHERE deck_id = $1`, deckID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count knowledge documents: %w", err)
	}
	return n, nil
}

func splitStatements(script string) []string {
	var stmts []string
	start := 0
	for i, r := range script {
		if r != ';' {
			continue
		}
		if stmt := strings.TrimSpace(script[start:i]); stmt != "" {
			stmts = append(stmts, stmt)
		}
		start = i + 1
	}
	if stmt := strings.TrimSpace(script[start:]); stmt != "" {
		stmts = append(stmts, stmt)
	}
	return stmts
}
