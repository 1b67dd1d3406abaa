package mapping

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/brifyai/pptx/internal/mapping"
	"github.com/brifyai/pptx/internal/matcher"
)

// PostgresStore expects a *sql.DB opened with the pgx stdlib driver.
type PostgresStore struct {
	db          *sql.DB
	schemaMu    sync.Mutex
	schemaReady bool
}

const schemaTimeout = 30 * time.Second

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("db is nil")
	}
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	if s.schemaReady {
		return nil
	}
	// The DDL outlives the caller that triggers it; a failure is retried
	// by the next call.
	ddlCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), schemaTimeout)
	defer cancel()
	_, err := s.db.ExecContext(ddlCtx, `
CREATE TABLE IF NOT EXISTS template_mappings (
    template_hash TEXT PRIMARY KEY,
    template_id TEXT NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    shape_mapping JSONB NOT NULL DEFAULT '{}'::jsonb,
    source TEXT NOT NULL DEFAULT '',
    analyzed_at TIMESTAMP WITH TIME ZONE NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS template_elements (
    template_hash TEXT NOT NULL REFERENCES template_mappings(template_hash) ON DELETE CASCADE,
    position INT NOT NULL,
    element_id TEXT NOT NULL,
    type TEXT NOT NULL,
    rect JSONB NOT NULL,
    style JSONB NOT NULL,
    confidence DOUBLE PRECISION NOT NULL,
    shape_id INT,
    user_corrected BOOLEAN NOT NULL DEFAULT FALSE,
    PRIMARY KEY (template_hash, element_id)
);
CREATE INDEX IF NOT EXISTS idx_template_mappings_analyzed_at ON template_mappings(analyzed_at DESC);
`)
	if err != nil {
		return fmt.Errorf("create mapping schema: %w", err)
	}
	s.schemaReady = true
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, hash string) (*mapping.Mapping, bool, error) {
	if s == nil {
		return nil, false, fmt.Errorf("store is nil")
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, false, err
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()
	return loadMapping(ctx, tx, strings.TrimSpace(hash), false)
}

// Save replaces the mapping and all of its elements in one transaction.
func (s *PostgresStore) Save(ctx context.Context, m *mapping.Mapping) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	if m == nil {
		return fmt.Errorf("mapping is nil")
	}
	hash := strings.TrimSpace(m.TemplateHash)
	if hash == "" {
		return fmt.Errorf("template hash is required")
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	shapes, err := json.Marshal(m.ShapeMapping)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO template_mappings (template_hash, template_id, name, shape_mapping, source, analyzed_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (template_hash)
DO UPDATE SET template_id=EXCLUDED.template_id, name=EXCLUDED.name, shape_mapping=EXCLUDED.shape_mapping,
              source=EXCLUDED.source, analyzed_at=EXCLUDED.analyzed_at, updated_at=EXCLUDED.updated_at
`, hash, m.TemplateID, m.Name, shapes, string(m.Source), m.AnalyzedAt.UTC(), time.Now()); err != nil {
		return fmt.Errorf("upsert mapping: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM template_elements WHERE template_hash=$1`, hash); err != nil {
		return fmt.Errorf("clear elements: %w", err)
	}
	for i, el := range m.Elements {
		rect, err := json.Marshal(el.Rect)
		if err != nil {
			return err
		}
		style, err := json.Marshal(el.Style)
		if err != nil {
			return err
		}
		var shapeID sql.NullInt64
		if el.ShapeID != nil {
			shapeID = sql.NullInt64{Int64: int64(*el.ShapeID), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO template_elements (template_hash, position, element_id, type, rect, style, confidence, shape_id, user_corrected)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`, hash, i, el.ID, string(el.Type), rect, style, el.Confidence, shapeID, el.UserCorrected); err != nil {
			return fmt.Errorf("insert element %s: %w", el.ID, err)
		}
	}
	return tx.Commit()
}

// Correct locks the mapping row so concurrent corrections of one template
// apply one after another.
func (s *PostgresStore) Correct(ctx context.Context, hash, elementID string, t matcher.ElementType) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("store is nil")
	}
	if err := s.ensureSchema(ctx); err != nil {
		return false, err
	}
	hash = strings.TrimSpace(hash)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	m, ok, err := loadMapping(ctx, tx, hash, true)
	if err != nil || !ok {
		return false, err
	}
	if !mapping.ApplyCorrection(m, elementID, t) {
		return false, nil
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE template_elements SET type=$3, user_corrected=TRUE WHERE template_hash=$1 AND element_id=$2
`, hash, elementID, string(t)); err != nil {
		return false, fmt.Errorf("update element: %w", err)
	}
	shapes, err := json.Marshal(m.ShapeMapping)
	if err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE template_mappings SET shape_mapping=$2, updated_at=$3 WHERE template_hash=$1
`, hash, shapes, time.Now()); err != nil {
		return false, fmt.Errorf("update shape mapping: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *PostgresStore) Delete(ctx context.Context, hash string) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("store is nil")
	}
	if err := s.ensureSchema(ctx); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM template_mappings WHERE template_hash=$1`, strings.TrimSpace(hash))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *PostgresStore) Exists(ctx context.Context, hash string) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("store is nil")
	}
	if err := s.ensureSchema(ctx); err != nil {
		return false, err
	}
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM template_mappings WHERE template_hash=$1`, strings.TrimSpace(hash)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (s *PostgresStore) List(ctx context.Context) ([]mapping.Summary, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT m.template_hash, m.template_id, m.name, m.analyzed_at, COUNT(e.element_id)
FROM template_mappings m
LEFT JOIN template_elements e ON e.template_hash = m.template_hash
GROUP BY m.template_hash
ORDER BY m.analyzed_at DESC, m.template_hash
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []mapping.Summary
	for rows.Next() {
		var sum mapping.Summary
		if err := rows.Scan(&sum.TemplateHash, &sum.TemplateID, &sum.Name, &sum.AnalyzedAt, &sum.ElementCount); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func loadMapping(ctx context.Context, tx *sql.Tx, hash string, forUpdate bool) (*mapping.Mapping, bool, error) {
	if hash == "" {
		return nil, false, nil
	}
	query := `SELECT template_id, name, shape_mapping, source, analyzed_at FROM template_mappings WHERE template_hash=$1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	m := &mapping.Mapping{TemplateHash: hash}
	var (
		shapes []byte
		source string
	)
	err := tx.QueryRowContext(ctx, query, hash).Scan(&m.TemplateID, &m.Name, &shapes, &source, &m.AnalyzedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	m.Source = mapping.Source(source)
	if err := json.Unmarshal(shapes, &m.ShapeMapping); err != nil {
		return nil, false, fmt.Errorf("decode shape mapping: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
SELECT element_id, type, rect, style, confidence, shape_id, user_corrected
FROM template_elements WHERE template_hash=$1 ORDER BY position
`, hash)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			el          mapping.Element
			typ         string
			rect, style []byte
			shapeID     sql.NullInt64
		)
		if err := rows.Scan(&el.ID, &typ, &rect, &style, &el.Confidence, &shapeID, &el.UserCorrected); err != nil {
			return nil, false, err
		}
		el.Type = matcher.ParseElementType(typ)
		if err := json.Unmarshal(rect, &el.Rect); err != nil {
			return nil, false, err
		}
		if err := json.Unmarshal(style, &el.Style); err != nil {
			return nil, false, err
		}
		if shapeID.Valid {
			id := int(shapeID.Int64)
			el.ShapeID = &id
		}
		m.Elements = append(m.Elements, el)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return m, true, nil
}
