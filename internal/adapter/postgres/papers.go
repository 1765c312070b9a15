package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/taskbridge/internal/domain"
	"github.com/Strob0t/taskbridge/internal/port/papers"
)

// PaperStore reads and writes paper translations.
type PaperStore struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewPaperStore creates a PaperStore. A positive timeout bounds each query.
func NewPaperStore(pool *pgxpool.Pool, timeout time.Duration) *PaperStore {
	return &PaperStore{pool: pool, timeout: timeout}
}

func (s *PaperStore) queryCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return ctx, func() {}
}

// Translation returns the stored translation of paperID in lang.
func (s *PaperStore) Translation(ctx context.Context, paperID int64, lang string) (*papers.Translation, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	var t papers.Translation
	err := s.pool.QueryRow(ctx,
		`SELECT paper_id, lang, text, url FROM paper_translations WHERE paper_id = $1 AND lang = $2`,
		paperID, lang,
	).Scan(&t.PaperID, &t.Lang, &t.Text, &t.URL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("translation %d/%s: %w", paperID, lang, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("query translation %d/%s: %w", paperID, lang, err)
	}
	return &t, nil
}

// UpsertTranslation stores t, replacing an existing translation of the
// same paper and language.
func (s *PaperStore) UpsertTranslation(ctx context.Context, t *papers.Translation) error {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO paper_translations (paper_id, lang, text, url)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (paper_id, lang) DO UPDATE
		 SET text = EXCLUDED.text, url = EXCLUDED.url, updated_at = now()`,
		t.PaperID, t.Lang, t.Text, t.URL,
	)
	if err != nil {
		return fmt.Errorf("upsert translation %d/%s: %w", t.PaperID, t.Lang, err)
	}
	return nil
}

// ListTranslations returns up to limit stored translations, most recently
// updated first. Text is omitted.
func (s *PaperStore) ListTranslations(ctx context.Context, limit int) ([]papers.Translation, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT paper_id, lang, url FROM paper_translations ORDER BY updated_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list translations: %w", err)
	}
	defer rows.Close()

	var out []papers.Translation
	for rows.Next() {
		var t papers.Translation
		if err := rows.Scan(&t.PaperID, &t.Lang, &t.URL); err != nil {
			return nil, fmt.Errorf("scan translation: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
