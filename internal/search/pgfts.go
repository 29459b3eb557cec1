package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
// It computes tsvectors on the fly from the post documents, which is fine at
// the scale a single node serves.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

const postsCTE = `
	WITH posts AS (
		SELECT id,
			coalesce((SELECT string_agg(el, ' ')
				FROM jsonb_array_elements_text(doc->'content') el), '') AS content,
			coalesce(doc->>'theme', '') AS theme,
			coalesce(doc->>'status', '') AS status
		FROM docs_posts
	)`

// Search runs plainto_tsquery over the flattened post content, ranked with
// ts_rank and snippeted with ts_headline. Only approved posts match.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}

	where := fmt.Sprintf(
		"to_tsvector('english', content || ' ' || theme) @@ %s AND status = 'Approved'", tsQuery)
	if q.FilterTheme != "" {
		where += " AND theme = $2"
		args = append(args, q.FilterTheme)
	}

	countSQL := fmt.Sprintf("%s SELECT count(*) FROM posts WHERE %s", postsCTE, where)

	dataSQL := fmt.Sprintf(`%s
		SELECT id,
			ts_headline('english', content, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
			theme, status
		FROM posts
		WHERE %s
		ORDER BY ts_rank(to_tsvector('english', content || ' ' || theme), %s) DESC
		LIMIT %d OFFSET %d`,
		postsCTE, tsQuery, where, tsQuery, limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Snippet, &r.Theme, &r.Status); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all indexable posts for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]PostRecord, error) {
	rows, err := p.db.QueryContext(ctx, postsCTE+" SELECT id, content, theme, status FROM posts")
	if err != nil {
		return nil, fmt.Errorf("load posts: %w", err)
	}
	defer rows.Close()

	posts := make([]PostRecord, 0)
	for rows.Next() {
		var rec PostRecord
		if err := rows.Scan(&rec.ID, &rec.Content, &rec.Theme, &rec.Status); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}
