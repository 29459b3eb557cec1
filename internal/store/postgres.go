package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"tandem/api/internal/util"
)

// ErrConflict is returned when a write violates a storage-level unique
// constraint (e.g. duplicate username claimed by a concurrent request).
var ErrConflict = errors.New("unique constraint violated")

const stmtTimeout = 5 * time.Second

var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresStore backs collections with one JSONB table per collection.
// Patches compile to a single UPDATE ... RETURNING statement, so concurrent
// AddToSet calls on one document cannot lose elements.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Collection returns the collection backed by table docs_<name>.
func (s *PostgresStore) Collection(name string) Collection {
	if !identPattern.MatchString(name) {
		panic(fmt.Sprintf("invalid collection name %q", name))
	}
	return &pgCollection{db: s.db, table: "docs_" + name}
}

type pgCollection struct {
	db    *sql.DB
	table string
}

func (c *pgCollection) CreateOne(ctx context.Context, doc Doc) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, stmtTimeout)
	defer cancel()

	id := ID(doc)
	if id == "" {
		id = util.NewID("")
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal doc: %w", err)
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, doc)
		VALUES ($1, jsonb_set($2::jsonb, '{id}', to_jsonb($1::text), true))
	`, c.table)
	if _, err := c.db.ExecContext(ctx, query, id, string(raw)); err != nil {
		return "", wrapPgErr("insert doc", err)
	}
	return id, nil
}

func (c *pgCollection) ReadOne(ctx context.Context, filter Filter) (Doc, error) {
	ctx, cancel := context.WithTimeout(ctx, stmtTimeout)
	defer cancel()

	where, args, err := compileFilter(filter, 1)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT doc FROM %s WHERE %s ORDER BY seq LIMIT 1`, c.table, where)
	var raw []byte
	if err := c.db.QueryRowContext(ctx, query, args...).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoDoc
		}
		return nil, wrapPgErr("read doc", err)
	}
	return decodeDoc(raw)
}

func (c *pgCollection) ReadMany(ctx context.Context, filter Filter, opts ReadOptions) ([]Doc, error) {
	ctx, cancel := context.WithTimeout(ctx, stmtTimeout)
	defer cancel()

	where, args, err := compileFilter(filter, 1)
	if err != nil {
		return nil, err
	}
	order := "seq"
	if opts.SortNewestFirst {
		order = "seq DESC"
	}
	query := fmt.Sprintf(`SELECT doc FROM %s WHERE %s ORDER BY %s`, c.table, where, order)
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapPgErr("read docs", err)
	}
	defer rows.Close()

	docs := make([]Doc, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, wrapPgErr("scan doc", err)
		}
		doc, err := decodeDoc(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapPgErr("iterate docs", err)
	}
	return docs, nil
}

func (c *pgCollection) PartialUpdateOne(ctx context.Context, filter Filter, ops ...Op) (Doc, error) {
	ctx, cancel := context.WithTimeout(ctx, stmtTimeout)
	defer cancel()

	where, args, err := compileFilter(filter, 1)
	if err != nil {
		return nil, err
	}
	expr := "doc"
	argN := len(args) + 1
	for _, op := range ops {
		if err := validateOp(op); err != nil {
			return nil, err
		}
		if !identPattern.MatchString(op.Field) {
			return nil, fmt.Errorf("invalid field name %q", op.Field)
		}
		expr, args, argN, err = compileOp(expr, op, args, argN)
		if err != nil {
			return nil, err
		}
	}
	query := fmt.Sprintf(`
		UPDATE %s SET doc = %s, updated_at = NOW()
		WHERE id = (SELECT id FROM %s WHERE %s ORDER BY seq LIMIT 1)
		RETURNING doc
	`, c.table, expr, c.table, where)
	var raw []byte
	if err := c.db.QueryRowContext(ctx, query, args...).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoDoc
		}
		return nil, wrapPgErr("update doc", err)
	}
	return decodeDoc(raw)
}

func (c *pgCollection) DeleteOne(ctx context.Context, filter Filter) error {
	ctx, cancel := context.WithTimeout(ctx, stmtTimeout)
	defer cancel()

	where, args, err := compileFilter(filter, 1)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE id = (SELECT id FROM %s WHERE %s ORDER BY seq LIMIT 1)
	`, c.table, c.table, where)
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return wrapPgErr("delete doc", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNoDoc
	}
	return nil
}

// compileOp nests one patch op around the accumulated doc expression.
func compileOp(expr string, op Op, args []any, argN int) (string, []any, int, error) {
	path := fmt.Sprintf("'{%s}'", op.Field)
	field := fmt.Sprintf("COALESCE(%s->'%s', '[]'::jsonb)", expr, op.Field)
	switch op.Kind {
	case "set":
		raw, err := json.Marshal(op.Value)
		if err != nil {
			return "", nil, 0, fmt.Errorf("marshal patch value: %w", err)
		}
		out := fmt.Sprintf("jsonb_set(%s, %s, $%d::jsonb, true)", expr, path, argN)
		return out, append(args, string(raw)), argN + 1, nil
	case "push":
		raw, err := json.Marshal([]any{op.Value})
		if err != nil {
			return "", nil, 0, fmt.Errorf("marshal patch value: %w", err)
		}
		out := fmt.Sprintf("jsonb_set(%s, %s, %s || $%d::jsonb, true)", expr, path, field, argN)
		return out, append(args, string(raw)), argN + 1, nil
	case "addToSet":
		raw, err := json.Marshal([]any{op.Value})
		if err != nil {
			return "", nil, 0, fmt.Errorf("marshal patch value: %w", err)
		}
		out := fmt.Sprintf(
			"jsonb_set(%s, %s, CASE WHEN %s @> $%d::jsonb THEN %s ELSE %s || $%d::jsonb END, true)",
			expr, path, field, argN, field, field, argN,
		)
		return out, append(args, string(raw)), argN + 1, nil
	case "pull":
		raw, err := json.Marshal(op.Value)
		if err != nil {
			return "", nil, 0, fmt.Errorf("marshal patch value: %w", err)
		}
		out := fmt.Sprintf(
			"jsonb_set(%s, %s, (SELECT COALESCE(jsonb_agg(el), '[]'::jsonb) FROM jsonb_array_elements(%s) el WHERE el <> $%d::jsonb), true)",
			expr, path, field, argN,
		)
		return out, append(args, string(raw)), argN + 1, nil
	}
	return "", nil, 0, fmt.Errorf("unknown patch op %q", op.Kind)
}

func compileFilter(filter Filter, argN int) (string, []any, error) {
	if len(filter) == 0 {
		return "TRUE", nil, nil
	}
	var clauses []string
	var args []any
	for _, cond := range filter {
		if !identPattern.MatchString(cond.Field) {
			return "", nil, fmt.Errorf("invalid field name %q", cond.Field)
		}
		switch cond.Op {
		case "eq":
			if cond.Field == "id" {
				clauses = append(clauses, fmt.Sprintf("id = $%d", argN))
			} else {
				clauses = append(clauses, fmt.Sprintf("doc->>'%s' = $%d", cond.Field, argN))
			}
			args = append(args, fmt.Sprintf("%v", cond.Value))
			argN++
		case "contains":
			raw, err := json.Marshal([]any{cond.Value})
			if err != nil {
				return "", nil, fmt.Errorf("marshal filter value: %w", err)
			}
			clauses = append(clauses, fmt.Sprintf("doc->'%s' @> $%d::jsonb", cond.Field, argN))
			args = append(args, string(raw))
			argN++
		case "in":
			values, ok := cond.Value.([]string)
			if !ok {
				return "", nil, fmt.Errorf("in filter on %q requires string values", cond.Field)
			}
			if cond.Field == "id" {
				clauses = append(clauses, fmt.Sprintf("id = ANY($%d)", argN))
			} else {
				clauses = append(clauses, fmt.Sprintf("doc->>'%s' = ANY($%d)", cond.Field, argN))
			}
			args = append(args, values)
			argN++
		default:
			return "", nil, fmt.Errorf("unknown filter op %q", cond.Op)
		}
	}
	return strings.Join(clauses, " AND "), args, nil
}

func decodeDoc(raw []byte) (Doc, error) {
	var doc Doc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode doc: %w", err)
	}
	return doc, nil
}

func wrapPgErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w", op, ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}
