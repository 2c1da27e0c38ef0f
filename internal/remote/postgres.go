package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// uniqueViolation is the SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// querier is the subset of pgxpool.Pool used by Postgres.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres implements Rows over a pgx pool. Every row is returned as
// row_to_json so callers see the same shape as the change feed.
type Postgres struct {
	db     querier
	schema Schema
	logger *zap.Logger
}

// NewPostgres creates a row store over db restricted to schema.
func NewPostgres(db querier, schema Schema, logger *zap.Logger) *Postgres {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Postgres{db: db, schema: schema, logger: logger}
}

// Get returns one row by id, or ErrNotFound.
func (p *Postgres) Get(ctx context.Context, table, id string) (Row, error) {
	sql, args, err := p.buildSelect(table, Query{Where: []Filter{Eq("id", id)}, Limit: 1})
	if err != nil {
		return nil, err
	}
	row, err := scanRow(p.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", table, err)
	}
	return row, nil
}

// List returns the rows matching q.
func (p *Postgres) List(ctx context.Context, table string, q Query) ([]Row, error) {
	sql, args, err := p.buildSelect(table, q)
	if err != nil {
		return nil, err
	}
	rows, err := p.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()
	var out []Row
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		r, err := decodeRow(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	return out, nil
}

// Insert inserts row and returns it as stored.
func (p *Postgres) Insert(ctx context.Context, table string, row Row) (Row, error) {
	sql, args, err := p.buildInsert(table, row)
	if err != nil {
		return nil, err
	}
	out, err := scanRow(p.db.QueryRow(ctx, sql, args...))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return nil, fmt.Errorf("insert %s: %w (%s)", table, ErrConflict, pgErr.ConstraintName)
	}
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}
	return out, nil
}

// Update applies patch to the row with the given id and returns the new row.
func (p *Postgres) Update(ctx context.Context, table, id string, patch Row) (Row, error) {
	sql, args, err := p.buildUpdate(table, id, patch)
	if err != nil {
		return nil, err
	}
	out, err := scanRow(p.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", table, err)
	}
	return out, nil
}

// Delete removes the row with the given id. Deleting a missing row is not an error.
func (p *Postgres) Delete(ctx context.Context, table, id string) error {
	_, err := p.DeleteWhere(ctx, table, Eq("id", id))
	return err
}

// DeleteWhere removes every row matching f and reports how many were removed.
func (p *Postgres) DeleteWhere(ctx context.Context, table string, f Filter) (int64, error) {
	if err := p.schema.CheckColumn(table, f.Column); err != nil {
		return 0, err
	}
	sql := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", ident(table), ident(f.Column))
	tag, err := p.db.Exec(ctx, sql, f.Value)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", table, err)
	}
	p.logger.Debug("rows deleted", zap.String("table", table), zap.Int64("count", tag.RowsAffected()))
	return tag.RowsAffected(), nil
}

func (p *Postgres) buildSelect(table string, q Query) (string, []any, error) {
	if err := p.schema.CheckTable(table); err != nil {
		return "", nil, err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT row_to_json(t) FROM %s AS t", ident(table))
	args := make([]any, 0, len(q.Where))
	for i, f := range q.Where {
		if err := p.schema.CheckColumn(table, f.Column); err != nil {
			return "", nil, err
		}
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		args = append(args, f.Value)
		fmt.Fprintf(&b, "t.%s = $%d", ident(f.Column), len(args))
	}
	if q.OrderBy != "" {
		if err := p.schema.CheckColumn(table, q.OrderBy); err != nil {
			return "", nil, err
		}
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&b, " ORDER BY t.%s %s", ident(q.OrderBy), dir)
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}
	return b.String(), args, nil
}

func (p *Postgres) buildInsert(table string, row Row) (string, []any, error) {
	if err := p.schema.CheckTable(table); err != nil {
		return "", nil, err
	}
	if len(row) == 0 {
		return fmt.Sprintf("INSERT INTO %s AS t DEFAULT VALUES RETURNING row_to_json(t)", ident(table)), nil, nil
	}
	cols := sortedKeys(row)
	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		if err := p.schema.CheckColumn(table, c); err != nil {
			return "", nil, err
		}
		names[i] = ident(c)
		marks[i] = fmt.Sprintf("$%d", i+1)
		args[i] = row[c]
	}
	sql := fmt.Sprintf("INSERT INTO %s AS t (%s) VALUES (%s) RETURNING row_to_json(t)",
		ident(table), strings.Join(names, ", "), strings.Join(marks, ", "))
	return sql, args, nil
}

func (p *Postgres) buildUpdate(table, id string, patch Row) (string, []any, error) {
	if err := p.schema.CheckTable(table); err != nil {
		return "", nil, err
	}
	if len(patch) == 0 {
		return "", nil, errors.New("empty update patch")
	}
	cols := sortedKeys(patch)
	sets := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols)+1)
	for _, c := range cols {
		if c == "id" {
			continue
		}
		if err := p.schema.CheckColumn(table, c); err != nil {
			return "", nil, err
		}
		args = append(args, patch[c])
		sets = append(sets, fmt.Sprintf("%s = $%d", ident(c), len(args)))
	}
	if len(sets) == 0 {
		return "", nil, errors.New("empty update patch")
	}
	args = append(args, id)
	sql := fmt.Sprintf("UPDATE %s AS t SET %s WHERE t.id = $%d RETURNING row_to_json(t)",
		ident(table), strings.Join(sets, ", "), len(args))
	return sql, args, nil
}

func scanRow(r pgx.Row) (Row, error) {
	var raw []byte
	if err := r.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decodeRow(raw)
}

func decodeRow(raw []byte) (Row, error) {
	var r Row
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	return r, nil
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}
