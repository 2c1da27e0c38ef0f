package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSelect(t *testing.T) {
	p := NewPostgres(nil, FanSchema, nil)

	sql, args, err := p.buildSelect("submissions", Query{
		Where:   []Filter{Eq("event_id", "w1"), Eq("status", "approved")},
		OrderBy: "created_at",
	})
	require.NoError(t, err)
	assert.Equal(t, `SELECT row_to_json(t) FROM "submissions" AS t WHERE t."event_id" = $1 AND t."status" = $2 ORDER BY t."created_at" ASC`, sql)
	assert.Equal(t, []any{"w1", "approved"}, args)

	sql, _, err = p.buildSelect("events", Query{Where: []Filter{Eq("id", "x")}, OrderBy: "created_at", Desc: true, Limit: 1})
	require.NoError(t, err)
	assert.Contains(t, sql, `ORDER BY t."created_at" DESC LIMIT 1`)
}

func TestBuildSelectRejectsUnknownNames(t *testing.T) {
	p := NewPostgres(nil, FanSchema, nil)

	_, _, err := p.buildSelect("users; drop table x", Query{})
	assert.ErrorIs(t, err, ErrUnknownTable)

	_, _, err = p.buildSelect("events", Query{Where: []Filter{Eq("1=1 OR id", "x")}})
	assert.ErrorIs(t, err, ErrUnknownColumn)

	_, _, err = p.buildSelect("events", Query{OrderBy: "nope"})
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestBuildInsert(t *testing.T) {
	p := NewPostgres(nil, FanSchema, nil)
	sql, args, err := p.buildInsert("submissions", Row{"status": "pending", "event_id": "w1", "message": "hi"})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "submissions" AS t ("event_id", "message", "status") VALUES ($1, $2, $3) RETURNING row_to_json(t)`, sql)
	assert.Equal(t, []any{"w1", "hi", "pending"}, args)

	_, _, err = p.buildInsert("submissions", Row{"bogus": 1})
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestBuildUpdate(t *testing.T) {
	p := NewPostgres(nil, FanSchema, nil)
	sql, args, err := p.buildUpdate("polls", "p1", Row{"status": "live", "countdown_active": false, "id": "ignored"})
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "polls" AS t SET "countdown_active" = $1, "status" = $2 WHERE t.id = $3 RETURNING row_to_json(t)`, sql)
	assert.Equal(t, []any{false, "live", "p1"}, args)

	_, _, err = p.buildUpdate("polls", "p1", Row{})
	assert.Error(t, err)
	_, _, err = p.buildUpdate("polls", "p1", Row{"id": "x"})
	assert.Error(t, err)
}
