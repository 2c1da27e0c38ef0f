package remote

import (
	"fmt"
	"sort"
)

// Schema whitelists the tables and columns that may appear in generated SQL
// and in change-feed filters.
type Schema map[string]map[string]struct{}

// NewSchema builds a Schema from table -> columns.
func NewSchema(tables map[string][]string) Schema {
	s := make(Schema, len(tables))
	for t, cols := range tables {
		set := make(map[string]struct{}, len(cols))
		for _, c := range cols {
			set[c] = struct{}{}
		}
		s[t] = set
	}
	return s
}

// CheckTable returns ErrUnknownTable when table is not in the schema.
func (s Schema) CheckTable(table string) error {
	if _, ok := s[table]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	return nil
}

// CheckColumn returns ErrUnknownColumn when column is not part of table.
func (s Schema) CheckColumn(table, column string) error {
	cols, ok := s[table]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	if _, ok := cols[column]; !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, table, column)
	}
	return nil
}

// FanSchema is the layout created by the database migrations.
var FanSchema = NewSchema(map[string][]string{
	"hosts": {"id", "email", "branding_logo_url", "created_at"},
	"events": {
		"id", "host_id", "title", "status", "countdown", "countdown_active",
		"background_type", "background_value", "layout_type", "transition_speed",
		"post_transition", "auto_delete_minutes", "qr_url", "pending_posts",
		"created_at", "updated_at",
	},
	"submissions": {
		"id", "event_id", "nickname", "message", "photo_url", "photo_path",
		"status", "created_at",
	},
	"polls": {
		"id", "host_id", "title", "question", "options", "status", "countdown",
		"countdown_active", "duration", "layout", "background_type",
		"background_value", "qr_url", "created_at", "updated_at",
	},
	"poll_votes": {"id", "poll_id", "option_id", "voter_hash", "created_at"},
	"prize_wheels": {
		"id", "host_id", "title", "status", "countdown", "countdown_active",
		"background_type", "background_value", "spin_speed", "qr_url", "created_at", "updated_at",
	},
})

func sortedKeys(r Row) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
