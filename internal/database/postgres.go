package database

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/mdouchement/podote/internal/model"
	"github.com/pkg/errors"
)

var postgresDialect = dialect{
	name: DriverPostgres,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS todos (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			content    JSONB,
			done       BOOLEAN NOT NULL DEFAULT FALSE,
			order_key  BIGINT NOT NULL,
			is_removed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ,
			removed_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS todos_user_id_is_removed_order_key ON todos (user_id, is_removed, order_key)`,
	},
	rebind: func(query string) string {
		return query
	},
	// unnest keeps a fixed number of parameters whatever the number of ranks.
	batch: func(userID string, ranks []model.Rank) (string, []any) {
		ids := make([]string, 0, len(ranks))
		keys := make([]int64, 0, len(ranks))
		for _, r := range ranks {
			ids = append(ids, r.ID)
			keys = append(keys, int64(r.OrderKey))
		}

		query := "UPDATE todos AS t SET order_key = c.order_key" +
			" FROM unnest($2::text[], $3::bigint[]) AS c (id, order_key)" +
			" WHERE t.id = c.id AND t.user_id = $1 AND NOT t.is_removed"
		return query, []any{userID, pq.Array(ids), pq.Array(keys)}
	},
	lock: "SELECT pg_advisory_xact_lock(hashtext($1))",
}

// PostgresOpen returns a new PostgreSQL database connection and creates the schema if needed.
func PostgresOpen(dsn string) (Client, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "could not get database connection")
	}

	c := NewPostgres(db)
	if err := c.(*sqlDB).migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// NewPostgres returns a Client using the given PostgreSQL connection.
// The schema must already exist.
func NewPostgres(db *sql.DB) Client {
	return newSQL(db, postgresDialect)
}
