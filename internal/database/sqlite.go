package database

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/mdouchement/podote/internal/model"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

var sqlitePlaceholder = regexp.MustCompile(`\$(\d+)`)

var sqliteDialect = dialect{
	name: DriverSQLite,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS todos (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			content    TEXT,
			done       BOOLEAN NOT NULL DEFAULT FALSE,
			order_key  INTEGER NOT NULL,
			is_removed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP,
			removed_at TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS todos_user_id_is_removed_order_key ON todos (user_id, is_removed, order_key)`,
	},
	rebind: func(query string) string {
		return sqlitePlaceholder.ReplaceAllString(query, "?$1")
	},
	// UPDATE ... FROM requires SQLite 3.33.0.
	// VALUES columns cannot be aliased so they are referenced as column1, column2.
	batch: func(userID string, ranks []model.Rank) (string, []any) {
		values := make([]string, 0, len(ranks))
		args := make([]any, 0, 2*len(ranks)+1)
		args = append(args, userID)
		for _, r := range ranks {
			values = append(values, fmt.Sprintf("($%d, $%d)", len(args)+1, len(args)+2))
			args = append(args, r.ID, r.OrderKey)
		}

		query := "UPDATE todos SET order_key = c.column2 FROM (VALUES " + strings.Join(values, ", ") + ") AS c" +
			" WHERE todos.id = c.column1 AND todos.user_id = $1 AND NOT todos.is_removed"
		return query, args
	},
	// Each rank binds 2 parameters and SQLite accepts 32766 of them.
	maxBatch: 10000,
}

// SQLiteOpen returns a new SQLite database connection and creates the schema if needed.
func SQLiteOpen(database string) (Client, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", database))
	if err != nil {
		return nil, errors.Wrap(err, "could not get database connection")
	}
	// A single connection serializes writers the same way Bolt does.
	db.SetMaxOpenConns(1)

	c := NewSQLite(db)
	if err := c.(*sqlDB).migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// NewSQLite returns a Client using the given SQLite connection.
// The schema must already exist.
func NewSQLite(db *sql.DB) Client {
	return newSQL(db, sqliteDialect)
}
