package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/gofrs/uuid"
	"github.com/mdouchement/podote/internal/model"
	"github.com/pkg/errors"
)

type (
	// A dialect holds the statements that differ between SQL engines.
	// Statements are written with $n placeholders.
	dialect struct {
		name   string
		schema []string
		// rebind rewrites the $n placeholders for the engine.
		rebind func(query string) string
		// batch returns the statement updating all the given ranks at once.
		batch func(userID string, ranks []model.Rank) (string, []any)
		// maxBatch is the number of ranks a batch statement accepts, 0 when unbounded.
		maxBatch int
		// lock is the statement serializing a user's transactions, empty when not needed.
		lock string
	}

	queryer interface {
		ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
		QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
		QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	}

	sqlDB struct {
		sqlNode
		db *sql.DB
	}

	// sqlNode runs the interactions against the database or an open transaction.
	sqlNode struct {
		q queryer
		d dialect
	}
)

const todoColumns = "id, user_id, content, done, order_key, is_removed, created_at, updated_at, removed_at"

func newSQL(db *sql.DB, d dialect) *sqlDB {
	return &sqlDB{
		sqlNode: sqlNode{q: db, d: d},
		db:      db,
	}
}

func (c *sqlDB) migrate(ctx context.Context) error {
	for _, stmt := range c.d.schema {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "could not migrate %s schema", c.d.name)
		}
	}
	return nil
}

// Atomic runs fn inside one transaction.
func (c *sqlDB) Atomic(ctx context.Context, fn func(tx TodoInteraction) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "could not begin transaction")
	}
	defer tx.Rollback() // nolint:errcheck

	if err = fn(&sqlNode{q: tx, d: c.d}); err != nil {
		return err
	}

	return errors.Wrap(tx.Commit(), "could not commit transaction")
}

// Close the database.
func (c *sqlDB) Close() error {
	return c.db.Close()
}

// IsNotFound returns true if err is a not found error.
func (c *sqlDB) IsNotFound(err error) bool {
	return errors.Cause(err) == sql.ErrNoRows
}

func (c *sqlNode) exec(ctx context.Context, query string, args ...any) (int, error) {
	result, err := c.q.ExecContext(ctx, c.d.rebind(query), args...)
	if err != nil {
		return 0, err
	}

	n, err := result.RowsAffected()
	return int(n), err
}

// LockUser serializes the current transaction against other transactions of the same user.
func (c *sqlNode) LockUser(ctx context.Context, userID string) error {
	if c.d.lock == "" {
		return ctx.Err()
	}

	_, err := c.q.ExecContext(ctx, c.d.rebind(c.d.lock), userID)
	return errors.Wrap(err, "could not lock user")
}

// CountActive returns the number of active todos of the user.
func (c *sqlNode) CountActive(ctx context.Context, userID string) (int, error) {
	var n int
	err := c.q.QueryRowContext(ctx,
		c.d.rebind("SELECT COUNT(*) FROM todos WHERE user_id = $1 AND NOT is_removed"),
		userID,
	).Scan(&n)
	return n, errors.Wrap(err, "could not count active todos")
}

// InsertTodo inserts the given todo and assigns its ID.
// The creation date is set when the todo does not already have one.
func (c *sqlNode) InsertTodo(ctx context.Context, todo *model.Todo) error {
	content, err := json.Marshal(todo.Content)
	if err != nil {
		return errors.Wrap(err, "could not encode content")
	}

	todo.SetID(uuid.Must(uuid.NewV4()).String())
	if todo.CreatedAt == nil {
		todo.SetCreatedAt(time.Now().UTC())
	}

	_, err = c.q.ExecContext(ctx,
		c.d.rebind("INSERT INTO todos ("+todoColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)"),
		todo.ID, todo.UserID, string(content), todo.Done, todo.OrderKey, todo.IsRemoved,
		*todo.CreatedAt, nullTime(todo.UpdatedAt), nullTime(todo.RemovedAt),
	)
	return errors.Wrap(err, "could not insert todo")
}

// FindActiveTodos returns the active todos of the user ordered by OrderKey descending.
func (c *sqlNode) FindActiveTodos(ctx context.Context, userID string) ([]*model.Todo, error) {
	todos, err := c.list(ctx,
		"SELECT "+todoColumns+" FROM todos WHERE user_id = $1 AND NOT is_removed ORDER BY order_key DESC, created_at DESC",
		userID,
	)
	return todos, errors.Wrap(err, "could not find active todos")
}

// FindActiveTodo returns the active todo for the given id and user id.
func (c *sqlNode) FindActiveTodo(ctx context.Context, id, userID string) (*model.Todo, error) {
	todo, err := c.one(ctx,
		"SELECT "+todoColumns+" FROM todos WHERE id = $1 AND user_id = $2 AND NOT is_removed",
		id, userID,
	)
	return todo, errors.Wrap(err, "could not find active todo")
}

// FindTrashedTodo returns the removed todo for the given id and user id.
func (c *sqlNode) FindTrashedTodo(ctx context.Context, id, userID string) (*model.Todo, error) {
	todo, err := c.one(ctx,
		"SELECT "+todoColumns+" FROM todos WHERE id = $1 AND user_id = $2 AND is_removed",
		id, userID,
	)
	return todo, errors.Wrap(err, "could not find trashed todo")
}

// FindTrash returns the removed todos of the user ordered by removal date descending.
func (c *sqlNode) FindTrash(ctx context.Context, userID string) ([]*model.Todo, error) {
	todos, err := c.list(ctx,
		"SELECT "+todoColumns+" FROM todos WHERE user_id = $1 AND is_removed ORDER BY removed_at DESC",
		userID,
	)
	return todos, errors.Wrap(err, "could not find trashed todos")
}

// UpdateContent replaces the content of an active todo.
func (c *sqlNode) UpdateContent(ctx context.Context, id, userID string, content any, at time.Time) (int, error) {
	payload, err := json.Marshal(content)
	if err != nil {
		return 0, errors.Wrap(err, "could not encode content")
	}

	n, err := c.exec(ctx,
		"UPDATE todos SET content = $3, updated_at = $4 WHERE id = $1 AND user_id = $2 AND NOT is_removed",
		id, userID, string(payload), at.UTC(),
	)
	return n, errors.Wrap(err, "could not update todo content")
}

// UpdateDone defines the completion flag of an active todo.
func (c *sqlNode) UpdateDone(ctx context.Context, id, userID string, done bool, at time.Time) (int, error) {
	n, err := c.exec(ctx,
		"UPDATE todos SET done = $3, updated_at = $4 WHERE id = $1 AND user_id = $2 AND NOT is_removed",
		id, userID, done, at.UTC(),
	)
	return n, errors.Wrap(err, "could not update todo done")
}

// BatchUpdateOrderKeys rewrites the OrderKey of the user's active todos in one statement.
// Engines limiting bound parameters get one statement per chunk, so callers run it inside Atomic.
func (c *sqlNode) BatchUpdateOrderKeys(ctx context.Context, userID string, ranks []model.Rank) (int, error) {
	if len(ranks) == 0 {
		return 0, ctx.Err()
	}

	ranks = model.UniqueRanks(ranks)
	size := len(ranks)
	if c.d.maxBatch > 0 && size > c.d.maxBatch {
		size = c.d.maxBatch
	}

	var total int
	for len(ranks) > 0 {
		chunk := ranks[:min(size, len(ranks))]
		ranks = ranks[len(chunk):]

		query, args := c.d.batch(userID, chunk)
		n, err := c.exec(ctx, query, args...)
		if err != nil {
			return total, errors.Wrap(err, "could not update todo order keys")
		}
		total += n
	}
	return total, nil
}

// MarkRemoved moves an active todo to the trash.
func (c *sqlNode) MarkRemoved(ctx context.Context, id, userID string, at time.Time) (int, error) {
	n, err := c.exec(ctx,
		"UPDATE todos SET is_removed = TRUE, removed_at = $3 WHERE id = $1 AND user_id = $2 AND NOT is_removed",
		id, userID, at.UTC(),
	)
	return n, errors.Wrap(err, "could not remove todo")
}

// MarkRestored moves a removed todo back to the active list.
func (c *sqlNode) MarkRestored(ctx context.Context, id, userID string) (int, error) {
	n, err := c.exec(ctx,
		"UPDATE todos SET is_removed = FALSE, removed_at = NULL WHERE id = $1 AND user_id = $2 AND is_removed",
		id, userID,
	)
	return n, errors.Wrap(err, "could not restore todo")
}

// DeleteTrashedTodo erases a removed todo.
func (c *sqlNode) DeleteTrashedTodo(ctx context.Context, id, userID string) (int, error) {
	n, err := c.exec(ctx, "DELETE FROM todos WHERE id = $1 AND user_id = $2 AND is_removed", id, userID)
	return n, errors.Wrap(err, "could not delete trashed todo")
}

// DeleteAllTrash erases all removed todos of the user.
func (c *sqlNode) DeleteAllTrash(ctx context.Context, userID string) (int, error) {
	n, err := c.exec(ctx, "DELETE FROM todos WHERE user_id = $1 AND is_removed", userID)
	return n, errors.Wrap(err, "could not delete trash")
}

func (c *sqlNode) one(ctx context.Context, query string, args ...any) (*model.Todo, error) {
	row := c.q.QueryRowContext(ctx, c.d.rebind(query), args...)
	return scanTodo(row)
}

func (c *sqlNode) list(ctx context.Context, query string, args ...any) ([]*model.Todo, error) {
	rows, err := c.q.QueryContext(ctx, c.d.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	todos := make([]*model.Todo, 0)
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		todos = append(todos, todo)
	}
	return todos, rows.Err()
}

func scanTodo(row interface{ Scan(dest ...any) error }) (*model.Todo, error) {
	var (
		todo                 model.Todo
		content              []byte
		createdAt            time.Time
		updatedAt, removedAt sql.NullTime
	)

	err := row.Scan(
		&todo.ID, &todo.UserID, &content, &todo.Done, &todo.OrderKey, &todo.IsRemoved,
		&createdAt, &updatedAt, &removedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(content) > 0 {
		if todo.Content, err = model.DecodeContent(content); err != nil {
			return nil, errors.Wrap(err, "could not decode content")
		}
	}

	todo.SetCreatedAt(createdAt)
	if updatedAt.Valid {
		todo.SetUpdatedAt(updatedAt.Time)
	}
	if removedAt.Valid {
		todo.RemovedAt = &removedAt.Time
	}
	return &todo, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
