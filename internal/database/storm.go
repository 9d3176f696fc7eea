package database

import (
	"context"
	"time"

	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/q"
	"github.com/gofrs/uuid"
	"github.com/mdouchement/podote/internal/model"
	"github.com/mdouchement/podote/pkg/stormcodec"
	"github.com/pkg/errors"
)

type (
	strm struct {
		strmNode
		db *storm.DB
	}

	// strmNode runs the interactions against the database or an open transaction.
	strmNode struct {
		node storm.Node
	}
)

// StormConnect opens the Storm database with the named codec.
func StormConnect(database, codec string) (*storm.DB, error) {
	c, err := stormcodec.ByName(codec)
	if err != nil {
		return nil, err
	}

	db, err := storm.Open(database, storm.Codec(c))
	return db, errors.Wrap(err, "could not get database connection")
}

// StormInit initializes Storm database.
func StormInit(database, codec string) error {
	db, err := StormConnect(database, codec)
	if err != nil {
		return err
	}
	defer db.Close()

	err = db.Init(&model.Todo{})
	return errors.Wrap(err, "could not init todo index")
}

// StormReIndex reindex Storm database.
func StormReIndex(database, codec string) error {
	db, err := StormConnect(database, codec)
	if err != nil {
		return err
	}
	defer db.Close()

	err = db.ReIndex(&model.Todo{})
	return errors.Wrap(err, "could not ReIndex todos")
}

// StormOpen returns a new Storm database connection.
func StormOpen(database, codec string) (Client, error) {
	db, err := StormConnect(database, codec)
	if err != nil {
		return nil, err
	}

	return &strm{
		strmNode: strmNode{node: db},
		db:       db,
	}, nil
}

// Atomic runs fn inside one write transaction.
// Bolt allows a single writer at a time so transactions are serialized.
func (c *strm) Atomic(ctx context.Context, fn func(tx TodoInteraction) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := c.db.Begin(true)
	if err != nil {
		return errors.Wrap(err, "could not begin transaction")
	}
	defer tx.Rollback() // nolint:errcheck

	if err = fn(&strmNode{node: tx}); err != nil {
		return err
	}

	return errors.Wrap(tx.Commit(), "could not commit transaction")
}

// Close the database.
func (c *strm) Close() error {
	return c.db.Close()
}

// IsNotFound returns true if err is a not found error.
func (c *strm) IsNotFound(err error) bool {
	return errors.Cause(err) == storm.ErrNotFound
}

func (c *strmNode) active(userID string) storm.Query {
	return c.node.Select(q.Eq("UserID", userID), q.Eq("IsRemoved", false))
}

func (c *strmNode) trashed(userID string) storm.Query {
	return c.node.Select(q.Eq("UserID", userID), q.Eq("IsRemoved", true))
}

// LockUser is a no-op, write transactions are already serialized.
func (c *strmNode) LockUser(ctx context.Context, _ string) error {
	return ctx.Err()
}

// CountActive returns the number of active todos of the user.
func (c *strmNode) CountActive(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	n, err := c.active(userID).Count(&model.Todo{})
	if err != nil && errors.Cause(err) != storm.ErrNotFound {
		return 0, errors.Wrap(err, "could not count active todos")
	}
	return n, nil
}

// InsertTodo inserts the given todo and assigns its ID.
// The creation date is set when the todo does not already have one.
func (c *strmNode) InsertTodo(ctx context.Context, todo *model.Todo) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	todo.SetID(uuid.Must(uuid.NewV4()).String())
	if todo.CreatedAt == nil {
		todo.SetCreatedAt(time.Now().UTC())
	}

	return errors.Wrap(c.node.Save(todo), "could not insert todo")
}

// FindActiveTodos returns the active todos of the user ordered by OrderKey descending.
func (c *strmNode) FindActiveTodos(ctx context.Context, userID string) ([]*model.Todo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	todos := make([]*model.Todo, 0)
	err := c.active(userID).OrderBy("OrderKey", "CreatedAt").Reverse().Find(&todos)
	if err != nil && errors.Cause(err) != storm.ErrNotFound {
		return nil, errors.Wrap(err, "could not find active todos")
	}
	return todos, nil
}

// FindActiveTodo returns the active todo for the given id and user id.
func (c *strmNode) FindActiveTodo(ctx context.Context, id, userID string) (*model.Todo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var todo model.Todo
	err := c.node.Select(q.Eq("ID", id), q.Eq("UserID", userID), q.Eq("IsRemoved", false)).First(&todo)
	if err != nil {
		return nil, errors.Wrap(err, "could not find active todo")
	}
	return &todo, nil
}

// FindTrashedTodo returns the removed todo for the given id and user id.
func (c *strmNode) FindTrashedTodo(ctx context.Context, id, userID string) (*model.Todo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var todo model.Todo
	err := c.node.Select(q.Eq("ID", id), q.Eq("UserID", userID), q.Eq("IsRemoved", true)).First(&todo)
	if err != nil {
		return nil, errors.Wrap(err, "could not find trashed todo")
	}
	return &todo, nil
}

// FindTrash returns the removed todos of the user ordered by removal date descending.
func (c *strmNode) FindTrash(ctx context.Context, userID string) ([]*model.Todo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	todos := make([]*model.Todo, 0)
	err := c.trashed(userID).OrderBy("RemovedAt").Reverse().Find(&todos)
	if err != nil && errors.Cause(err) != storm.ErrNotFound {
		return nil, errors.Wrap(err, "could not find trashed todos")
	}
	return todos, nil
}

// UpdateContent replaces the content of an active todo.
func (c *strmNode) UpdateContent(ctx context.Context, id, userID string, content any, at time.Time) (int, error) {
	return c.mutate(ctx, c.node.Select(q.Eq("ID", id), q.Eq("UserID", userID), q.Eq("IsRemoved", false)), func(todo *model.Todo) {
		todo.Content = content
		todo.SetUpdatedAt(at)
	})
}

// UpdateDone defines the completion flag of an active todo.
func (c *strmNode) UpdateDone(ctx context.Context, id, userID string, done bool, at time.Time) (int, error) {
	return c.mutate(ctx, c.node.Select(q.Eq("ID", id), q.Eq("UserID", userID), q.Eq("IsRemoved", false)), func(todo *model.Todo) {
		todo.Done = done
		todo.SetUpdatedAt(at)
	})
}

// BatchUpdateOrderKeys rewrites the OrderKey of the user's active todos.
// It must be called from Atomic to be applied as a whole.
func (c *strmNode) BatchUpdateOrderKeys(ctx context.Context, userID string, ranks []model.Rank) (int, error) {
	if len(ranks) == 0 {
		return 0, ctx.Err()
	}

	ranks = model.UniqueRanks(ranks)
	keys := make(map[string]int, len(ranks))
	ids := make([]any, 0, len(ranks))
	for _, r := range ranks {
		keys[r.ID] = r.OrderKey
		ids = append(ids, r.ID)
	}

	return c.mutate(ctx, c.node.Select(q.In("ID", ids), q.Eq("UserID", userID), q.Eq("IsRemoved", false)), func(todo *model.Todo) {
		todo.OrderKey = keys[todo.ID]
	})
}

// MarkRemoved moves an active todo to the trash.
func (c *strmNode) MarkRemoved(ctx context.Context, id, userID string, at time.Time) (int, error) {
	return c.mutate(ctx, c.node.Select(q.Eq("ID", id), q.Eq("UserID", userID), q.Eq("IsRemoved", false)), func(todo *model.Todo) {
		todo.Remove(at)
	})
}

// MarkRestored moves a removed todo back to the active list.
func (c *strmNode) MarkRestored(ctx context.Context, id, userID string) (int, error) {
	return c.mutate(ctx, c.node.Select(q.Eq("ID", id), q.Eq("UserID", userID), q.Eq("IsRemoved", true)), func(todo *model.Todo) {
		todo.Restore()
	})
}

// DeleteTrashedTodo erases a removed todo.
func (c *strmNode) DeleteTrashedTodo(ctx context.Context, id, userID string) (int, error) {
	return c.delete(ctx, c.node.Select(q.Eq("ID", id), q.Eq("UserID", userID), q.Eq("IsRemoved", true)))
}

// DeleteAllTrash erases all removed todos of the user.
func (c *strmNode) DeleteAllTrash(ctx context.Context, userID string) (int, error) {
	return c.delete(ctx, c.trashed(userID))
}

// mutate applies fn on every matching record and saves it.
// Whole records are saved because storm's Update skips zero values.
func (c *strmNode) mutate(ctx context.Context, query storm.Query, fn func(*model.Todo)) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var todos []*model.Todo
	if err := query.Find(&todos); err != nil {
		if errors.Cause(err) == storm.ErrNotFound {
			return 0, nil
		}
		return 0, errors.Wrap(err, "could not find todos")
	}

	for _, todo := range todos {
		fn(todo)
		if err := c.node.Save(todo); err != nil {
			return 0, errors.Wrap(err, "could not save todo")
		}
	}
	return len(todos), nil
}

func (c *strmNode) delete(ctx context.Context, query storm.Query) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var todos []*model.Todo
	if err := query.Find(&todos); err != nil {
		if errors.Cause(err) == storm.ErrNotFound {
			return 0, nil
		}
		return 0, errors.Wrap(err, "could not find todos")
	}

	for _, todo := range todos {
		if err := c.node.DeleteStruct(todo); err != nil {
			return 0, errors.Wrap(err, "could not delete todo")
		}
	}
	return len(todos), nil
}
