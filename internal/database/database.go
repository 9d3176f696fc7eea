package database

import (
	"context"
	"time"

	"github.com/mdouchement/podote/internal/model"
)

type (
	// A Client can interacts with the database.
	Client interface {
		// Atomic runs fn inside one write transaction.
		// The transaction is committed when fn returns nil and rolled back otherwise.
		Atomic(ctx context.Context, fn func(tx TodoInteraction) error) error
		// Close the database.
		Close() error
		// IsNotFound returns true if err is a not found error.
		IsNotFound(err error) bool

		TodoInteraction
	}

	// A TodoInteraction defines all the methods used to interact with todo record(s).
	// Every method is scoped by the owner's user id.
	TodoInteraction interface {
		// LockUser serializes the current transaction against other transactions of the same user.
		LockUser(ctx context.Context, userID string) error
		// CountActive returns the number of active todos of the user.
		CountActive(ctx context.Context, userID string) (int, error)
		// InsertTodo inserts the given todo and assigns its ID and creation date.
		InsertTodo(ctx context.Context, todo *model.Todo) error
		// FindActiveTodos returns the active todos of the user ordered by OrderKey descending.
		FindActiveTodos(ctx context.Context, userID string) ([]*model.Todo, error)
		// FindActiveTodo returns the active todo for the given id and user id.
		FindActiveTodo(ctx context.Context, id, userID string) (*model.Todo, error)
		// FindTrashedTodo returns the removed todo for the given id and user id.
		FindTrashedTodo(ctx context.Context, id, userID string) (*model.Todo, error)
		// FindTrash returns the removed todos of the user ordered by removal date descending.
		FindTrash(ctx context.Context, userID string) ([]*model.Todo, error)
		// UpdateContent replaces the content of an active todo.
		UpdateContent(ctx context.Context, id, userID string, content any, at time.Time) (int, error)
		// UpdateDone defines the completion flag of an active todo.
		UpdateDone(ctx context.Context, id, userID string, done bool, at time.Time) (int, error)
		// BatchUpdateOrderKeys rewrites the OrderKey of the user's active todos in one statement.
		// Ranks targeting unknown, foreign or removed todos are ignored.
		BatchUpdateOrderKeys(ctx context.Context, userID string, ranks []model.Rank) (int, error)
		// MarkRemoved moves an active todo to the trash.
		MarkRemoved(ctx context.Context, id, userID string, at time.Time) (int, error)
		// MarkRestored moves a removed todo back to the active list.
		MarkRestored(ctx context.Context, id, userID string) (int, error)
		// DeleteTrashedTodo erases a removed todo.
		DeleteTrashedTodo(ctx context.Context, id, userID string) (int, error)
		// DeleteAllTrash erases all removed todos of the user.
		DeleteAllTrash(ctx context.Context, userID string) (int, error)
	}
)

// Drivers supported by Open.
const (
	DriverStorm    = "storm"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Params are the parameters used to open a database.
type Params struct {
	Driver string
	// Path is the storm or sqlite database file.
	Path string
	// DSN is the postgres connection string.
	DSN string
	// Codec is the storm record codec.
	Codec string
}
