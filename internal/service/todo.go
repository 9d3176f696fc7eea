package service

import (
	"context"
	"time"

	"github.com/mdouchement/podote/internal/database"
	"github.com/mdouchement/podote/internal/model"
	"github.com/sirupsen/logrus"
)

type (
	// A TodoService exposes the todo operations of an already authenticated user.
	//
	// Unknown or foreign ids are never reported as errors: single todo results are nil
	// and list results reflect the unchanged state. Returned errors are storage failures.
	TodoService struct {
		db        database.Client
		ordering  *Ordering
		lifecycle *Lifecycle
		log       logrus.FieldLogger
	}

	// An Option configures a TodoService.
	Option func(*TodoService)
)

// WithLogger defines the logger used by the service.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *TodoService) {
		s.log = log
		s.ordering.log = log
		s.lifecycle.log = log
	}
}

// WithClock defines the clock used to timestamp mutations.
func WithClock(clock func() time.Time) Option {
	return func(s *TodoService) {
		s.lifecycle.clock = clock
	}
}

// NewTodo instantiates a new Todo service.
func NewTodo(db database.Client, options ...Option) *TodoService {
	log := logrus.StandardLogger()
	s := &TodoService{
		db:       db,
		ordering: &Ordering{log: log},
		lifecycle: &Lifecycle{
			clock: func() time.Time {
				return time.Now().UTC()
			},
			notFound: db.IsNotFound,
			log:      log,
		},
		log: log,
	}

	for _, option := range options {
		option(s)
	}
	return s
}

// Create adds a todo on top of the user's active list.
func (s *TodoService) Create(ctx context.Context, userID string, content any) (todo *model.Todo, err error) {
	err = s.atomic(ctx, "create", userID, func(tx database.TodoInteraction) error {
		if err := tx.LockUser(ctx, userID); err != nil {
			return err
		}

		rank, err := s.ordering.CreateRank(ctx, tx, userID)
		if err != nil {
			return err
		}

		created := model.NewTodo(userID, content, rank)
		created.SetCreatedAt(s.lifecycle.clock())
		if err = tx.InsertTodo(ctx, created); err != nil {
			return err
		}

		todo, err = tx.FindActiveTodo(ctx, created.ID, userID)
		return err
	})
	return todo, err
}

// ListActive returns the user's active todos ordered by OrderKey descending.
func (s *TodoService) ListActive(ctx context.Context, userID string) ([]*model.Todo, error) {
	todos, err := s.db.FindActiveTodos(ctx, userID)
	return todos, s.failed(err, "list_active", userID)
}

// ListTrash returns the user's removed todos, most recently removed first.
func (s *TodoService) ListTrash(ctx context.Context, userID string) ([]*model.Todo, error) {
	todos, err := s.db.FindTrash(ctx, userID)
	return todos, s.failed(err, "list_trash", userID)
}

// GetActive returns the user's active todo for the given id, nil when there is none.
func (s *TodoService) GetActive(ctx context.Context, userID, id string) (*model.Todo, error) {
	todo, err := s.lifecycle.active(ctx, s.db, userID, id)
	return todo, s.failed(err, "get_active", userID)
}

// GetTrashed returns the user's removed todo for the given id, nil when there is none.
func (s *TodoService) GetTrashed(ctx context.Context, userID, id string) (*model.Todo, error) {
	todo, err := s.lifecycle.trashed(ctx, s.db, userID, id)
	return todo, s.failed(err, "get_trashed", userID)
}

// UpdateContent replaces the content of an active todo.
func (s *TodoService) UpdateContent(ctx context.Context, userID, id string, content any) (todo *model.Todo, err error) {
	err = s.atomic(ctx, "update_content", userID, func(tx database.TodoInteraction) error {
		todo, err = s.lifecycle.UpdateContent(ctx, tx, userID, id, content)
		return err
	})
	return todo, err
}

// UpdateDone marks an active todo as done or not done.
func (s *TodoService) UpdateDone(ctx context.Context, userID, id string, done bool) (todo *model.Todo, err error) {
	err = s.atomic(ctx, "update_done", userID, func(tx database.TodoInteraction) error {
		todo, err = s.lifecycle.UpdateDone(ctx, tx, userID, id, done)
		return err
	})
	return todo, err
}

// Reorder applies the given ranks atomically and returns the user's active todos.
func (s *TodoService) Reorder(ctx context.Context, userID string, ranks []model.Rank) (todos []*model.Todo, err error) {
	err = s.atomic(ctx, "reorder", userID, func(tx database.TodoInteraction) error {
		if err := tx.LockUser(ctx, userID); err != nil {
			return err
		}

		todos, err = s.ordering.Reorder(ctx, tx, userID, ranks)
		return err
	})
	return todos, err
}

// Normalize renumbers the user's active todos from n down to 1 keeping their order.
func (s *TodoService) Normalize(ctx context.Context, userID string) (todos []*model.Todo, err error) {
	err = s.atomic(ctx, "normalize", userID, func(tx database.TodoInteraction) error {
		if err := tx.LockUser(ctx, userID); err != nil {
			return err
		}

		todos, err = s.ordering.Normalize(ctx, tx, userID)
		return err
	})
	return todos, err
}

// Remove moves an active todo to the trash.
func (s *TodoService) Remove(ctx context.Context, userID, id string) (todo *model.Todo, err error) {
	err = s.atomic(ctx, "remove", userID, func(tx database.TodoInteraction) error {
		todo, err = s.lifecycle.Remove(ctx, tx, userID, id)
		return err
	})
	return todo, err
}

// Restore moves a removed todo back to the active list.
func (s *TodoService) Restore(ctx context.Context, userID, id string) (todo *model.Todo, err error) {
	err = s.atomic(ctx, "restore", userID, func(tx database.TodoInteraction) error {
		todo, err = s.lifecycle.Restore(ctx, tx, userID, id)
		return err
	})
	return todo, err
}

// PurgeOne erases a removed todo and returns the remaining trash.
func (s *TodoService) PurgeOne(ctx context.Context, userID, id string) (trash []*model.Todo, err error) {
	err = s.atomic(ctx, "purge_one", userID, func(tx database.TodoInteraction) error {
		trash, err = s.lifecycle.Purge(ctx, tx, userID, id)
		return err
	})
	return trash, err
}

// PurgeAllTrash erases every removed todo of the user and returns the remaining trash.
func (s *TodoService) PurgeAllTrash(ctx context.Context, userID string) (trash []*model.Todo, err error) {
	err = s.atomic(ctx, "purge_all_trash", userID, func(tx database.TodoInteraction) error {
		trash, err = s.lifecycle.EmptyTrash(ctx, tx, userID)
		return err
	})
	return trash, err
}

func (s *TodoService) atomic(ctx context.Context, operation, userID string, fn func(tx database.TodoInteraction) error) error {
	return s.failed(s.db.Atomic(ctx, fn), operation, userID)
}

// failed logs storage failures and returns them unchanged.
func (s *TodoService) failed(err error, operation, userID string) error {
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"operation": operation,
			"user_id":   userID,
		}).Error("storage failure")
	}
	return err
}
