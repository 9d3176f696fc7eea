package service

import (
	"context"
	"time"

	"github.com/mdouchement/podote/internal/database"
	"github.com/mdouchement/podote/internal/model"
	"github.com/sirupsen/logrus"
)

// A Lifecycle moves todos between the active list, the trash and oblivion.
//
//	Active --remove--> Removed --restore--> Active
//	                   Removed --purge----> Purged
//
// A transition whose source state does not match is a no-op.
type Lifecycle struct {
	clock    func() time.Time
	notFound func(error) bool
	log      logrus.FieldLogger
}

// UpdateContent replaces the content of an active todo and returns it.
func (l *Lifecycle) UpdateContent(ctx context.Context, tx database.TodoInteraction, userID, id string, content any) (*model.Todo, error) {
	n, err := tx.UpdateContent(ctx, id, userID, content, l.clock())
	if err != nil {
		return nil, err
	}
	l.noop(n, "update_content", userID, id)

	return l.active(ctx, tx, userID, id)
}

// UpdateDone defines the completion flag of an active todo and returns it.
func (l *Lifecycle) UpdateDone(ctx context.Context, tx database.TodoInteraction, userID, id string, done bool) (*model.Todo, error) {
	n, err := tx.UpdateDone(ctx, id, userID, done, l.clock())
	if err != nil {
		return nil, err
	}
	l.noop(n, "update_done", userID, id)

	return l.active(ctx, tx, userID, id)
}

// Remove moves an active todo to the trash and returns it.
func (l *Lifecycle) Remove(ctx context.Context, tx database.TodoInteraction, userID, id string) (*model.Todo, error) {
	n, err := tx.MarkRemoved(ctx, id, userID, l.clock())
	if err != nil {
		return nil, err
	}
	l.noop(n, "remove", userID, id)

	return l.trashed(ctx, tx, userID, id)
}

// Restore moves a removed todo back to the active list and returns it.
// The todo keeps the OrderKey it had before its removal.
func (l *Lifecycle) Restore(ctx context.Context, tx database.TodoInteraction, userID, id string) (*model.Todo, error) {
	n, err := tx.MarkRestored(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	l.noop(n, "restore", userID, id)

	return l.active(ctx, tx, userID, id)
}

// Purge erases a removed todo and returns the remaining trash.
func (l *Lifecycle) Purge(ctx context.Context, tx database.TodoInteraction, userID, id string) ([]*model.Todo, error) {
	n, err := tx.DeleteTrashedTodo(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	l.noop(n, "purge", userID, id)

	return tx.FindTrash(ctx, userID)
}

// EmptyTrash erases all the removed todos of the user and returns the remaining trash.
func (l *Lifecycle) EmptyTrash(ctx context.Context, tx database.TodoInteraction, userID string) ([]*model.Todo, error) {
	n, err := tx.DeleteAllTrash(ctx, userID)
	if err != nil {
		return nil, err
	}
	l.log.WithFields(logrus.Fields{"user_id": userID, "purged": n}).Debug("trash emptied")

	return tx.FindTrash(ctx, userID)
}

func (l *Lifecycle) active(ctx context.Context, tx database.TodoInteraction, userID, id string) (*model.Todo, error) {
	todo, err := tx.FindActiveTodo(ctx, id, userID)
	if err != nil {
		if l.notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return todo, nil
}

func (l *Lifecycle) trashed(ctx context.Context, tx database.TodoInteraction, userID, id string) (*model.Todo, error) {
	todo, err := tx.FindTrashedTodo(ctx, id, userID)
	if err != nil {
		if l.notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return todo, nil
}

func (l *Lifecycle) noop(n int, transition, userID, id string) {
	if n > 0 {
		return
	}

	l.log.WithFields(logrus.Fields{
		"transition": transition,
		"user_id":    userID,
		"id":         id,
	}).Debug("no todo matched")
}
