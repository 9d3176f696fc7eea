package service

import (
	"context"

	"github.com/mdouchement/podote/internal/database"
	"github.com/mdouchement/podote/internal/model"
	"github.com/sirupsen/logrus"
)

// An Ordering computes and rewrites the OrderKey sequence of a user's active todos.
// Higher OrderKeys are displayed first.
type Ordering struct {
	log logrus.FieldLogger
}

// CreateRank returns the OrderKey of the next todo created by the user.
// Callers serialize creations with LockUser to avoid handing out the same rank twice.
func (o *Ordering) CreateRank(ctx context.Context, tx database.TodoInteraction, userID string) (int, error) {
	n, err := tx.CountActive(ctx, userID)
	if err != nil {
		return 0, err
	}
	return n + 1, nil
}

// Reorder applies the given ranks as one batch and returns the user's active todos.
// Ranks targeting unknown, foreign or removed todos are skipped.
// When an id is listed several times its last rank wins.
func (o *Ordering) Reorder(ctx context.Context, tx database.TodoInteraction, userID string, ranks []model.Rank) ([]*model.Todo, error) {
	if len(ranks) > 0 {
		ranks = model.UniqueRanks(ranks)

		n, err := tx.BatchUpdateOrderKeys(ctx, userID, ranks)
		if err != nil {
			return nil, err
		}

		if skipped := len(ranks) - n; skipped > 0 {
			o.log.WithFields(logrus.Fields{
				"user_id": userID,
				"skipped": skipped,
			}).Debug("reorder ignored unknown todos")
		}
	}

	return tx.FindActiveTodos(ctx, userID)
}

// Normalize rewrites the user's OrderKeys to the contiguous sequence n..1,
// keeping the current display order. It resolves the collisions left by restored todos.
func (o *Ordering) Normalize(ctx context.Context, tx database.TodoInteraction, userID string) ([]*model.Todo, error) {
	todos, err := tx.FindActiveTodos(ctx, userID)
	if err != nil {
		return nil, err
	}

	ranks := make([]model.Rank, 0, len(todos))
	for i, todo := range todos {
		if key := len(todos) - i; todo.OrderKey != key {
			ranks = append(ranks, model.Rank{ID: todo.ID, OrderKey: key})
		}
	}

	if len(ranks) == 0 {
		return todos, nil
	}

	if _, err = tx.BatchUpdateOrderKeys(ctx, userID, ranks); err != nil {
		return nil, err
	}
	return tx.FindActiveTodos(ctx, userID)
}
