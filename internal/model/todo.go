package model

import "time"

// A State is the lifecycle position of a todo.
type State string

const (
	// StateActive is a todo displayed in the user's list.
	StateActive State = "active"
	// StateRemoved is a todo moved to the trash.
	StateRemoved State = "removed"
)

// A Todo represents a database record and the rendered response.
type Todo struct {
	Base `msgpack:",inline" storm:"inline"`

	UserID    string     `json:"userId"              msgpack:"user_id"    storm:"index"`
	Content   any        `json:"content"             msgpack:"content"`
	Done      bool       `json:"done"                msgpack:"done"`
	OrderKey  int        `json:"orderKey"            msgpack:"order_key"  storm:"index"`
	IsRemoved bool       `json:"isRemoved"           msgpack:"is_removed" storm:"index"`
	RemovedAt *time.Time `json:"removedDt,omitempty" msgpack:"removed_at" storm:"index"`
}

// NewTodo returns an active todo owned by userID.
func NewTodo(userID string, content any, orderKey int) *Todo {
	return &Todo{
		UserID:   userID,
		Content:  content,
		OrderKey: orderKey,
	}
}

// State returns the lifecycle state of the todo.
func (t *Todo) State() State {
	if t.IsRemoved {
		return StateRemoved
	}
	return StateActive
}

// Remove moves the todo to the trash at the given time.
func (t *Todo) Remove(at time.Time) {
	t.IsRemoved = true
	t.RemovedAt = &at
}

// Restore moves the todo out of the trash. Its OrderKey is kept.
func (t *Todo) Restore() {
	t.IsRemoved = false
	t.RemovedAt = nil
}

// A Rank assigns an OrderKey to a todo.
type Rank struct {
	ID       string `json:"id"`
	OrderKey int    `json:"orderKey"`
}

// UniqueRanks collapses duplicated ids to their last occurrence.
// The relative order of the kept entries is preserved.
func UniqueRanks(ranks []Rank) []Rank {
	last := make(map[string]int, len(ranks))
	for i, r := range ranks {
		last[r.ID] = i
	}

	unique := make([]Rank, 0, len(last))
	for i, r := range ranks {
		if last[r.ID] == i {
			unique = append(unique, r)
		}
	}
	return unique
}
