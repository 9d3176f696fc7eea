package service_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mdouchement/podote/internal/database"
	"github.com/mdouchement/podote/internal/model"
	"github.com/mdouchement/podote/internal/service"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

type fixture struct {
	db   database.Client
	todo *service.TodoService
	hook *test.Hook
	now  time.Time
}

func eachFixture(t *testing.T, fn func(t *testing.T, f *fixture)) {
	open := map[string]func(dir string) (database.Client, error){
		database.DriverStorm: func(dir string) (database.Client, error) {
			return database.StormOpen(filepath.Join(dir, "podote.db"), "")
		},
		database.DriverSQLite: func(dir string) (database.Client, error) {
			return database.SQLiteOpen(filepath.Join(dir, "podote.sqlite"))
		},
	}

	for _, driver := range []string{database.DriverStorm, database.DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			db, err := open[driver](t.TempDir())
			require.NoError(t, err)
			defer db.Close()

			log, hook := test.NewNullLogger()
			log.SetLevel(logrus.DebugLevel)

			f := &fixture{
				db:   db,
				hook: hook,
				now:  time.Date(2022, 3, 1, 10, 0, 0, 0, time.UTC),
			}
			f.todo = service.NewTodo(db, service.WithLogger(log), service.WithClock(func() time.Time {
				f.now = f.now.Add(time.Second)
				return f.now
			}))

			fn(t, f)
		})
	}
}

func (f *fixture) create(t *testing.T, userID string, texts ...string) []*model.Todo {
	todos := make([]*model.Todo, 0, len(texts))
	for _, text := range texts {
		todo, err := f.todo.Create(ctx, userID, map[string]any{"text": text})
		require.NoError(t, err)
		require.NotNil(t, todo)
		todos = append(todos, todo)
	}
	return todos
}

func ids(todos []*model.Todo) []string {
	ids := make([]string, 0, len(todos))
	for _, todo := range todos {
		ids = append(ids, todo.ID)
	}
	return ids
}

func orderKeys(todos []*model.Todo) []int {
	keys := make([]int, 0, len(todos))
	for _, todo := range todos {
		keys = append(keys, todo.OrderKey)
	}
	return keys
}

func assertUniqueOrderKeys(t *testing.T, todos []*model.Todo) {
	seen := map[int]string{}
	for _, todo := range todos {
		other, ok := seen[todo.OrderKey]
		assert.False(t, ok, "%s and %s share OrderKey %d", todo.ID, other, todo.OrderKey)
		seen[todo.OrderKey] = todo.ID
	}
}

func TestCreate(t *testing.T) {
	eachFixture(t, func(t *testing.T, f *fixture) {
		todos := f.create(t, "george", "first", "second", "third")
		assert.Equal(t, []int{1, 2, 3}, orderKeys(todos))

		for _, todo := range todos {
			assert.Equal(t, "george", todo.UserID)
			assert.Equal(t, model.StateActive, todo.State())
			assert.False(t, todo.Done)
			assert.NotNil(t, todo.CreatedAt)
			assert.Nil(t, todo.UpdatedAt)
			assert.Nil(t, todo.RemovedAt)
		}
		assert.Equal(t, map[string]any{"text": "second"}, todos[1].Content)

		foreign := f.create(t, "robert", "foreign")
		assert.Equal(t, 1, foreign[0].OrderKey, "ranks are scoped by user")

		active, err := f.todo.ListActive(ctx, "george")
		require.NoError(t, err)
		assert.Equal(t, []string{todos[2].ID, todos[1].ID, todos[0].ID}, ids(active))
	})
}

func TestCreateConcurrently(t *testing.T) {
	eachFixture(t, func(t *testing.T, f *fixture) {
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.todo.Create(ctx, "george", "concurrent")
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		active, err := f.todo.ListActive(ctx, "george")
		require.NoError(t, err)
		assert.Equal(t, []int{10, 9, 8, 7, 6, 5, 4, 3, 2, 1}, orderKeys(active))
	})
}

func TestReorder(t *testing.T) {
	eachFixture(t, func(t *testing.T, f *fixture) {
		todos := f.create(t, "george", "id1", "id2", "id3")
		id1, id2, id3 := todos[0].ID, todos[1].ID, todos[2].ID

		ranks := []model.Rank{
			{ID: id3, OrderKey: 10},
			{ID: id1, OrderKey: 5},
			{ID: id2, OrderKey: 1},
		}
		active, err := f.todo.Reorder(ctx, "george", ranks)
		require.NoError(t, err)
		assert.Equal(t, []string{id3, id1, id2}, ids(active))
		assert.Equal(t, []int{10, 5, 1}, orderKeys(active))

		listed, err := f.todo.ListActive(ctx, "george")
		require.NoError(t, err)
		assert.Equal(t, active, listed)

		again, err := f.todo.Reorder(ctx, "george", ranks)
		require.NoError(t, err)
		assert.Equal(t, active, again, "reorder is idempotent")
	})
}

func TestReorderEmpty(t *testing.T) {
	eachFixture(t, func(t *testing.T, f *fixture) {
		f.create(t, "george", "first", "second")

		before, err := f.todo.ListActive(ctx, "george")
		require.NoError(t, err)

		after, err := f.todo.Reorder(ctx, "george", nil)
		require.NoError(t, err)
		assert.Equal(t, before, after)

		after, err = f.todo.Reorder(ctx, "george", []model.Rank{})
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})
}

func TestReorderSkipsUnknownTodos(t *testing.T) {
	eachFixture(t, func(t *testing.T, f *fixture) {
		mine := f.create(t, "george", "first", "second")
		foreign := f.create(t, "robert", "foreign")[0]

		trashed, err := f.todo.Remove(ctx, "george", mine[0].ID)
		require.NoError(t, err)
		require.NotNil(t, trashed)

		active, err := f.todo.Reorder(ctx, "george", []model.Rank{
			{ID: mine[1].ID, OrderKey: 7},
			{ID: mine[0].ID, OrderKey: 8},
			{ID: foreign.ID, OrderKey: 9},
			{ID: "d989ccc9-15c6-475e-839b-1690bd07d073", OrderKey: 10},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{mine[1].ID}, ids(active))
		assert.Equal(t, []int{7}, orderKeys(active))

		robert, err := f.todo.GetActive(ctx, "robert", foreign.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, robert.OrderKey)

		trash, err := f.todo.ListTrash(ctx, "george")
		require.NoError(t, err)
		assert.Equal(t, []int{1}, orderKeys(trash))

		var skipped bool
		for _, entry := range f.hook.AllEntries() {
			if entry.Message == "reorder ignored unknown todos" {
				skipped = true
				assert.Equal(t, 3, entry.Data["skipped"])
			}
		}
		assert.True(t, skipped)
	})
}

func TestReorderDuplicates(t *testing.T) {
	eachFixture(t, func(t *testing.T, f *fixture) {
		todos := f.create(t, "george", "first", "second")

		active, err := f.todo.Reorder(ctx, "george", []model.Rank{
			{ID: todos[0].ID, OrderKey: 1},
			{ID: todos[1].ID, OrderKey: 2},
			{ID: todos[0].ID, OrderKey: 3},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{todos[0].ID, todos[1].ID}, ids(active))
		assert.Equal(t, []int{3, 2}, orderKeys(active))
	})
}

func TestOrderKeysStayUnique(t *testing.T) {
	eachFixture(t, func(t *testing.T, f *fixture) {
		f.create(t, "george", "a", "b", "c")

		active, err := f.todo.ListActive(ctx, "george")
		require.NoError(t, err)

		// Move the last todo on top with a contiguous reassignment.
		ranks := []model.Rank{{ID: active[2].ID, OrderKey: 3}, {ID: active[0].ID, OrderKey: 2}, {ID: active[1].ID, OrderKey: 1}}
		_, err = f.todo.Reorder(ctx, "george", ranks)
		require.NoError(t, err)

		f.create(t, "george", "d", "e")

		active, err = f.todo.ListActive(ctx, "george")
		require.NoError(t, err)
		assert.Len(t, active, 5)
		assertUniqueOrderKeys(t, active)
	})
}

func TestUpdate(t *testing.T) {
	eachFixture(t, func(t *testing.T, f *fixture) {
		todo := f.create(t, "george", "buy milk")[0]

		updated, err := f.todo.UpdateContent(ctx, "george", todo.ID, map[string]any{"text": "buy bread"})
		require.NoError(t, err)
		require.NotNil(t, updated)
		assert.Equal(t, map[string]any{"text": "buy bread"}, updated.Content)
		require.NotNil(t, updated.UpdatedAt)
		assert.True(t, f.now.Equal(*updated.UpdatedAt))
		assert.Equal(t, todo.OrderKey, updated.OrderKey)

		done, err := f.todo.UpdateDone(ctx, "george", todo.ID, true)
		require.NoError(t, err)
		require.NotNil(t, done)
		assert.True(t, done.Done)
		assert.True(t, f.now.Equal(*done.UpdatedAt))
		assert.Equal(t, map[string]any{"text": "buy bread"}, done.Content)

		foreign, err := f.todo.UpdateContent(ctx, "robert", todo.ID, map[string]any{"text": "stolen"})
		require.NoError(t, err)
		assert.Nil(t, foreign)

		foreign, err = f.todo.UpdateDone(ctx, "robert", todo.ID, false)
		require.NoError(t, err)
		assert.Nil(t, foreign)

		unchanged, err := f.todo.GetActive(ctx, "george", todo.ID)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"text": "buy bread"}, unchanged.Content)
		assert.True(t, unchanged.Done)

		_, err = f.todo.Remove(ctx, "george", todo.ID)
		require.NoError(t, err)

		trashed, err := f.todo.UpdateDone(ctx, "george", todo.ID, false)
		require.NoError(t, err)
		assert.Nil(t, trashed, "removed todos are not updated")
	})
}

func TestRemoveRestore(t *testing.T) {
	eachFixture(t, func(t *testing.T, f *fixture) {
		todos := f.create(t, "george", "id1", "id2")
		original := todos[0]

		removed, err := f.todo.Remove(ctx, "george", original.ID)
		require.NoError(t, err)
		require.NotNil(t, removed)
		assert.Equal(t, model.StateRemoved, removed.State())
		require.NotNil(t, removed.RemovedAt)
		assert.True(t, f.now.Equal(*removed.RemovedAt))

		active, err := f.todo.ListActive(ctx, "george")
		require.NoError(t, err)
		assert.Equal(t, []string{todos[1].ID}, ids(active))

		trash, err := f.todo.ListTrash(ctx, "george")
		require.NoError(t, err)
		assert.Equal(t, []string{original.ID}, ids(trash))
		assert.NotNil(t, trash[0].RemovedAt)

		got, err := f.todo.GetActive(ctx, "george", original.ID)
		require.NoError(t, err)
		assert.Nil(t, got)

		got, err = f.todo.GetTrashed(ctx, "george", original.ID)
		require.NoError(t, err)
		assert.Equal(t, original.ID, got.ID)

		restored, err := f.todo.Restore(ctx, "george", original.ID)
		require.NoError(t, err)
		require.NotNil(t, restored)
		assert.Equal(t, model.StateActive, restored.State())
		assert.Nil(t, restored.RemovedAt)
		assert.Equal(t, original.Content, restored.Content)
		assert.Equal(t, original.OrderKey, restored.OrderKey)
		assert.True(t, original.CreatedAt.Equal(*restored.CreatedAt))

		active, err = f.todo.ListActive(ctx, "george")
		require.NoError(t, err)
		assert.Equal(t, []string{todos[1].ID, original.ID}, ids(active))

		trash, err = f.todo.ListTrash(ctx, "george")
		require.NoError(t, err)
		assert.Empty(t, trash)

		got, err = f.todo.Restore(ctx, "george", original.ID)
		require.NoError(t, err)
		assert.Equal(t, original.ID, got.ID, "restoring an active todo returns it unchanged")
	})
}

func TestRemoveRestoreConcurrently(t *testing.T) {
	eachFixture(t, func(t *testing.T, f *fixture) {
		todo := f.create(t, "george", "contended")[0]

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(remove bool) {
				defer wg.Done()

				var got *model.Todo
				var err error
				if remove {
					got, err = f.todo.Remove(ctx, "george", todo.ID)
				} else {
					got, err = f.todo.Restore(ctx, "george", todo.ID)
				}
				if assert.NoError(t, err) && got != nil {
					assert.Equal(t, got.IsRemoved, got.RemovedAt != nil)
				}
			}(i%2 == 0)
		}
		wg.Wait()

		active, err := f.todo.GetActive(ctx, "george", todo.ID)
		require.NoError(t, err)
		trashed, err := f.todo.GetTrashed(ctx, "george", todo.ID)
		require.NoError(t, err)

		switch {
		case active != nil:
			assert.Nil(t, trashed)
			assert.False(t, active.IsRemoved)
			assert.Nil(t, active.RemovedAt)
		case trashed != nil:
			assert.True(t, trashed.IsRemoved)
			assert.NotNil(t, trashed.RemovedAt)
		default:
			t.Fatal("todo vanished")
		}
	})
}

func TestPurge(t *testing.T) {
	eachFixture(t, func(t *testing.T, f *fixture) {
		todos := f.create(t, "george", "id1", "id2", "id3")

		for _, todo := range todos[:2] {
			_, err := f.todo.Remove(ctx, "george", todo.ID)
			require.NoError(t, err)
		}

		trash, err := f.todo.PurgeOne(ctx, "george", todos[2].ID)
		require.NoError(t, err)
		assert.Equal(t, []string{todos[1].ID, todos[0].ID}, ids(trash), "active todos cannot be purged")

		trash, err = f.todo.PurgeOne(ctx, "george", "unknown")
		require.NoError(t, err)
		assert.Equal(t, []string{todos[1].ID, todos[0].ID}, ids(trash))

		trash, err = f.todo.PurgeOne(ctx, "george", todos[1].ID)
		require.NoError(t, err)
		assert.Equal(t, []string{todos[0].ID}, ids(trash))

		got, err := f.todo.GetTrashed(ctx, "george", todos[1].ID)
		require.NoError(t, err)
		assert.Nil(t, got)

		got, err = f.todo.Restore(ctx, "george", todos[1].ID)
		require.NoError(t, err)
		assert.Nil(t, got, "purged todos are gone")

		trash, err = f.todo.PurgeAllTrash(ctx, "george")
		require.NoError(t, err)
		assert.NotNil(t, trash)
		assert.Empty(t, trash)

		active, err := f.todo.ListActive(ctx, "george")
		require.NoError(t, err)
		assert.Equal(t, []string{todos[2].ID}, ids(active))
	})
}

func TestCrossUserIsolation(t *testing.T) {
	eachFixture(t, func(t *testing.T, f *fixture) {
		foreign := f.create(t, "robert", "private")[0]

		for _, id := range []string{foreign.ID, "unknown"} {
			got, err := f.todo.GetActive(ctx, "george", id)
			require.NoError(t, err)
			assert.Nil(t, got)

			got, err = f.todo.Remove(ctx, "george", id)
			require.NoError(t, err)
			assert.Nil(t, got)

			got, err = f.todo.GetTrashed(ctx, "george", id)
			require.NoError(t, err)
			assert.Nil(t, got)
		}

		_, err := f.todo.Remove(ctx, "robert", foreign.ID)
		require.NoError(t, err)

		for _, id := range []string{foreign.ID, "unknown"} {
			got, err := f.todo.Restore(ctx, "george", id)
			require.NoError(t, err)
			assert.Nil(t, got)

			trash, err := f.todo.PurgeOne(ctx, "george", id)
			require.NoError(t, err)
			assert.Empty(t, trash)
		}

		trash, err := f.todo.PurgeAllTrash(ctx, "george")
		require.NoError(t, err)
		assert.Empty(t, trash)

		trash, err = f.todo.ListTrash(ctx, "robert")
		require.NoError(t, err)
		assert.Equal(t, []string{foreign.ID}, ids(trash))
	})
}

func TestNormalize(t *testing.T) {
	eachFixture(t, func(t *testing.T, f *fixture) {
		todos := f.create(t, "george", "id1", "id2", "id3")

		_, err := f.todo.Remove(ctx, "george", todos[0].ID)
		require.NoError(t, err)

		// The new todo takes OrderKey 3 like id3.
		created := f.create(t, "george", "id4")[0]
		assert.Equal(t, 3, created.OrderKey)

		_, err = f.todo.Restore(ctx, "george", todos[0].ID)
		require.NoError(t, err)

		_, err = f.todo.Reorder(ctx, "george", []model.Rank{{ID: todos[0].ID, OrderKey: 3}})
		require.NoError(t, err)

		before, err := f.todo.ListActive(ctx, "george")
		require.NoError(t, err)
		assert.Equal(t, []int{3, 3, 3, 2}, orderKeys(before))

		active, err := f.todo.Normalize(ctx, "george")
		require.NoError(t, err)
		assert.Equal(t, ids(before), ids(active))
		assert.Equal(t, []int{4, 3, 2, 1}, orderKeys(active))

		again, err := f.todo.Normalize(ctx, "george")
		require.NoError(t, err)
		assert.Equal(t, active, again)
	})
}

func TestStorageFailure(t *testing.T) {
	eachFixture(t, func(t *testing.T, f *fixture) {
		f.create(t, "george", "first")
		require.NoError(t, f.db.Close())

		_, err := f.todo.Create(ctx, "george", "second")
		assert.Error(t, err)

		_, err = f.todo.ListActive(ctx, "george")
		assert.Error(t, err)

		_, err = f.todo.Reorder(ctx, "george", []model.Rank{{ID: "a", OrderKey: 1}})
		assert.Error(t, err)

		var logged bool
		for _, entry := range f.hook.AllEntries() {
			if entry.Level == logrus.ErrorLevel && entry.Message == "storage failure" {
				logged = true
			}
		}
		assert.True(t, logged)
	})
}
