package main

import (
	"io"
	"os"
	"strconv"

	"github.com/mdouchement/podote/internal/pderror"
	"github.com/muesli/coral"
	"github.com/pkg/errors"
)

func todoCmd() *coral.Command {
	c := &coral.Command{
		Use:   "todo",
		Short: "Manage the todos of a user",
	}
	c.PersistentFlags().StringVarP(&user, "user", "u", "", "Acting user id")

	c.AddCommand(
		&coral.Command{
			Use:   "create CONTENT",
			Short: "Create a todo on top of the list (use - to read the JSON content from stdin)",
			Args:  coral.ExactArgs(1),
			RunE: func(_ *coral.Command, args []string) error {
				return withEnv(func(e *env) error {
					content, err := readContent(e, args[0])
					if err != nil {
						return err
					}
					return render(e.service.Create(e.ctx, e.user, content))
				})
			},
		},
		&coral.Command{
			Use:   "list",
			Short: "List the active todos, higher rank first",
			Args:  coral.ExactArgs(0),
			RunE: func(_ *coral.Command, _ []string) error {
				return withEnv(func(e *env) error {
					return render(e.service.ListActive(e.ctx, e.user))
				})
			},
		},
		&coral.Command{
			Use:   "trash",
			Short: "List the removed todos, last removed first",
			Args:  coral.ExactArgs(0),
			RunE: func(_ *coral.Command, _ []string) error {
				return withEnv(func(e *env) error {
					return render(e.service.ListTrash(e.ctx, e.user))
				})
			},
		},
		&coral.Command{
			Use:   "show ID",
			Short: "Show an active todo",
			Args:  coral.ExactArgs(1),
			RunE: func(_ *coral.Command, args []string) error {
				return withEnv(func(e *env) error {
					return render(e.service.GetActive(e.ctx, e.user, args[0]))
				})
			},
		},
		&coral.Command{
			Use:   "trashed ID",
			Short: "Show a removed todo",
			Args:  coral.ExactArgs(1),
			RunE: func(_ *coral.Command, args []string) error {
				return withEnv(func(e *env) error {
					return render(e.service.GetTrashed(e.ctx, e.user, args[0]))
				})
			},
		},
		&coral.Command{
			Use:   "content ID CONTENT",
			Short: "Replace the content of an active todo (use - to read the JSON content from stdin)",
			Args:  coral.ExactArgs(2),
			RunE: func(_ *coral.Command, args []string) error {
				return withEnv(func(e *env) error {
					content, err := readContent(e, args[1])
					if err != nil {
						return err
					}
					return render(e.service.UpdateContent(e.ctx, e.user, args[0], content))
				})
			},
		},
		&coral.Command{
			Use:   "done ID true|false",
			Short: "Mark an active todo as done or not",
			Args:  coral.ExactArgs(2),
			RunE: func(_ *coral.Command, args []string) error {
				done, err := strconv.ParseBool(args[1])
				if err != nil {
					return pderror.Malformed("invalid-done", "done must be a boolean")
				}

				return withEnv(func(e *env) error {
					return render(e.service.UpdateDone(e.ctx, e.user, args[0], done))
				})
			},
		},
		&coral.Command{
			Use:   "reorder RANKS",
			Short: `Rewrite ranks from a JSON array like [{"id":"...","orderKey":3}] (use - to read from stdin)`,
			Args:  coral.ExactArgs(1),
			RunE: func(_ *coral.Command, args []string) error {
				return withEnv(func(e *env) error {
					data, err := payload(args[0])
					if err != nil {
						return err
					}

					ranks, err := e.validator.Ranks(data)
					if err != nil {
						return err
					}
					return render(e.service.Reorder(e.ctx, e.user, ranks))
				})
			},
		},
		&coral.Command{
			Use:   "normalize",
			Short: "Renumber the active todos from n to 1 keeping their order",
			Args:  coral.ExactArgs(0),
			RunE: func(_ *coral.Command, _ []string) error {
				return withEnv(func(e *env) error {
					return render(e.service.Normalize(e.ctx, e.user))
				})
			},
		},
		&coral.Command{
			Use:   "remove ID",
			Short: "Move an active todo to the trash",
			Args:  coral.ExactArgs(1),
			RunE: func(_ *coral.Command, args []string) error {
				return withEnv(func(e *env) error {
					return render(e.service.Remove(e.ctx, e.user, args[0]))
				})
			},
		},
		&coral.Command{
			Use:   "restore ID",
			Short: "Move a removed todo back to the active list",
			Args:  coral.ExactArgs(1),
			RunE: func(_ *coral.Command, args []string) error {
				return withEnv(func(e *env) error {
					return render(e.service.Restore(e.ctx, e.user, args[0]))
				})
			},
		},
		&coral.Command{
			Use:   "purge ID",
			Short: "Erase a removed todo",
			Args:  coral.ExactArgs(1),
			RunE: func(_ *coral.Command, args []string) error {
				return withEnv(func(e *env) error {
					return render(e.service.PurgeOne(e.ctx, e.user, args[0]))
				})
			},
		},
		&coral.Command{
			Use:   "empty-trash",
			Short: "Erase every removed todo",
			Args:  coral.ExactArgs(0),
			RunE: func(_ *coral.Command, _ []string) error {
				return withEnv(func(e *env) error {
					return render(e.service.PurgeAllTrash(e.ctx, e.user))
				})
			},
		},
	)

	return c
}

func readContent(e *env, arg string) (any, error) {
	data, err := payload(arg)
	if err != nil {
		return nil, err
	}
	return e.validator.Content(data)
}

// payload returns the argument itself or stdin when the argument is "-".
func payload(arg string) ([]byte, error) {
	if arg != "-" {
		return []byte(arg), nil
	}

	data, err := io.ReadAll(os.Stdin)
	return data, errors.Wrap(err, "could not read stdin")
}

// render prints the result of a todo operation on stdout.
// A nil todo is rendered as null.
func render(v any, err error) error {
	if err != nil {
		return err
	}
	jsondump(os.Stdout, v)
	return nil
}
