package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/mdouchement/podote/internal/config"
	"github.com/mdouchement/podote/internal/database"
	"github.com/mdouchement/podote/internal/logger"
	"github.com/mdouchement/podote/internal/pderror"
	"github.com/mdouchement/podote/internal/service"
	"github.com/mdouchement/podote/internal/validation"
	"github.com/muesli/coral"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"

	cfg  string
	user string
)

func main() {
	c := &coral.Command{
		Use:           "podote",
		Short:         "Per-user todo lists",
		Version:       fmt.Sprintf("%s - build %.7s @ %s - %s", version, revision, date, runtime.Version()),
		Args:          coral.ExactArgs(0),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	c.PersistentFlags().StringVarP(&cfg, "config", "c", "", "Configuration file")
	c.AddCommand(initCmd)
	c.AddCommand(reindexCmd)
	c.AddCommand(todoCmd())

	if err := c.Execute(); err != nil {
		if pderror.KindOf(err) == pderror.KindMalformed {
			jsondump(os.Stderr, errors.Cause(err))
			os.Exit(2)
		}
		log.Fatalf("%+v", err)
	}
}

var (
	initCmd = &coral.Command{
		Use:   "init",
		Short: "Init the database",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			konf, err := config.Load(cfg)
			if err != nil {
				return err
			}

			if konf.Database.Driver == database.DriverStorm {
				return database.StormInit(konf.Database.Path, konf.Database.Codec)
			}

			// Relational schemas are migrated when opened.
			db, err := database.Open(konf.Database.Params)
			if err != nil {
				return errors.Wrap(err, "could not open database")
			}
			return db.Close()
		},
	}

	//
	reindexCmd = &coral.Command{
		Use:   "reindex",
		Short: "Reindex the database",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			konf, err := config.Load(cfg)
			if err != nil {
				return err
			}

			if konf.Database.Driver != database.DriverStorm {
				return errors.Errorf("reindex is not supported by the %s driver", konf.Database.Driver)
			}
			return database.StormReIndex(konf.Database.Path, konf.Database.Codec)
		},
	}
)

// An env holds everything a todo command needs.
type env struct {
	ctx       context.Context
	service   *service.TodoService
	validator *validation.Validator
	user      string
}

// withEnv loads the configuration, opens the database and runs fn with the acting user.
func withEnv(fn func(e *env) error) error {
	konf, err := config.Load(cfg)
	if err != nil {
		return err
	}

	logg, err := logger.New(konf.Log)
	if err != nil {
		return err
	}

	validator, err := validation.New(konf.ContentSchema)
	if err != nil {
		return err
	}
	if err = validator.UserID(user); err != nil {
		return err
	}

	db, err := database.Open(konf.Database.Params)
	if err != nil {
		return errors.Wrap(err, "could not open database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), konf.Database.Timeout)
	defer cancel()

	return fn(&env{
		ctx:       ctx,
		service:   service.NewTodo(db, service.WithLogger(logg.WithField("driver", konf.Database.Driver))),
		validator: validator,
		user:      user,
	})
}

// jsondump writes v as indented JSON.
func jsondump(w *os.File, v any) {
	d, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logrus.WithError(err).Error("could not render result")
		return
	}
	fmt.Fprintln(w, string(d))
}
