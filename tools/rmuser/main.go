package main

import (
	"fmt"
	"log"

	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/q"
	"github.com/mdouchement/podote/internal/database"
	"github.com/mdouchement/podote/internal/model"
	"github.com/muesli/coral"
	"github.com/pkg/errors"
)

var codec string

func main() {
	c := &coral.Command{
		Use:   "rmuser DATABASE USER_ID",
		Short: "Erase every todo of a user from a storm database",
		Args:  coral.ExactArgs(2),
		RunE: func(_ *coral.Command, args []string) error {
			//
			//
			fmt.Println("Opening", args[0])
			db, err := database.StormConnect(args[0], codec)
			if err != nil {
				return errors.Wrap(err, "could not open database")
			}
			defer db.Close()

			query := db.Select(q.Eq("UserID", args[1]))

			n, err := query.Count(&model.Todo{})
			if err != nil && err != storm.ErrNotFound {
				return errors.Wrap(err, "count todos")
			}
			if n == 0 {
				fmt.Println("No todo for this user")
				return nil
			}

			fmt.Println("Todos found:", n)

			// Deleting user's todos, active and trashed
			err = query.Delete(&model.Todo{})
			if err != nil && err != storm.ErrNotFound {
				return errors.Wrap(err, "delete todos")
			}
			fmt.Println("Todos removed")

			return nil
		},
	}
	c.Flags().StringVar(&codec, "codec", "msgpack", "Storm codec (msgpack, cbor, binc)")

	if err := c.Execute(); err != nil {
		log.Fatalf("%+v", err)
	}
}
