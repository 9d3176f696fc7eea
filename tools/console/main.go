package main

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/asdine/storm/v3"
	"github.com/mdouchement/podote/internal/database"
	"github.com/mdouchement/podote/internal/model"
	"github.com/mdouchement/podote/pkg/stormsql"
	"github.com/mdouchement/podote/pkg/structs"
	"github.com/pkg/errors"
	"github.com/sanity-io/litter"
	"github.com/spf13/cobra"
)

// go run tools/console/main.go podote.db " SELECT count(*) FROM todos WHERE user_id = 'george' AND removed_at > '2022-03-01 10:00:00';  "

var (
	codec string
	dump  bool
)

func main() {
	c := &cobra.Command{
		Use:   "console DATABASE QUERY",
		Short: "SQL console for podote storm database",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			//
			//
			sc, err := stormsql.ParseSelect(args[1])
			if err != nil {
				return err
			}

			if sc.Tablename != "todos" {
				return errors.Errorf("unknown tablename: %s", sc.Tablename)
			}

			//
			//
			fmt.Println("Opening", args[0])
			db, err := database.StormConnect(args[0], codec)
			if err != nil {
				return errors.Wrap(err, "could not open database")
			}
			defer db.Close()

			//
			// Prepare request
			//

			query := db.Select(sc.Matcher)
			if sc.Skip > 0 {
				query.Skip(sc.Skip)
			}
			if sc.Limit > 0 {
				query.Limit(sc.Limit)
			}
			if len(sc.OrderBy) > 0 {
				query.OrderBy(sc.OrderBy...)
				if sc.OrderByReversed {
					query.Reverse()
				}
			}

			// Execute

			if sc.Count {
				return count(query)
			}

			return list(sc, query)
		},
	}
	c.Flags().StringVar(&codec, "codec", "msgpack", "Storm codec (msgpack, cbor, binc)")
	c.Flags().BoolVar(&dump, "dump", false, "Print records as Go values instead of JSON")

	if err := c.Execute(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func count(query storm.Query) error {
	n, err := query.Count(&model.Todo{})
	if err != nil && err != storm.ErrNotFound {
		return errors.Wrap(err, "could not perform query")
	}

	fmt.Println("Count:", n)

	return nil
}

func list(sc *stormsql.SelectClause, query storm.Query) error {
	var records []*model.Todo
	err := query.Find(&records)
	if err == storm.ErrNotFound {
		fmt.Println("[]")
		return nil
	}

	if err != nil {
		return errors.Wrap(err, "could not perform query")
	}

	if len(sc.SelectedFields) == 0 {
		output(records)
		return nil
	}

	// Only keep the selected columns
	rows := make([]map[string]any, 0, len(records))
	for _, record := range records {
		row, err := structs.Project(record, sc.SelectedFields...)
		if err != nil {
			return errors.Wrap(err, "unknown column")
		}
		rows = append(rows, row)
	}
	output(rows)

	return nil
}

func output(v any) {
	if dump {
		fmt.Println(litter.Sdump(v))
		return
	}

	d, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		panic(err)
	}
	fmt.Println(string(d))
}
