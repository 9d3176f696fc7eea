package database

import (
	"github.com/pkg/errors"
)

// Open returns a new database connection for the given parameters.
func Open(params Params) (Client, error) {
	switch params.Driver {
	case DriverStorm, "":
		return StormOpen(params.Path, params.Codec)
	case DriverSQLite:
		return SQLiteOpen(params.Path)
	case DriverPostgres:
		return PostgresOpen(params.DSN)
	default:
		return nil, errors.Errorf("unsupported database driver: %s", params.Driver)
	}
}
