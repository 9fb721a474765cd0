// Package db selects the database driver for the configured profile.
package db

import (
	"github.com/pkg/errors"

	"github.com/kestrelhq/kestrel/internal/profile"
	"github.com/kestrelhq/kestrel/store"
	"github.com/kestrelhq/kestrel/store/db/postgres"
	"github.com/kestrelhq/kestrel/store/db/sqlite"
)

// NewDBDriver creates a new database driver based on the profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	switch profile.Driver {
	case "sqlite":
		return sqlite.NewDB(profile)
	case "postgres":
		return postgres.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver %q", profile.Driver)
	}
}
