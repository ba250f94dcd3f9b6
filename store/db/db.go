// Package db selects the concrete store driver from the profile.
package db

import (
	"github.com/pkg/errors"

	"github.com/serani-ai/serani/internal/profile"
	"github.com/serani-ai/serani/store"
	"github.com/serani-ai/serani/store/db/postgres"
	"github.com/serani-ai/serani/store/db/sqlite"
)

// NewDriver creates a database driver based on the profile.
func NewDriver(profile *profile.Profile) (store.Driver, error) {
	switch profile.Driver {
	case "sqlite":
		return sqlite.NewDB(profile)
	case "postgres":
		return postgres.NewDB(profile)
	default:
		return nil, errors.Errorf("unsupported driver: %s", profile.Driver)
	}
}
