package main

import (
	"github.com/pkg/errors"

	"github.com/trezcool/edusource/storage/database"
)

var (
	gooseRunFunc = database.RunMigrations // mockable

	errNoSQL = errors.New("migrations need the postgres engine")
)

func (cli *commandLine) migrate(args []string) error {
	if cli.store == nil || cli.store.SQL == nil {
		return errNoSQL
	}
	return gooseRunFunc(args[0], cli.store.SQL.DB, args[1:]...)
}
