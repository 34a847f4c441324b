package main

import (
	"context"
	"fmt"
	"os"

	"github.com/trezcool/horarios/core"
	logsvc "github.com/trezcool/horarios/services/logger"
	"github.com/trezcool/horarios/storage/database"
	sqlxrepos "github.com/trezcool/horarios/storage/database/sqlx"
)

func main() {
	workDir, err := os.Getwd()
	errAndDie(err)
	conf, err := core.NewConfig(workDir)
	errAndDie(err)

	logger, err := logsvc.NewZapLogger(conf)
	errAndDie(err)
	defer func() { _ = logger.Sync() }()

	// set up DB
	db, err := database.Open(context.Background(), conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}

	// start CLI
	cli := commandLine{
		db:      db.DB,
		catRepo: sqlxrepos.NewCatalogRepository(db),
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error("admin command failed", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
