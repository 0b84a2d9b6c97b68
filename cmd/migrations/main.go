package main

import (
	"os"

	"github.com/appshelf/appshelf/pkg/config"
	"github.com/appshelf/appshelf/pkg/database"
	"github.com/robinjoseph08/golib/logger"
)

func main() {
	log := logger.New()

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}
	defer db.Close()

	if err := newApp(db).Run(os.Args); err != nil {
		log.Err(err).Fatal("app run error")
	}
}
