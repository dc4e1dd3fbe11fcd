package main

import (
	"github.com/wfunc/wiezen/config"
	"github.com/wfunc/wiezen/logger"
	"github.com/wfunc/wiezen/persistence"
	"github.com/wfunc/wiezen/server"
)

func main() {
	// Initialize logger
	logger.Init()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Database
	pg := cfg.Database.Postgres
	var db persistence.Store
	switch cfg.Database.Driver {
	case "", "gorm":
		db, err = persistence.NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	case "pq":
		db, err = persistence.NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	default:
		logger.Log.Fatalf("Unknown database driver %q", cfg.Database.Driver)
	}
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Log.Info("Database connection successful.")

	// Initialize Score Server
	scoreServer := server.NewServer(cfg.Server.HTTPAddress, cfg.Server.RPCAddress, db)
	defer scoreServer.Shutdown()

	if err := scoreServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
