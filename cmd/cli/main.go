package main

import (
	"os"
	"strings"

	"github.com/nimasrn/outreach-engine/internal/config"
	"github.com/nimasrn/outreach-engine/pkg/logger"
	"github.com/nimasrn/outreach-engine/pkg/pg"
)

func main() {
	err := config.Load(getEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	// main.go --dir=./migrations --cmd=up|down|status
	pgConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}
	dir := getMigrationPath()
	switch cmd := getCommand(); cmd {
	case "up":
		err = pg.Migrate(pgConf, dir)
	case "down":
		err = pg.Rollback(pgConf, dir)
	case "status":
		err = pg.Status(pgConf, dir)
	default:
		logger.Error("migration: unknown command", "cmd", cmd)
		return
	}
	if err != nil {
		logger.Error("migration: error running migrations", "error", err)
	}
}

func getCommand() string {
	for _, v := range os.Args {
		if strings.HasPrefix(v, "--cmd=") {
			return strings.TrimPrefix(v, "--cmd=")
		}
	}
	return "up"
}

func getEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	if _, err := os.Open(".env"); err != nil {
		logger.Error("failed to open the passed env file, got error" + err.Error())
		return ""
	}
	return ".env"
}

func getMigrationPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--dir=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	if _, err := os.Open("./migrations"); err != nil {
		logger.Error("failed to open the migrations dir, got error" + err.Error())
		return ""
	}
	return "./migrations"
}
