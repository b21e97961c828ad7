package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/taskpilot/taskpilot/pkg/config"
	"github.com/taskpilot/taskpilot/pkg/utils"
)

func main() {
	utils.InitLogger()
	logger := utils.GetLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	gdb, err := OpenDatabase(cfg)
	if err != nil {
		logger.Error("Failed to open database", "error", err, "path", cfg.DatabasePath)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := NewServer(cfg, gdb)
	if err := server.Start(ctx); err != nil {
		logger.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped")
}
