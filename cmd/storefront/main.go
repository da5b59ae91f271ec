package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	root, finish := newRootCmd(config.Load)
	err := root.ExecuteContext(context.Background())
	finish()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// cliLogger keeps stdout for command output.
func cliLogger(cfg *config.Config) *logger.Logger {
	level := "warn"
	if cfg != nil && cfg.App.IsDev() && cfg.App.LogLevel == "debug" {
		level = "debug"
	}
	return logger.New(logger.Options{
		ServiceName: "storefront-cli",
		Level:       logger.ParseLevel(level),
		Output:      os.Stderr,
	})
}
