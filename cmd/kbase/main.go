// Command kbase ingests documents into a vector knowledge base and answers
// similarity queries over them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/kbase/internal/adapters/driving/cli"
	"github.com/custodia-labs/kbase/internal/logger"
)

var version = "dev"

func main() {
	// A .env file is optional; KBASE_* variables override config.toml.
	_ = godotenv.Load()
	logger.Init(os.Getenv("KBASE_LOG_MODE"))
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.SetVersion(version)
	cli.SetLoader(build)
	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
