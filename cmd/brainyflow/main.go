// brainyflow runs the cookbook graphs.
//
// Usage:
//
//	brainyflow list
//	brainyflow run <recipe> [--provider=mock|openai|gemini] [--question=<text>]
//	brainyflow run crawler --question="https://go.dev https://pkg.go.dev"
//
// Settings come from --config (YAML), then BRAINYFLOW_* variables, then flags.
// A .env file in the working directory fills variables that are not set.
package main

import (
	"context"
	"os"
	"os/signal"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
