// Code assistant server: generates, debugs, explains and optimizes code with a
// locally served instruction model.
//
// Commands:
//
//	serve   load the model and serve HTTP, gRPC and metrics (default)
//	prompt  print the formatted model prompt for a task
//	ask     send a task to a running server over gRPC
//
// Every serve flag can also be set from the environment (MODEL_NAME,
// HUGGINGFACE_API_TOKEN, MAX_LENGTH, TEMPERATURE, PORT, REDIS_URL, ...) or
// from a YAML/TOML file passed with --config. Flags win over the environment,
// which wins over the file.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:           "assistant",
		Usage:          "AI code assistant backed by a local instruction model",
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			serveCmd(),
			promptCmd(),
			askCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
