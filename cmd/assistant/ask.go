package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/urfave/cli/v3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/abdhe/code-assistant/pkg/grpcapi"
	"github.com/abdhe/code-assistant/pkg/prompt"
)

func askCmd() *cli.Command {
	var (
		addr, task, language string
		maxLength            int
		temperature          float64
		timeout              time.Duration
	)

	return &cli.Command{
		Name:      "ask",
		Usage:     "Send a task to a running server over gRPC",
		ArgsUsage: "[input]  (read from stdin when omitted)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "gRPC server address", Value: "localhost:50051", Destination: &addr, Sources: cli.EnvVars("ASSISTANT_ADDR")},
			taskFlag(&task),
			&cli.StringFlag{Name: "language", Usage: "programming language (server default when empty)", Destination: &language},
			&cli.IntFlag{Name: "max-length", Usage: "max new tokens, generate only", Destination: &maxLength},
			&cli.Float64Flag{Name: "temperature", Usage: "sampling temperature, generate only", Destination: &temperature},
			&cli.DurationFlag{Name: "timeout", Usage: "call deadline", Value: 3 * time.Minute, Destination: &timeout},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			t, err := prompt.ParseTask(task)
			if err != nil {
				return err
			}
			input, err := readInput(cmd, os.Stdin)
			if err != nil {
				return err
			}

			req := askRequest{task: t, input: input, language: language}
			if cmd.IsSet("max-length") {
				if req.maxLength, err = int32Of("max-length", maxLength); err != nil {
					return err
				}
			}
			if cmd.IsSet("temperature") {
				req.temperature = &temperature
			}

			conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				return fmt.Errorf("dial %s: %w", addr, err)
			}
			defer conn.Close()

			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			reply, err := ask(ctx, grpcapi.NewClient(conn), req)
			if err != nil {
				if st, ok := status.FromError(err); ok {
					return fmt.Errorf("%s: %s", st.Code(), st.Message())
				}
				return err
			}
			_, err = fmt.Fprintln(cmd.Root().Writer, reply.Response)
			return err
		},
	}
}

type askRequest struct {
	task        prompt.Task
	input       string
	language    string
	maxLength   *int32
	temperature *float64
}

func int32Of(name string, n int) (*int32, error) {
	if n < math.MinInt32 || n > math.MaxInt32 {
		return nil, fmt.Errorf("%s %d is out of range", name, n)
	}
	v := int32(n)
	return &v, nil
}

func ask(ctx context.Context, c *grpcapi.Client, r askRequest) (*grpcapi.Reply, error) {
	code := &grpcapi.CodeRequest{Code: r.input, Language: r.language}
	switch r.task {
	case prompt.TaskDebug:
		return c.Debug(ctx, code)
	case prompt.TaskExplain:
		return c.Explain(ctx, code)
	case prompt.TaskOptimize:
		return c.Optimize(ctx, code)
	default:
		return c.Generate(ctx, &grpcapi.GenerateRequest{
			Prompt:      r.input,
			Language:    r.language,
			MaxLength:   r.maxLength,
			Temperature: r.temperature,
		})
	}
}
