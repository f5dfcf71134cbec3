package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/abdhe/code-assistant/pkg/config"
	"github.com/abdhe/code-assistant/pkg/prompt"
)

func promptCmd() *cli.Command {
	def := config.Default()
	var (
		task, language  string
		user, assistant string
	)

	return &cli.Command{
		Name:      "prompt",
		Usage:     "Print the formatted model prompt for a task",
		ArgsUsage: "[input]  (read from stdin when omitted)",
		Flags: []cli.Flag{
			taskFlag(&task),
			&cli.StringFlag{Name: "language", Usage: "programming language", Value: def.Generation.DefaultLanguage, Destination: &language},
			&cli.StringFlag{Name: "user-marker", Usage: "user role marker", Value: def.Model.UserMarker, Destination: &user},
			&cli.StringFlag{Name: "assistant-marker", Usage: "assistant role marker", Value: def.Model.AssistantMarker, Destination: &assistant},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			t, err := prompt.ParseTask(task)
			if err != nil {
				return err
			}
			tmpl := prompt.Template{UserMarker: user, AssistantMarker: assistant}
			if err := tmpl.Validate(); err != nil {
				return err
			}
			input, err := readInput(cmd, os.Stdin)
			if err != nil {
				return err
			}
			instruction, err := prompt.Build(t, language, input)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.Root().Writer, tmpl.Format(instruction))
			return err
		},
	}
}

func taskFlag(dst *string) cli.Flag {
	names := make([]string, len(prompt.Tasks))
	for i, t := range prompt.Tasks {
		names[i] = string(t)
	}
	return &cli.StringFlag{
		Name:        "task",
		Usage:       "one of " + strings.Join(names, ", "),
		Value:       string(prompt.TaskGenerate),
		Destination: dst,
	}
}

// readInput joins the positional arguments, or reads r when there are none.
func readInput(cmd *cli.Command, r io.Reader) (string, error) {
	if cmd.Args().Len() > 0 {
		return strings.Join(cmd.Args().Slice(), " "), nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", errors.New("no input given")
	}
	return strings.TrimRight(string(data), "\n"), nil
}
