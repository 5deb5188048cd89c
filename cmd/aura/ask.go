package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/urfave/cli/v3"

	"aura-go/internal/logger"
)

func askCmd() *cli.Command {
	var f flagValues

	return &cli.Command{
		Name:      "ask",
		Usage:     "Answer a single message without storing it",
		ArgsUsage: "<message>",
		Flags:     flagsOf(&f, modelFlags, generationFlags),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			message := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
			if message == "" {
				return errors.New("a message is required")
			}

			ctx, vals, err := resolve(ctx, cmd, &f)
			if err != nil {
				return err
			}
			rt, err := openRuntime(ctx, vals, runtimeOptions{progress: f.progress})
			if err != nil {
				return err
			}
			defer rt.Close()

			// Ctrl-C stops generation and prints what was produced so far.
			genCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
			defer stop()

			resp, err := rt.assistant.Ask(genCtx, nil, message, rt.generationConfig())
			if err != nil {
				return err
			}
			fmt.Println(resp.Text)

			logger.FromContext(ctx).Info("done",
				"prompt_tokens", resp.PromptTokenCount,
				"new_tokens", len(resp.Result.Tokens),
				"stop", resp.Result.StopReason,
			)
			return nil
		},
	}
}
