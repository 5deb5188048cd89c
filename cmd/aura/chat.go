package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/urfave/cli/v3"

	"aura-go/aura"
)

func chatCmd() *cli.Command {
	var (
		f         flagValues
		sessionID string
	)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive conversation stored in the conversation database",
		Flags: append(flagsOf(&f, modelFlags, generationFlags, storeFlags),
			&cli.StringFlag{
				Name:        "session",
				Aliases:     []string{"s"},
				Usage:       "continue an existing session instead of starting a new one",
				Destination: &sessionID,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx, vals, err := resolve(ctx, cmd, &f)
			if err != nil {
				return err
			}
			rt, err := openRuntime(ctx, vals, runtimeOptions{withStore: true, progress: f.progress})
			if err != nil {
				return err
			}
			defer rt.Close()

			if sessionID == "" {
				sess, err := rt.store.CreateSession(ctx, "")
				if err != nil {
					return err
				}
				sessionID = sess.ID
			} else if _, err := rt.store.Session(ctx, sessionID); err != nil {
				return err
			}

			if name, ok := rt.assistant.Session().CurrentModel(); ok {
				fmt.Fprintf(os.Stderr, "Model: %s\n", name)
			}
			fmt.Fprintf(os.Stderr, "Session %s. Type /exit to quit.\n", sessionID)
			return chatLoop(ctx, rt, sessionID, os.Stdin, os.Stdout)
		},
	}
}

func chatLoop(ctx context.Context, rt *runtime, sessionID string, in io.Reader, out io.Writer) error {
	gc := rt.generationConfig()
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		}

		// Ctrl-C interrupts the current reply only.
		msgCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		resp, err := rt.assistant.Send(msgCtx, sessionID, input, gc)
		stop()
		if err != nil {
			return err
		}

		fmt.Fprintln(out, resp.Text)
		if resp.Result.StopReason == aura.StopAborted && !resp.Placeholder {
			fmt.Fprintf(os.Stderr, "[stopped: %v]\n", resp.Result.Err)
		}
	}
}
