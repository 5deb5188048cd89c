package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"aura-go/internal/logger"
	"aura-go/store"
)

const searchLimit = 50

func sessionsCmd() *cli.Command {
	var f flagValues

	// withStore opens the database for a subcommand action.
	withStore := func(fn func(ctx context.Context, cmd *cli.Command, st *store.Store) error) cli.ActionFunc {
		return func(ctx context.Context, cmd *cli.Command) error {
			ctx, vals, err := resolve(ctx, cmd, &f)
			if err != nil {
				return err
			}
			st, err := store.Open(vals.Database, store.WithLogger(logger.FromContext(ctx)))
			if err != nil {
				return err
			}
			defer st.Close()
			return fn(ctx, cmd, st)
		}
	}

	return &cli.Command{
		Name:  "sessions",
		Usage: "Manage stored conversations",
		// Subcommands inherit these flags.
		Flags: flagsOf(&f, storeFlags),
		Action: withStore(func(ctx context.Context, _ *cli.Command, st *store.Store) error {
			return listSessions(ctx, st)
		}),
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List sessions, pinned first",
				Action: withStore(func(ctx context.Context, _ *cli.Command, st *store.Store) error { return listSessions(ctx, st) }),
			},
			{
				Name:      "show",
				Usage:     "Print the messages of a session",
				ArgsUsage: "<session-id>",
				Action: withStore(func(ctx context.Context, cmd *cli.Command, st *store.Store) error {
					id, err := argAt(cmd, 0, "session id")
					if err != nil {
						return err
					}
					sess, err := st.Session(ctx, id)
					if err != nil {
						return err
					}
					msgs, err := st.Messages(ctx, id)
					if err != nil {
						return err
					}
					fmt.Printf("# %s\n\n", sess.Title)
					for _, m := range msgs {
						role := "Assistant"
						if m.FromUser {
							role = "User"
						}
						fmt.Printf("[%s] %s (%d tokens)\n%s\n\n", m.CreatedAt.Format("2006-01-02 15:04"), role, m.TokenCount, m.Content)
					}
					return nil
				}),
			},
			{
				Name:      "rename",
				Usage:     "Change a session title",
				ArgsUsage: "<session-id> <title>",
				Action: withStore(func(ctx context.Context, cmd *cli.Command, st *store.Store) error {
					id, err := argAt(cmd, 0, "session id")
					if err != nil {
						return err
					}
					title := strings.TrimSpace(strings.Join(cmd.Args().Slice()[1:], " "))
					if title == "" {
						return errors.New("a title is required")
					}
					return st.Rename(ctx, id, title)
				}),
			},
			{
				Name:      "pin",
				Usage:     "Keep a session at the top of the list",
				ArgsUsage: "<session-id>",
				Action:    withStore(setPinned(true)),
			},
			{
				Name:      "unpin",
				Usage:     "Unpin a session",
				ArgsUsage: "<session-id>",
				Action:    withStore(setPinned(false)),
			},
			{
				Name:      "delete",
				Usage:     "Delete a session and its messages",
				ArgsUsage: "<session-id>",
				Action: withStore(func(ctx context.Context, cmd *cli.Command, st *store.Store) error {
					id, err := argAt(cmd, 0, "session id")
					if err != nil {
						return err
					}
					return st.DeleteSession(ctx, id)
				}),
			},
			{
				Name:      "search",
				Usage:     "Find messages containing text",
				ArgsUsage: "<text>",
				Action: withStore(func(ctx context.Context, cmd *cli.Command, st *store.Store) error {
					query := strings.Join(cmd.Args().Slice(), " ")
					msgs, err := st.Search(ctx, query, searchLimit)
					if err != nil {
						return err
					}
					w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
					fmt.Fprintln(w, "SESSION\tWHEN\tMESSAGE")
					for _, m := range msgs {
						fmt.Fprintf(w, "%s\t%s\t%s\n", m.SessionID, m.CreatedAt.Format("2006-01-02 15:04"), store.TitleFrom(m.Content))
					}
					return w.Flush()
				}),
			},
		},
	}
}

func listSessions(ctx context.Context, st *store.Store) error {
	sessions, err := st.Sessions(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tMESSAGES\tUPDATED\tPINNED")
	for _, s := range sessions {
		pinned := ""
		if s.Pinned {
			pinned = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", s.ID, s.Title, s.MessageCount, s.UpdatedAt.Format("2006-01-02 15:04"), pinned)
	}
	return w.Flush()
}

func setPinned(pinned bool) func(context.Context, *cli.Command, *store.Store) error {
	return func(ctx context.Context, cmd *cli.Command, st *store.Store) error {
		id, err := argAt(cmd, 0, "session id")
		if err != nil {
			return err
		}
		return st.SetPinned(ctx, id, pinned)
	}
}

func argAt(cmd *cli.Command, i int, what string) (string, error) {
	if cmd.NArg() <= i {
		return "", fmt.Errorf("%s is required", what)
	}
	return cmd.Args().Get(i), nil
}
