package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"direct-messaging/internal/app/chat"
	"direct-messaging/internal/bootstrap"
	"direct-messaging/internal/domain/conversation"
	"direct-messaging/internal/domain/directory"
	"direct-messaging/internal/domain/message"
	"direct-messaging/internal/infra/config"
	"direct-messaging/internal/infra/obs"
)

const timeLayout = "2006-01-02 15:04:05"

func keyCommand() *cli.Command {
	return &cli.Command{
		Name:      "key",
		Usage:     "Print the conversation key of two participants",
		ArgsUsage: "UID UID",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("expected two participant ids, got %d", c.NArg())
			}
			key, err := conversation.DeriveKey(c.Args().Get(0), c.Args().Get(1))
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, key)
			return nil
		},
	}
}

func contactsCommand() *cli.Command {
	return &cli.Command{
		Name:  "contacts",
		Usage: "List the actors you can message",
		Action: withSession(func(c *cli.Context, app *bootstrap.App, actor directory.Actor) error {
			entries, err := app.Service.Contacts(c.Context, actor)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUID\tNAME")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.ID, e.UID, e.Label())
			}
			return w.Flush()
		}),
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List your conversations, newest first",
		Action: withSession(func(c *cli.Context, app *bootstrap.App, actor directory.Actor) error {
			summaries, err := app.Service.Conversations(c.Context, actor)
			if err != nil {
				return err
			}
			printSummaries(c.App.Writer, summaries)
			return nil
		}),
	}
}

func threadCommand() *cli.Command {
	return &cli.Command{
		Name:      "thread",
		Usage:     "Print a conversation, oldest first",
		ArgsUsage: "KEY",
		Action: withSession(func(c *cli.Context, app *bootstrap.App, actor directory.Actor) error {
			key := conversation.Key(c.Args().First())
			msgs, err := app.Service.Messages(c.Context, actor, key)
			if err != nil {
				return err
			}
			printMessages(c.App.Writer, msgs)
			return nil
		}),
	}
}

func sendCommand() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "Send a message",
		ArgsUsage: "TEXT...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "to", Usage: "Recipient directory `ID`", Required: true},
		},
		Action: withSession(func(c *cli.Context, app *bootstrap.App, actor directory.Actor) error {
			text := strings.Join(c.Args().Slice(), " ")
			saved, err := app.Service.Send(c.Context, actor, c.String("to"), text)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%s %s\n", saved.ID, saved.ConversationKey)
			return nil
		}),
	}
}

func eraseCommand() *cli.Command {
	return &cli.Command{
		Name:      "erase",
		Usage:     "Delete a conversation for both participants",
		ArgsUsage: "KEY",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "confirm", Usage: "Repeat the conversation `KEY` to confirm"},
		},
		Action: withSession(func(c *cli.Context, app *bootstrap.App, actor directory.Actor) error {
			key := conversation.Key(c.Args().First())
			var confirm chat.Confirmation
			if c.String("confirm") == string(key) {
				confirm = chat.Confirm(key)
			}
			res, err := app.Service.DeleteConversation(c.Context, actor, key, confirm)
			var partial *chat.PartialDeleteError
			if errors.As(err, &partial) {
				for _, f := range partial.Failures {
					fmt.Fprintf(c.App.Writer, "failed %s: %v\n", f.MessageID, f.Err)
				}
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "deleted %d of %d messages\n", res.Deleted, res.Expected)
			return nil
		}),
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Follow your conversation list, and optionally one thread, until interrupted",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "with", Usage: "Also follow the thread with directory `ID`"},
		},
		Action: withSession(func(c *cli.Context, app *bootstrap.App, actor directory.Actor) error {
			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			runErr := make(chan error, 1)
			go func() { runErr <- app.Run(ctx) }()

			updates := make(chan func(io.Writer), 16)
			push := func(fn func(io.Writer)) {
				select {
				case updates <- fn:
				default:
				}
			}
			session := app.Service.NewSession(actor, chat.Observers{
				OnListing: func(l chat.Listing) {
					push(func(w io.Writer) {
						fmt.Fprintf(w, "-- conversations %s\n", time.Now().Format(timeLayout))
						if l.Err != nil {
							fmt.Fprintf(w, "stale: %v\n", l.Err)
						}
						printSummaries(w, l.Summaries)
					})
				},
				OnView: func(v chat.View) {
					push(func(w io.Writer) {
						fmt.Fprintf(w, "-- thread %s\n", v.Key)
						if v.Err != nil {
							fmt.Fprintf(w, "stale: %v\n", v.Err)
						}
						printMessages(w, v.Messages)
					})
				},
			})
			defer session.Close()
			if err := session.Start(ctx); err != nil {
				return err
			}
			if id := c.String("with"); id != "" {
				if err := session.SelectRecipient(ctx, id); err != nil {
					return err
				}
			}
			for {
				select {
				case fn := <-updates:
					fn(c.App.Writer)
				case err := <-runErr:
					return err
				}
			}
		}),
	}
}

type sessionAction func(c *cli.Context, app *bootstrap.App, actor directory.Actor) error

// withSession builds the messaging core from the environment and resolves --token.
func withSession(action sessionAction) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		logger := obs.NewLogger(cfg.Env)
		app, err := bootstrap.Build(cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			_ = app.Close(ctx)
		}()

		token := c.String("token")
		if token == "" {
			return errors.New("--token is required")
		}
		actor, ok := app.Directory.CurrentActor(c.Context, token)
		if !ok {
			return errors.New("token not recognised")
		}
		return action(c, app, actor)
	}
}

func printSummaries(w io.Writer, summaries []chat.Summary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tWITH\tAT\tLAST")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ConversationKey, s.OtherParticipantName, s.LastMessageAt.Format(timeLayout), s.LastMessageText)
	}
	_ = tw.Flush()
}

func printMessages(w io.Writer, msgs []message.Message) {
	for _, m := range msgs {
		fmt.Fprintf(w, "[%s] %s: %s\n", m.CreatedAt.Format(timeLayout), m.SenderDisplayName, m.Text)
	}
}
