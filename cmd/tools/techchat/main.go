package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/techbot/internal/app"
	"github.com/zhouzirui/techbot/internal/config"
	"github.com/zhouzirui/techbot/internal/logger"
	"github.com/zhouzirui/techbot/internal/service/assistant"
	"github.com/zhouzirui/techbot/internal/service/chat"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "techchat",
		Short:        "Chat with TechBot from the terminal",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = godotenv.Load()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			level, _ := cfg.Log.SlogLevel()
			log := logger.New(cmd.ErrOrStderr(), level, cfg.Log.Format)

			svc, err := app.NewAssistant(cmd.Context(), cfg.AI, log)
			if err != nil {
				return err
			}
			return newREPL(svc, chat.NewStoreWithSession(), cmd.OutOrStdout()).run(cmd.Context(), cmd.InOrStdin())
		},
	}
}

type repl struct {
	svc   *assistant.Service
	store *chat.Store
	out   io.Writer
}

func newREPL(svc *assistant.Service, store *chat.Store, out io.Writer) *repl {
	return &repl{svc: svc, store: store, out: out}
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(r.out, "TechBot. Ask a technical question, or /new /clear /list /select <id> /quit.")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(r.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			return nil
		}
		if err := r.handle(ctx, line); err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
		}
	}
}

func (r *repl) handle(ctx context.Context, line string) error {
	command, arg, _ := strings.Cut(line, " ")
	switch command {
	case "/new":
		session, err := r.svc.NewChat(ctx, r.store)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "started chat %s\n", session.ID)
	case "/clear":
		if err := r.svc.ClearCurrent(r.store); err != nil {
			return err
		}
		fmt.Fprintln(r.out, "cleared")
	case "/list":
		current := r.store.CurrentID()
		for _, s := range r.svc.History(r.store) {
			marker := " "
			if s.ID == current {
				marker = "*"
			}
			fmt.Fprintf(r.out, "%s %s  %s  %s\n", marker, s.ID, s.DisplayCreatedAt(), s.Topic)
		}
	case "/select":
		if err := r.svc.Select(r.store, strings.TrimSpace(arg)); err != nil {
			return err
		}
		session, err := r.store.Current()
		if err != nil {
			return err
		}
		for _, m := range session.Messages {
			fmt.Fprintf(r.out, "[%s] %s: %s\n", m.DisplayTime(), m.Role, m.Content)
		}
	default:
		reply, err := r.svc.Ask(ctx, r.store, line, func(p assistant.Phase) {
			if p == assistant.PhaseClassifying {
				fmt.Fprintln(r.out, "thinking...")
			}
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "[%s] %s\n", reply.Message.DisplayTime(), reply.Message.Content)
	}
	return nil
}
