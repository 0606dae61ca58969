package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BTreeMap/CareBear/internal/flow"
	"github.com/BTreeMap/CareBear/internal/messaging"
	"github.com/BTreeMap/CareBear/internal/store"
)

const (
	replSessionKey = "terminal"
	replGreeting   = "CareBear is here. Type how you're feeling. Commands: /why, /resume, /quit"
)

func newChatCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the engine in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conv, err := buildTerminalConversation(*cfg)
			if err != nil {
				return err
			}
			return runREPL(cmd.Context(), conv, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&cfg.Seed, "seed", cfg.Seed, "seed reply selection for reproducible sessions (overrides $CAREBEAR_SEED)")
	return cmd
}

// buildTerminalConversation wires an engine over an in-memory store.
func buildTerminalConversation(cfg Config) (*messaging.Conversation, error) {
	classifier, err := buildClassifier(cfg.LexiconPath)
	if err != nil {
		return nil, err
	}
	screener, err := buildScreener(cfg.CrisisRulesPath)
	if err != nil {
		return nil, err
	}
	backend := stateBackend{store: store.NewMemoryStateStore()}
	engine := flow.NewEngine(classifier, screener, backend.store, engineOptions(cfg, backend, nil)...)

	replier, err := buildReplier(cfg)
	if err != nil {
		return nil, err
	}
	if replier != nil {
		return messaging.NewConversation(engine, messaging.WithReplier(replier)), nil
	}
	return messaging.NewConversation(engine), nil
}

// runREPL reads one message per line until EOF, /quit or ctx is done.
func runREPL(ctx context.Context, conv *messaging.Conversation, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, replGreeting)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		cmd, isCmd := messaging.ParseCommand(line)
		switch {
		case isCmd && cmd == messaging.CommandQuit:
			fmt.Fprintln(out, "Take care of yourself. Bye for now.")
			return nil
		case isCmd && cmd == messaging.CommandWhy:
			why, err := conv.Explain(ctx, replSessionKey)
			if err != nil {
				return err
			}
			if why == "" {
				why = "I haven't said anything yet."
			}
			fmt.Fprintln(out, why)
		case isCmd && cmd == messaging.CommandResume:
			res, err := conv.Resume(ctx, replSessionKey)
			if err != nil {
				return err
			}
			printReply(out, res.Reply, res.FollowUp)
		default:
			res, err := conv.Chat(ctx, replSessionKey, line)
			if err != nil {
				return err
			}
			printReply(out, res.Reply, res.FollowUp)
		}
	}
}

func printReply(out io.Writer, reply, followUp string) {
	fmt.Fprintln(out, reply)
	if followUp != "" {
		fmt.Fprintln(out, followUp)
	}
}
