package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newClassifyCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <text>",
		Short: "Print the mood and crisis screen for a message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			classifier, err := buildClassifier(cfg.LexiconPath)
			if err != nil {
				return err
			}
			screener, err := buildScreener(cfg.CrisisRulesPath)
			if err != nil {
				return err
			}

			text := strings.Join(args, " ")
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "mood: %s\n", classifier.Classify(text))
			if rule, ok := screener.Match(text); ok {
				fmt.Fprintf(out, "crisis: true (%s)\n", rule)
			} else {
				fmt.Fprintln(out, "crisis: false")
			}
			return nil
		},
	}
}
