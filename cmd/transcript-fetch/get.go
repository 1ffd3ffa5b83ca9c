package main

import (
	"context"
	"fmt"

	"github.com/Sternrassler/transcript-client/pkg/batch"
	"github.com/spf13/cobra"
)

func newGetCmd(a *app) *cobra.Command {
	var (
		lang  string
		title string
		out   string
	)

	cmd := &cobra.Command{
		Use:   "get <video-id>",
		Short: "Fetch one transcript into a Markdown file",
		Example: `  # Save to ./dQw4w9WgXcQ.md
  transcript-fetch get dQw4w9WgXcQ

  # German transcript with a title, to a chosen path
  transcript-fetch get dQw4w9WgXcQ --lang de --title "Talk" --out talks/talk.md`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item := batch.WorkItem{ID: args[0], Lang: lang, Title: title}
			path := out
			if path == "" {
				path = batch.SafeFileName(item.ID) + ".md"
			}

			return withMetrics(cmd.Context(), a.metricsAddr, a.logger, func(ctx context.Context) error {
				o, cleanup, err := a.orchestrator(ctx, nil)
				if err != nil {
					return err
				}
				defer cleanup()

				if err := o.Save(ctx, item, path); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", path)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&lang, "lang", "", "transcript language")
	cmd.Flags().StringVar(&title, "title", "", "title for the file header")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default <video-id>.md)")

	return cmd
}
