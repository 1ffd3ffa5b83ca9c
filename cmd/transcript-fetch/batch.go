package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Sternrassler/transcript-client/pkg/batch"
	"github.com/Sternrassler/transcript-client/pkg/stream"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// itemsFile is the YAML layout of --file.
type itemsFile struct {
	Items []batch.WorkItem `yaml:"items"`
}

func newBatchCmd(a *app) *cobra.Command {
	var (
		file     string
		mode     string
		out      string
		lang     string
		jsonOut  bool
		progress bool
	)

	cmd := &cobra.Command{
		Use:   "batch [video-id...]",
		Short: "Fetch up to 50 transcripts in one run",
		Long: `Fetch a batch of transcripts sequentially. Items come from the arguments,
from a YAML file (--file), or both. In individual mode --out is a directory
receiving one file per item; in aggregated mode --out is a single file.

A failed item never stops the batch; the summary lists every failure.`,
		Example: `  transcript-fetch batch abc123 def456 --out transcripts/

  # items.yaml:
  #   items:
  #     - id: abc123
  #       title: Keynote
  #     - id: def456
  #       lang: de
  transcript-fetch batch --file items.yaml --mode aggregated --out all.md --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := batch.ParseMode(mode)
			if err != nil {
				return err
			}

			items, err := collectItems(args, lang, file)
			if err != nil {
				return err
			}

			var onProgress stream.ProgressFunc
			if progress {
				onProgress = func(p stream.Progress) {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d/%d entries\n", p.Path, p.Processed, p.Total)
				}
			}

			return withMetrics(cmd.Context(), a.metricsAddr, a.logger, func(ctx context.Context) error {
				o, cleanup, err := a.orchestrator(ctx, onProgress)
				if err != nil {
					return err
				}
				defer cleanup()

				report, err := o.Process(ctx, items, m, out)
				if err != nil {
					return err
				}

				if jsonOut {
					if err := writeJSONReport(cmd.OutOrStdout(), report); err != nil {
						return err
					}
				} else {
					writeSummary(cmd.OutOrStdout(), report)
				}

				if report.Failed > 0 {
					return fmt.Errorf("%d of %d items failed", report.Failed, report.Total)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file listing items")
	cmd.Flags().StringVarP(&mode, "mode", "m", string(batch.ModeIndividual), "output mode: individual or aggregated")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output directory (individual) or file (aggregated)")
	cmd.Flags().StringVar(&lang, "lang", "", "language for items given as arguments")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the report as JSON")
	cmd.Flags().BoolVar(&progress, "progress", false, "print write progress to stderr")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

// collectItems merges argument items and file items, arguments first.
func collectItems(args []string, lang, file string) ([]batch.WorkItem, error) {
	items := make([]batch.WorkItem, 0, len(args))
	for _, id := range args {
		items = append(items, batch.WorkItem{ID: id, Lang: lang})
	}

	if file != "" {
		fromFile, err := loadItems(file)
		if err != nil {
			return nil, err
		}
		items = append(items, fromFile...)
	}

	if len(items) == 0 {
		return nil, errors.New("no items: pass video ids or --file")
	}
	return items, nil
}

// loadItems reads a YAML items file.
func loadItems(path string) ([]batch.WorkItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open items file: %w", err)
	}
	defer f.Close()

	var parsed itemsFile
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&parsed); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("items file %s is empty", path)
		}
		return nil, fmt.Errorf("parse items file %s: %w", path, err)
	}
	return parsed.Items, nil
}

func writeJSONReport(w io.Writer, report *batch.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

func writeSummary(w io.Writer, report *batch.Report) {
	fmt.Fprintf(w, "Run %s (%s): %d/%d succeeded in %s\n",
		report.RunID, report.Mode, report.Succeeded, report.Total, report.Duration.Round(time.Millisecond))
	for _, result := range report.Results {
		if result.Success {
			fmt.Fprintf(w, "  ok      %s -> %s\n", result.Label, result.OutputPath)
			continue
		}
		fmt.Fprintf(w, "  failed  %s [%s] %s\n", result.Label, result.ErrorClass, result.ErrorMessage)
	}
}
