package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/wonquotes/internal/history"
	"github.com/fyrsmithlabs/wonquotes/internal/matching"
	"github.com/fyrsmithlabs/wonquotes/internal/quotes"
)

func newIngestCmd(opts *globalOptions) *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "ingest [file|-]",
		Short: "Ingest award records from a JSON file or stdin",
		Long: `Ingest award records into the knowledge base.

The input is a JSON array of records or a single record object. A single
record is stored as a live observation; arrays are stored as a bulk load.

Examples:
  wonquotes ingest awards.json --source scprs_bulk
  cat award.json | wonquotes ingest -`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			data, err := readInput(cmd.InOrStdin(), path)
			if err != nil {
				return err
			}
			inputs, single, err := decodeRecords(data)
			if err != nil {
				return err
			}
			if source != "" {
				for i := range inputs {
					inputs[i].Source = source
				}
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app, p *printer) error {
				if single {
					rec, err := a.store.Ingest(ctx, inputs[0])
					if errors.Is(err, quotes.ErrInvalidPrice) {
						return p.batchStats(quotes.BatchStats{Skipped: 1})
					}
					if err != nil {
						return err
					}
					return p.record(rec)
				}
				stats, err := a.store.IngestBatch(ctx, inputs)
				if err != nil {
					return err
				}
				return p.batchStats(stats)
			})
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "source tag applied to every record")
	return cmd
}

// readInput reads path, or stdin when path is "-".
func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// decodeRecords accepts a JSON array of records or a single record and
// reports which it was.
func decodeRecords(data []byte) ([]quotes.RecordInput, bool, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, false, errors.New("no records in input")
	}
	if data[0] == '{' {
		var in quotes.RecordInput
		if err := json.Unmarshal(data, &in); err != nil {
			return nil, false, fmt.Errorf("decode record: %w", err)
		}
		return []quotes.RecordInput{in}, true, nil
	}
	var inputs []quotes.RecordInput
	if err := json.Unmarshal(data, &inputs); err != nil {
		return nil, false, fmt.Errorf("decode records: %w", err)
	}
	if len(inputs) == 0 {
		return nil, false, errors.New("no records in input")
	}
	return inputs, false, nil
}

// itemFlags are the item identity flags shared by lookup commands.
type itemFlags struct {
	code string
	desc string
}

func (f *itemFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.code, "code", "", "item code")
	cmd.Flags().StringVar(&f.desc, "desc", "", "item description")
}

func (f *itemFlags) validate() error {
	if f.code == "" && f.desc == "" {
		return errors.New("--code or --desc is required")
	}
	return nil
}

func newSearchCmd(opts *globalOptions) *cobra.Command {
	var (
		item  itemFlags
		limit int
		minC  float64
		maxAD int
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Find comparable awards by item code or description",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := item.validate(); err != nil {
				return err
			}
			if minC < 0 || minC > 1 {
				return errors.New("--min-confidence must be between 0 and 1")
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app, p *printer) error {
				ms := a.engine.FindSimilar(ctx,
					matching.Query{ItemCode: item.code, Description: item.desc},
					matching.Options{MaxResults: limit, MinConfidence: matching.Threshold(minC), MaxAgeDays: maxAD})
				return p.matches(ms)
			})
		},
	}
	item.register(cmd)
	cmd.Flags().IntVar(&limit, "limit", matching.DefaultMaxResults, "maximum matches")
	cmd.Flags().Float64Var(&minC, "min-confidence", matching.DefaultMinConfidence, "minimum match confidence, 0 disables the threshold")
	cmd.Flags().IntVar(&maxAD, "max-age-days", matching.DefaultMaxAgeDays, "ignore awards older than this many days")
	return cmd
}

func newHistoryCmd(opts *globalOptions) *cobra.Command {
	var (
		item   itemFlags
		months int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Summarize the price history of an item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := item.validate(); err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app, p *printer) error {
				return p.history(a.history.PriceHistory(ctx, item.code, item.desc, months))
			})
		},
	}
	item.register(cmd)
	cmd.Flags().IntVar(&months, "months", history.DefaultMonths, "lookback window in months")
	return cmd
}

func newStatsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show knowledge base statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(_ context.Context, a *app, p *printer) error {
				return p.stats(a.store.Stats())
			})
		},
	}
}
