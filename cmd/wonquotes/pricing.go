package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/wonquotes/internal/logging"
	"github.com/fyrsmithlabs/wonquotes/internal/oracle"
)

func newWinProbCmd(opts *globalOptions) *cobra.Command {
	var (
		item  itemFlags
		price float64
	)
	cmd := &cobra.Command{
		Use:   "winprob",
		Short: "Estimate the chance a bid price wins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if price <= 0 {
				return errors.New("--price must be greater than zero")
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app, p *printer) error {
				return p.estimate(a.estimator.Estimate(ctx, price, item.code, item.desc))
			})
		},
	}
	item.register(cmd)
	cmd.Flags().Float64Var(&price, "price", 0, "proposed unit price")
	return cmd
}

func newPriceCmd(opts *globalOptions) *cobra.Command {
	var (
		item       itemFlags
		cost       float64
		reference  float64
		sourceType string
		qty        float64
		agency     string
		sets       []string
		legacy     bool
	)
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Recommend bid prices for one line item",
		Long: `Recommend aggressive, recommended and safe bid prices for one line item.

Examples:
  wonquotes price --code 6515-001 --desc "nitrile exam gloves" --cost 80
  wonquotes price --desc "paper towels" --cost 20 --reference 30 --set undercut_pct=0.02
  wonquotes price --cost 20 --source-type amazon --legacy`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			overrides, err := parseOverrides(sets)
			if err != nil {
				return err
			}
			var costPtr, refPtr *float64
			if cmd.Flags().Changed("cost") {
				costPtr = &cost
			}
			if cmd.Flags().Changed("reference") {
				refPtr = &reference
			}
			if !legacy {
				if err := item.validate(); err != nil {
					return err
				}
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app, p *printer) error {
				if legacy {
					v := a.oracle.LegacyPrice(ctx, cost, refPtr, sourceType)
					if p.format == formatJSON {
						return p.json(map[string]float64{"price": v})
					}
					p.line("%s", money(v))
					return nil
				}
				return p.recommendation(a.oracle.Recommend(ctx, oracle.Request{
					ItemCode:       item.code,
					Description:    item.desc,
					SupplierCost:   costPtr,
					ReferencePrice: refPtr,
					Agency:         agency,
					SourceType:     sourceType,
					Quantity:       qty,
					Overrides:      overrides,
				}))
			})
		},
	}
	item.register(cmd)
	f := cmd.Flags()
	f.Float64Var(&cost, "cost", 0, "supplier unit cost")
	f.Float64Var(&reference, "reference", 0, "reference price from a prior award or catalog")
	f.StringVar(&sourceType, "source-type", oracle.SourceGeneral, "supplier source type (general, marketplace, amazon)")
	f.Float64Var(&qty, "qty", 1, "quantity")
	f.StringVar(&agency, "agency", "", "buying agency")
	f.StringArrayVar(&sets, "set", nil, "pricing rule override key=value (repeatable, dotted keys allowed)")
	f.BoolVar(&legacy, "legacy", false, "print the single legacy recommended price only")
	return cmd
}

// parseOverrides turns key=value pairs into a rules override map. Values
// that parse as numbers become float64.
func parseOverrides(sets []string) (map[string]any, error) {
	if len(sets) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(sets))
	for _, kv := range sets {
		key, val, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid override %q (want key=value)", kv)
		}
		val = strings.TrimSpace(val)
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			out[key] = f
		} else {
			out[key] = val
		}
	}
	return out, nil
}

func newBatchCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "batch <rfq.json|->",
		Short: "Price every line item of an RFQ",
		Long: `Price every line item of an RFQ document:

  {"solicitation_number": "R25-001", "agency": "CDCR",
   "line_items": [{"line_number": 1, "item_code": "6515-001",
                   "description": "nitrile gloves", "supplier_cost": 80, "qty": 10}]}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			var rfq oracle.RFQ
			if err := json.Unmarshal(data, &rfq); err != nil {
				return fmt.Errorf("decode rfq: %w", err)
			}
			if len(rfq.LineItems) == 0 {
				return errors.New("rfq has no line_items")
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app, p *printer) error {
				ctx = logging.WithRFQID(ctx, rfq.SolicitationNumber)
				return p.batch(a.oracle.RecommendBatch(ctx, rfq))
			})
		},
	}
}

func newHealthCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Report knowledge base and pricing rules health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app, p *printer) error {
				return p.health(a.oracle.HealthCheck(ctx))
			})
		},
	}
}
