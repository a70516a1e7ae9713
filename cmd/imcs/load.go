package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/imcs"
	"github.com/hupe1980/imcs/kind"
)

type loadFlags struct {
	table     string
	column    string
	kind      string
	width     int
	sorted    bool
	header    bool
	batchSize int
}

func newLoadCmd(g *globalFlags) *cobra.Command {
	f := &loadFlags{}
	cmd := &cobra.Command{
		Use:   "load <file.csv>",
		Short: "Bulk load value,timestamp[,id] rows into a disk store",
		Long: `Append CSV rows of value,timestamp[,id] to <table>-<column>[-<id>] and their
timestamps to <table>-timestamp[-<id>]. Timestamps are RFC 3339 or
microseconds since 2000-01-01. Use - to read standard input.

Example:
  imcs load --disk ./data/pages --table trades --column price --kind int4 trades.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := kind.Parse(f.kind)
			if err != nil {
				return err
			}
			if k == kind.Varchar {
				return fmt.Errorf("varchar columns need a dictionary and cannot be loaded from the command line")
			}

			in := cmd.InOrStdin()
			if args[0] != "-" {
				file, err := os.Open(args[0]) //nolint:gosec // operator-chosen input
				if err != nil {
					return err
				}
				defer file.Close()
				in = file
			}

			s, err := g.requireDisk(imcs.WithDurable(true))
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := runLoad(cmd.Context(), s, in, f, imcs.ColumnSpec{Kind: k, Width: f.width})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d rows into %s-%s\n", n, f.table, f.column)
			return nil
		},
	}
	cmd.Flags().StringVarP(&f.table, "table", "t", "", "Table name (required)")
	cmd.Flags().StringVar(&f.column, "column", "", "Value column name (required)")
	cmd.Flags().StringVarP(&f.kind, "kind", "k", "int8", "Element kind of the value column")
	cmd.Flags().IntVar(&f.width, "width", 0, "Width of char columns in bytes")
	cmd.Flags().BoolVar(&f.sorted, "sorted", false, "Rows are already ordered by timestamp")
	cmd.Flags().BoolVar(&f.header, "header", false, "Skip the first row")
	cmd.Flags().IntVar(&f.batchSize, "batch-size", 100000, "Rows per update transaction")
	_ = cmd.MarkFlagRequired("table")
	_ = cmd.MarkFlagRequired("column")
	return cmd
}

// runLoad streams r into s in batches of f.batchSize rows, one update per
// batch. It returns the number of rows loaded.
func runLoad(ctx context.Context, s *imcs.Store, r io.Reader, f *loadFlags, spec imcs.ColumnSpec) (int, error) {
	if f.batchSize <= 0 {
		return 0, fmt.Errorf("batch size %d", f.batchSize)
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	var total, line int
	batch := make([]imcs.Triple, 0, f.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := s.Update(ctx, func(tx *imcs.Tx) error {
			return tx.LoadTriples(ctx, f.table, f.column, spec, batch, f.sorted)
		})
		if err != nil {
			return fmt.Errorf("rows %d-%d: %w", line-len(batch)+1, line, err)
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return total, err
		}
		line++
		if line == 1 && f.header {
			continue
		}
		t, err := parseTriple(rec, spec.Kind)
		if err != nil {
			return total, fmt.Errorf("row %d: %w", line, err)
		}
		batch = append(batch, t)
		if len(batch) == f.batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	return total, flush()
}

func parseTriple(rec []string, k kind.Kind) (imcs.Triple, error) {
	if len(rec) < 2 || len(rec) > 3 {
		return imcs.Triple{}, fmt.Errorf("want value,timestamp[,id], got %d fields", len(rec))
	}
	v, err := parseValue(rec[0], k)
	if err != nil {
		return imcs.Triple{}, err
	}
	ts, err := parseValue(rec[1], kind.Timestamp)
	if err != nil {
		return imcs.Triple{}, err
	}
	t := imcs.Triple{Value: v, Timestamp: ts}
	if len(rec) == 3 {
		t.ID = rec[2]
	}
	return t, nil
}

// parseValue converts one CSV field to a value kind.Encode accepts. An
// empty field is null.
func parseValue(field string, k kind.Kind) (any, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		return nil, nil
	}
	switch {
	case k.IsTemporal():
		if i, err := strconv.ParseInt(field, 10, 64); err == nil {
			if k == kind.Date {
				return kind.Epoch.AddDate(0, 0, int(i)), nil
			}
			return i, nil
		}
		layout := time.RFC3339Nano
		if k == kind.Date {
			layout = time.DateOnly
		}
		ts, err := time.Parse(layout, field)
		if err != nil {
			return nil, err
		}
		return ts, nil
	case k.IsFloat(), k == kind.Money:
		return strconv.ParseFloat(field, 64)
	case k.IsInteger():
		return strconv.ParseInt(field, 10, 64)
	}
	return field, nil
}
