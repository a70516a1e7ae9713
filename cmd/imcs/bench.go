package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"text/tabwriter"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/hupe1980/imcs"
	"github.com/hupe1980/imcs/iterator"
	"github.com/hupe1980/imcs/kind"
)

type benchFlags struct {
	rows    int
	groups  int
	workers int
	seed    uint64
	jsonOut bool
}

// benchResult is one timed query.
type benchResult struct {
	Query    string        `json:"query"`
	Parallel bool          `json:"parallel"`
	Rows     int64         `json:"rows"`
	Duration time.Duration `json:"duration_ns"`
}

// benchQuery builds an operator tree over the value and group columns.
type benchQuery struct {
	name     string
	build    func(x, g iterator.Iterator) (iterator.Iterator, error)
	parallel bool
}

var benchQueries = []benchQuery{
	{"sum", func(x, _ iterator.Iterator) (iterator.Iterator, error) { return iterator.Sum(x) }, true},
	{"avg", func(x, _ iterator.Iterator) (iterator.Iterator, error) { return iterator.Avg(x) }, true},
	{"top10", func(x, _ iterator.Iterator) (iterator.Iterator, error) { return iterator.TopMax(x, 10) }, true},
	{"hash-sum", func(x, g iterator.Iterator) (iterator.Iterator, error) { return iterator.HashSum(x, g) }, true},
	{"window-avg", func(x, _ iterator.Iterator) (iterator.Iterator, error) { return iterator.WindowAvg(x, 16) }, false},
	{"filter-gt", func(x, _ iterator.Iterator) (iterator.Iterator, error) {
		zero, err := iterator.Const[int64](nil, kind.Int64, 0)
		if err != nil {
			return nil, err
		}
		cond, err := iterator.Gt(x, zero)
		if err != nil {
			return nil, err
		}
		return iterator.Filter(cond, x)
	}, false},
}

func newBenchCmd(g *globalFlags) *cobra.Command {
	f := &benchFlags{}
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Time operator pipelines over generated columns",
		Long: `Fill an in-memory store with random values and group keys, then time
aggregate, window and filter pipelines single-threaded and, where the tree
is reducible, on the worker pool.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := g.openStore(imcs.WithDiskPath("", 0), imcs.WithWorkers(f.workers))
			if err != nil {
				return err
			}
			defer s.Close()

			results, err := runBench(cmd.Context(), s, f)
			if err != nil {
				return err
			}
			return printBench(cmd.OutOrStdout(), results, f.jsonOut)
		},
	}
	cmd.Flags().IntVarP(&f.rows, "rows", "n", 1_000_000, "Rows to generate")
	cmd.Flags().IntVar(&f.groups, "groups", 64, "Distinct group keys")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Worker pool size (0 uses GOMAXPROCS)")
	cmd.Flags().Uint64Var(&f.seed, "seed", 1, "Random seed")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "Print results as JSON")
	return cmd
}

func runBench(ctx context.Context, s *imcs.Store, f *benchFlags) ([]benchResult, error) {
	if f.rows <= 0 || f.groups <= 0 {
		return nil, fmt.Errorf("rows and groups must be positive")
	}
	rng := rand.New(rand.NewPCG(f.seed, f.seed^0x9e3779b97f4a7c15))
	x := make([]int64, f.rows)
	g := make([]int32, f.rows)
	for i := range x {
		x[i] = rng.Int64N(2_000_000) - 1_000_000
		g[i] = int32(rng.IntN(f.groups))
	}

	err := s.Update(ctx, func(tx *imcs.Tx) error {
		if err := imcs.ImportSlice(ctx, tx, "bench-x", imcs.ColumnSpec{Kind: kind.Int64}, x); err != nil {
			return err
		}
		return imcs.ImportSlice(ctx, tx, "bench-g", imcs.ColumnSpec{Kind: kind.Int32}, g)
	})
	if err != nil {
		return nil, err
	}

	var results []benchResult
	for _, q := range benchQueries {
		modes := []bool{false}
		if q.parallel {
			modes = append(modes, true)
		}
		for _, par := range modes {
			r, err := timeQuery(ctx, s, q, par)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", q.name, err)
			}
			results = append(results, r)
		}
	}
	return results, nil
}

func timeQuery(ctx context.Context, s *imcs.Store, q benchQuery, par bool) (benchResult, error) {
	res := benchResult{Query: q.name, Parallel: par}
	err := s.View(ctx, func(tx *imcs.Tx) error {
		x, err := tx.Scan(ctx, "bench-x")
		if err != nil {
			return err
		}
		g, err := tx.Scan(ctx, "bench-g")
		if err != nil {
			return err
		}
		root, err := q.build(x, g)
		if err != nil {
			return err
		}

		start := time.Now()
		if par {
			if root, err = tx.Parallel(ctx, root); err != nil {
				return err
			}
		}
		for {
			ok, err := root.Next()
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			res.Rows += int64(root.Len())
		}
		res.Duration = time.Since(start)
		return nil
	})
	return res, err
}

func printBench(w io.Writer, results []benchResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "QUERY\tMODE\tROWS\tDURATION")
	for _, r := range results {
		mode := "serial"
		if r.Parallel {
			mode = "parallel"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.Query, mode, r.Rows, r.Duration.Round(time.Microsecond))
	}
	return tw.Flush()
}
