// Command imcs operates an imcs store from the shell: it bulk loads CSV
// triples, snapshots and restores disk stores through blob stores, and runs
// an in-memory operator benchmark.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/hupe1980/imcs"
)

var version = "0.1.0"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configFile string
	diskPath   string
	logLevel   string
	jsonLogs   bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "imcs",
		Short: "imcs - in-memory columnar store",
		Long: `imcs keeps positional columns in paged B-trees and evaluates
tile-batched operator pipelines over them, optionally in parallel.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&g.configFile, "config", "c", "", "Path to a YAML store configuration")
	root.PersistentFlags().StringVar(&g.diskPath, "disk", "", "Page file of a disk-backed store (overrides the config)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&g.jsonLogs, "json-logs", false, "Write logs as JSON")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "imcs v%s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
			fmt.Fprintf(cmd.OutOrStdout(), "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})
	root.AddCommand(newLoadCmd(g), newSnapshotCmd(g), newRestoreCmd(g), newBenchCmd(g))
	return root
}

// openStore opens the store described by the global flags plus extra.
func (g *globalFlags) openStore(extra ...imcs.Option) (*imcs.Store, error) {
	cfg := imcs.DefaultConfig()
	if g.configFile != "" {
		var err error
		if cfg, err = imcs.LoadConfig(g.configFile); err != nil {
			return nil, err
		}
	}
	if g.diskPath != "" {
		cfg.DiskPath = g.diskPath
	}

	logger, err := g.logger()
	if err != nil {
		return nil, err
	}
	optFns := append([]imcs.Option{imcs.WithConfig(cfg), imcs.WithLogger(logger)}, extra...)
	return imcs.Open(optFns...)
}

// requireDisk opens a store that must be disk backed.
func (g *globalFlags) requireDisk(extra ...imcs.Option) (*imcs.Store, error) {
	s, err := g.openStore(extra...)
	if err != nil {
		return nil, err
	}
	if s.Config().DiskPath == "" {
		_ = s.Close()
		return nil, fmt.Errorf("no page file: pass --disk or set disk_path in the config")
	}
	return s, nil
}

func (g *globalFlags) logger() (*imcs.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(g.logLevel)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", g.logLevel, err)
	}
	if g.jsonLogs {
		return imcs.NewJSONLogger(level), nil
	}
	return imcs.NewTextLogger(level), nil
}
