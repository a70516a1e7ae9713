package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newSnapshotCmd(g *globalFlags) *cobra.Command {
	tf := &targetFlags{}
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "snapshot <target>",
		Short: "Copy every column of a disk store to a blob store",
		Long: `Write a snapshot of the disk store to a local directory, S3 or MinIO.

Targets:
  ./backups/daily
  s3://bucket/prefix/daily
  minio://localhost:9000/bucket/prefix/daily   (MINIO_ACCESS_KEY, MINIO_SECRET_KEY)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			t, err := parseTarget(args[0])
			if err != nil {
				return err
			}
			bs, err := tf.open(ctx, t)
			if err != nil {
				return err
			}
			s, err := g.requireDisk()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Snapshot(ctx, bs, t.name); err != nil {
				return err
			}
			st, err := s.Stats()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "snapshot %s: %d columns, %d elements\n", t.name, st.Columns, st.Elements)
			return nil
		},
	}
	tf.register(cmd)
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "Snapshot timeout")
	return cmd
}

func newRestoreCmd(g *globalFlags) *cobra.Command {
	tf := &targetFlags{}
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "restore <target>",
		Short: "Replace the columns of a disk store with a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			t, err := parseTarget(args[0])
			if err != nil {
				return err
			}
			bs, err := tf.open(ctx, t)
			if err != nil {
				return err
			}
			s, err := g.requireDisk()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Restore(ctx, bs, t.name); err != nil {
				return err
			}
			st, err := s.Stats()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s: %d columns, %d elements\n", t.name, st.Columns, st.Elements)
			return nil
		},
	}
	tf.register(cmd)
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "Restore timeout")
	return cmd
}
