package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/imcs"
	"github.com/hupe1980/imcs/kind"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		loc     string
		want    target
		wantErr bool
	}{
		{loc: "daily", want: target{scheme: "file", bucket: ".", name: "daily"}},
		{loc: "./backups/daily", want: target{scheme: "file", bucket: "./backups", name: "daily"}},
		{loc: "file:///var/backups/daily", want: target{scheme: "file", bucket: "/var/backups", name: "daily"}},
		{loc: "s3://bucket/daily", want: target{scheme: "s3", bucket: "bucket", name: "daily"}},
		{loc: "s3://bucket/snaps/2024/daily", want: target{scheme: "s3", bucket: "bucket", prefix: "snaps/2024", name: "daily"}},
		{loc: "minio://localhost:9000/bucket/snaps/daily", want: target{scheme: "minio", host: "localhost:9000", bucket: "bucket", prefix: "snaps", name: "daily"}},
		{loc: "s3://bucket", wantErr: true},
		{loc: "gs://bucket/daily", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.loc, func(t *testing.T) {
			got, err := parseTarget(tt.loc)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseValue(t *testing.T) {
	v, err := parseValue("42", kind.Int32)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	v, err = parseValue("1.5", kind.Double)
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)

	v, err = parseValue("", kind.Int32)
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = parseValue("2000-01-01T00:00:01Z", kind.Timestamp)
	require.NoError(t, err)
	buf := make([]byte, 8)
	require.NoError(t, kind.Encode(buf, kind.Timestamp, 8, v))
	assert.Equal(t, int64(1_000_000), kind.Decode(buf, kind.Timestamp))

	_, err = parseValue("x", kind.Int64)
	assert.Error(t, err)
}

func TestLoadSnapshotRestore(t *testing.T) {
	dir := t.TempDir()
	pages := filepath.Join(dir, "store.pages")
	csv := "value,timestamp,id\n3,30,ibm\n1,10,ibm\n2,20,sap\n"

	out, err := execute(t, csv, "load", "--disk", pages, "--table", "q", "--column", "price",
		"--kind", "int4", "--header", "--batch-size", "2", "--sorted=false", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "loaded 3 rows into q-price")

	snap := filepath.Join(dir, "backups", "daily")
	out, err = execute(t, "", "snapshot", "--disk", pages, snap)
	require.NoError(t, err)
	assert.Contains(t, out, "snapshot daily: 4 columns, 6 elements")

	restored := filepath.Join(dir, "restored.pages")
	out, err = execute(t, "", "restore", "--disk", restored, snap)
	require.NoError(t, err)
	assert.Contains(t, out, "restored daily: 4 columns, 6 elements")

	s, err := imcs.Open(imcs.WithDiskPath(restored, 0))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()
	require.NoError(t, s.View(ctx, func(tx *imcs.Tx) error {
		got, err := imcs.ExportSlice[int32](ctx, tx, "q-price-ibm")
		require.NoError(t, err)
		// each batch of two rows is sorted on its own
		assert.Equal(t, []int32{1, 3}, got)
		return nil
	}))
}

func TestLoadErrors(t *testing.T) {
	pages := filepath.Join(t.TempDir(), "store.pages")

	_, err := execute(t, "1\n", "load", "--disk", pages, "--table", "q", "--column", "x", "-")
	assert.ErrorContains(t, err, "row 1")

	_, err = execute(t, "", "load", "--disk", pages, "--table", "q", "--column", "x", "--kind", "text", "-")
	assert.ErrorContains(t, err, "varchar")

	_, err = execute(t, "", "load", "--table", "q", "--column", "x", "-")
	assert.ErrorContains(t, err, "no page file")

	_, err = execute(t, "", "snapshot", "--disk", pages, "gs://bucket/x")
	assert.ErrorContains(t, err, "unsupported scheme")
}

func TestBench(t *testing.T) {
	out, err := execute(t, "", "bench", "--rows", "5000", "--groups", "7", "--workers", "3", "--json")
	require.NoError(t, err)

	var results []benchResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 10)

	rows := map[string]int64{}
	for _, r := range results {
		key := r.Query
		if r.Parallel {
			key += "/parallel"
		}
		rows[key] = r.Rows
	}
	assert.Equal(t, int64(1), rows["sum"])
	assert.Equal(t, int64(1), rows["sum/parallel"])
	assert.Equal(t, int64(10), rows["top10/parallel"])
	assert.Equal(t, int64(7), rows["hash-sum/parallel"])
	assert.Equal(t, int64(4985), rows["window-avg"])

	out, err = execute(t, "", "bench", "--rows", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "QUERY")
}
