package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = "RECORD TYPE,PURCHASE ORDER NUMBER,INPUT DATE,TOTAL AMOUNT,VENDOR ZIP,UNIQUE ID\n" +
	"H,PO1,1/5/17,10,90210,1\n" +
	"H,PO1,1/5/17,10,90210,1\n" +
	"D,PO2,2017-01-05,x,1234,2\n"

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRun_CleansFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "po.csv")
	out := filepath.Join(dir, "clean.csv")
	require.NoError(t, os.WriteFile(in, []byte(sample), 0o644))

	code, stdout, stderr := runCLI(t, "-input", in, "-output", out)
	require.Equal(t, 0, code, stderr)

	assert.Contains(t, stdout, "invalid date formats: 1")
	assert.Contains(t, stdout, "invalid numeric values in TOTAL AMOUNT: 1")
	assert.Contains(t, stdout, "read=3 parse_errors=0 duplicates_dropped=1 written=2")

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t,
		"RECORD TYPE,PURCHASE ORDER NUMBER,INPUT DATE,TOTAL AMOUNT,VENDOR ZIP,UNIQUE ID,VENDOR COUNTRY\n"+
			"H,PO1,01/05/2017,10.00,90210,1,UNITED STATES\n"+
			"D,PO2,01/05/2017,,01234,2,UNITED STATES\n",
		string(got))
}

func TestRun_PositionalInputAndConfigFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "po.csv")
	out := filepath.Join(dir, "clean.xlsx")
	cfg := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(in, []byte(sample), 0o644))
	require.NoError(t, os.WriteFile(cfg, []byte("job: cli_test\noutput:\n  kind: xlsx\n  path: "+out+"\n"), 0o644))

	code, _, stderr := runCLI(t, "-config", cfg, in)
	require.Equal(t, 0, code, stderr)
	assert.FileExists(t, out)
}

func TestRun_EmptyResult(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "po.csv")
	out := filepath.Join(dir, "clean.csv")
	require.NoError(t, os.WriteFile(in, []byte("UNIQUE ID,VENDOR ZIP\n"), 0o644))

	code, stdout, _ := runCLI(t, "-input", in, "-output", out)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "cleaned data is empty")
	assert.NoFileExists(t, out)
}

func TestRun_Failures(t *testing.T) {
	dir := t.TempDir()

	code, _, _ := runCLI(t, "-input", filepath.Join(dir, "missing.csv"), "-output", filepath.Join(dir, "o.csv"))
	assert.Equal(t, 1, code)

	code, _, stderr := runCLI(t, "-out-format", "parquet", "-input", "x.csv")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "error: output.kind:")
	assert.Contains(t, stderr, "configuration is invalid")

	code, _, stderr = runCLI(t, "-config", filepath.Join(dir, "nope.yaml"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "read config")

	code, _, _ = runCLI(t, "-no-such-flag")
	assert.Equal(t, 2, code)
}

func TestRun_ValidateOnly(t *testing.T) {
	code, stdout, _ := runCLI(t, "-validate", "-input", "po.csv")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "configuration is valid")

	code, _, stderr := runCLI(t, "-validate")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "source.file.path")
}

func TestRun_Probe(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "po.csv")
	require.NoError(t, os.WriteFile(in, []byte("Unique ID,vendor zip,NOTES\n1,90210,x\n"), 0o644))

	code, stdout, stderr := runCLI(t, "-probe", in)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "missing required columns: PURCHASE ORDER NUMBER")
	assert.Contains(t, stdout, `"Unique ID": "UNIQUE ID"`)
	assert.Contains(t, stdout, `"unknown": [`)
	assert.Contains(t, stdout, `"suggested_source"`)
	assert.NoFileExists(t, filepath.Join(dir, "clean_data.csv"))
}
