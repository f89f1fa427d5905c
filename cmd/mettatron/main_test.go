// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeSource(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "program.metta")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestRunEvaluatesDirectivesAndExitsZero(t *testing.T) {
	path := writeSource(t, "!(+ 1 2)")
	var stdout, stderr bytes.Buffer
	code := run([]string{path}, strings.NewReader(""), &stdout, &stderr)
	require.Equal(t, 0, code)
	require.Equal(t, "3\n", stdout.String())
	require.Empty(t, stderr.String())
}

func TestRunRuleDefinitionThenDirective(t *testing.T) {
	path := writeSource(t, "(= (double $x) (* $x 2)) !(double 21)")
	var stdout, stderr bytes.Buffer
	code := run([]string{path}, strings.NewReader(""), &stdout, &stderr)
	require.Equal(t, 0, code)
	require.Equal(t, "42\n", stdout.String())
}

func TestRunMultipleIndependentDirectivesPublishInOrder(t *testing.T) {
	path := writeSource(t, "!(+ 1 1) !(+ 2 2) !(+ 3 3)")
	var stdout, stderr bytes.Buffer
	code := run([]string{path}, strings.NewReader(""), &stdout, &stderr)
	require.Equal(t, 0, code)
	require.Equal(t, "2\n4\n6\n", stdout.String())
}

func TestRunCompileFailureExitsNonZero(t *testing.T) {
	path := writeSource(t, "!(+ 1")
	var stdout, stderr bytes.Buffer
	code := run([]string{path}, strings.NewReader(""), &stdout, &stderr)
	require.NotEqual(t, 0, code)
	require.NotEmpty(t, stderr.String())
}

func TestRunMissingFileArgumentExitsNonZero(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(nil, strings.NewReader(""), &stdout, &stderr)
	require.NotEqual(t, 0, code)
}

func TestRunUnknownPresetExitsNonZero(t *testing.T) {
	path := writeSource(t, "!(+ 1 2)")
	var stdout, stderr bytes.Buffer
	code := run([]string{"-preset", "nonexistent", path}, strings.NewReader(""), &stdout, &stderr)
	require.NotEqual(t, 0, code)
}

func TestRunDumpBytecodeWritesToStderr(t *testing.T) {
	path := writeSource(t, "!(+ 1 2)")
	var stdout, stderr bytes.Buffer
	code := run([]string{"-dump-bytecode", path}, strings.NewReader(""), &stdout, &stderr)
	require.Equal(t, 0, code)
	require.Contains(t, stderr.String(), "bytecode[")
}

func TestRunDumpSnapshotHexWritesToStdout(t *testing.T) {
	path := writeSource(t, "(= (double $x) (* $x 2)) !(double 1)")
	var stdout, stderr bytes.Buffer
	code := run([]string{"-dump-snapshot-hex", path}, strings.NewReader(""), &stdout, &stderr)
	require.Equal(t, 0, code)
	require.Contains(t, stdout.String(), "snapshot: ")
}

func TestRunReplEvaluatesEachLine(t *testing.T) {
	var stdout, stderr bytes.Buffer
	stdin := strings.NewReader("!(+ 1 2)\n!(+ 3 4)\n")
	code := run([]string{"-repl"}, stdin, &stdout, &stderr)
	require.Equal(t, 0, code)
	require.Contains(t, stdout.String(), "3\n")
	require.Contains(t, stdout.String(), "7\n")
}

func TestRunJSONOutputsHostBridgeDocument(t *testing.T) {
	path := writeSource(t, "!(+ 1 2)")
	var stdout, stderr bytes.Buffer
	code := run([]string{"-json", path}, strings.NewReader(""), &stdout, &stderr)
	require.Equal(t, 0, code)
	require.Contains(t, stdout.String(), `"kind"`)
	require.Contains(t, stdout.String(), "outputs")
}

func TestRunVersionFlagPrintsVersionAndExitsZero(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-version"}, strings.NewReader(""), &stdout, &stderr)
	require.Equal(t, 0, code)
	require.Contains(t, stdout.String(), "mettatron/0.1.0")
}

func TestRunAllErroredDirectivesExitsNonZero(t *testing.T) {
	path := writeSource(t, "!(/ 1 0)")
	var stdout, stderr bytes.Buffer
	code := run([]string{path}, strings.NewReader(""), &stdout, &stderr)
	require.Equal(t, 1, code)
}
