package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDoc = `
sections:
  - section_id: intro
    title: Intro
    steps:
      - step_id: ask
        title: Ask
        question: Ready?
        buckets: [yes]
        transitions:
          yes:
            next_section_and_step: intro:end
      - step_id: end
        title: End
        content_blocks: ["Done."]
`

const brokenDoc = `
sections:
  - section_id: intro
    title: Intro
    steps:
      - step_id: ask
        title: Ask
        question: Ready?
        buckets: [yes]
        transitions:
          yes:
            next_section_and_step: nowhere:at_all
      - step_id: end
        title: End
        content_blocks: ["Done."]
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeDoc(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "lattice version")
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	good := writeDoc(t, dir, "good.yaml", validDoc)
	bad := writeDoc(t, dir, "bad.yaml", brokenDoc)

	out, err := execute(t, "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "1 documents are valid")

	out, err = execute(t, "validate", good, bad)
	require.Error(t, err)
	assert.Contains(t, out, bad+": error:")
	assert.Contains(t, err.Error(), "1 of 2 documents are invalid")
}

func TestGraph(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "good.yaml", validDoc)

	out, err := execute(t, "graph", "good.yaml", "--dir", dir, "--env-file", filepath.Join(dir, "missing.env"), "--at", "intro:end")
	require.NoError(t, err)
	assert.Contains(t, out, "graph TD")
	assert.Contains(t, out, `intro__ask -- "yes" --> intro__end`)
	assert.Contains(t, out, "class intro__end current;")
}

func TestValidate_BundledExamples(t *testing.T) {
	_, err := execute(t, "validate", filepath.Join("..", "..", "examples", "activities", "sky.yaml"))
	require.NoError(t, err)
}
