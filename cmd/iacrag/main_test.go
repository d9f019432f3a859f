package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const networkTF = `provider "google" {
  project = var.project
}

resource "google_compute_firewall" "allow_ssh" {
  name    = "allow-ssh"
  network = "default"
  allow {
    protocol = "tcp"
    ports    = ["22"]
  }
  source_ranges = ["10.0.0.0/8"]
}

variable "project" {
  type = string
}
`

const storageTF = `resource "google_storage_bucket" "logs" {
  name     = "acme-logs"
  location = "EU"
}

output "logs_bucket" {
  value = google_storage_bucket.logs.name
}
`

const readme = `Operations notes

The logs bucket keeps audit logs for ninety days.
`

func writeCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range map[string]string{
		"network.tf": networkTF,
		"storage.tf": storageTF,
		"README.md":  readme,
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgPath, corpusDir, verbose = "", "", false
	queryK, inventoryType, indexNoProgress = 0, "", false

	out := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(new(bytes.Buffer))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()
	return out.String(), err
}

func missingConfig(t *testing.T) string {
	return filepath.Join(t.TempDir(), "iacrag.yaml")
}

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "iacrag", rootCmd.Use)
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"index", "query", "inventory", "shell"} {
		assert.True(t, names[want], want)
	}
}

func TestIndexCmd_ReportsHandle(t *testing.T) {
	dir := writeCorpus(t)

	out, err := execute(t, "--config", missingConfig(t), "--dir", dir, "index", "--no-progress")
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 3 document(s)")
	assert.Contains(t, out, "Embedder:    tfidf")
	assert.Contains(t, out, "Fingerprint: ")
}

func TestQueryCmd_PrintsGroupedContext(t *testing.T) {
	dir := writeCorpus(t)

	out, err := execute(t, "--config", missingConfig(t), "--dir", dir, "query", "-k", "1", "firewall", "ssh")
	require.NoError(t, err)
	assert.Contains(t, out, "Retrieved 1 relevant chunk(s) from 1 source(s):")
	assert.Contains(t, out, "[From network.tf]")
	assert.Contains(t, out, "Sources:")
	assert.Contains(t, out, "network.tf#")
}

func TestQueryCmd_EmptyCorpus(t *testing.T) {
	out, err := execute(t, "--config", missingConfig(t), "--dir", t.TempDir(), "query", "anything")
	require.NoError(t, err)
	assert.Contains(t, out, "No context available.")
}

func TestQueryCmd_RequiresQuestion(t *testing.T) {
	_, err := execute(t, "--config", missingConfig(t), "query")
	assert.Error(t, err)
}

func TestInventoryCmd(t *testing.T) {
	dir := writeCorpus(t)

	out, err := execute(t, "--config", missingConfig(t), "--dir", dir, "inventory")
	require.NoError(t, err)
	assert.Contains(t, out, "Terraform files: 2")
	assert.Contains(t, out, "google_compute_firewall: allow_ssh")
	assert.Contains(t, out, "google_storage_bucket: logs")
	assert.Contains(t, out, "Variables: project")
	assert.Contains(t, out, "Outputs:   logs_bucket")
	assert.Contains(t, out, "Providers: google")

	out, err = execute(t, "--config", missingConfig(t), "--dir", dir, "inventory", "--type", "google_storage_bucket")
	require.NoError(t, err)
	assert.Contains(t, out, "google_storage_bucket.logs (storage.tf)")
	assert.Contains(t, out, "name")
}

func TestLoadApp_RejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iacrag.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunker:\n  chunk_size: 100\n  overlap: 100\n"), 0o644))

	_, err := execute(t, "--config", path, "--dir", writeCorpus(t), "index", "--no-progress")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunker.overlap")
}

func TestLoadApp_MissingProviderKey(t *testing.T) {
	t.Setenv("IACRAG_TEST_MISSING_KEY", "")
	path := filepath.Join(t.TempDir(), "iacrag.yaml")
	cfg := "embedder:\n  type: openai\n  openai:\n    api_key_env: IACRAG_TEST_MISSING_KEY\n"
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))

	_, err := execute(t, "--config", path, "--dir", writeCorpus(t), "index", "--no-progress")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai embedder init failed")
}
