package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iacrag/internal/domain"
)

func writeFile(t *testing.T, root, rel string, data []byte) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestLoad(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.tf", []byte(`resource "google_storage_bucket" "logs" {}`))
	writeFile(t, root, "modules/net/variables.tf", []byte(`variable "cidr" {}`))
	writeFile(t, root, "README.md", []byte("# Infra\n"))
	writeFile(t, root, "prod.tfvars", []byte(`region = "eu"`))
	writeFile(t, root, "notes.pdf", []byte("%PDF"))
	writeFile(t, root, ".terraform/providers/x.tf", []byte(`provider "x" {}`))
	writeFile(t, root, "binary.txt", []byte{0xff, 0xfe, 0xfd})

	docs, err := Load(root, Options{})
	require.NoError(t, err)

	var sources []string
	for _, d := range docs {
		sources = append(sources, d.Source)
	}
	assert.Equal(t, []string{"README.md", "main.tf", "modules/net/variables.tf", "prod.tfvars"}, sources)

	main := docs[1]
	assert.Equal(t, "main.tf", main.Metadata[domain.MetaSource])
	assert.Equal(t, FileTypeTerraform, main.Metadata[domain.MetaFileType])
	assert.Equal(t, filepath.Join(root, "main.tf"), main.Metadata[domain.MetaPath])
	assert.Equal(t, domain.Checksum(main.Content), main.Checksum)
	assert.Equal(t, FileTypeText, docs[0].Metadata[domain.MetaFileType])
}

func TestLoad_CustomPatterns(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.tf", []byte("a"))
	writeFile(t, root, "env/b.tf", []byte("b"))
	writeFile(t, root, "env/c.md", []byte("c"))

	docs, err := Load(root, Options{Include: []string{"env/**"}, Exclude: []string{"**/*.md"}})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "env/b.tf", docs[0].Source)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing"), Options{})
	assert.Error(t, err)

	_, err = Load(t.TempDir(), Options{Include: []string{"[unclosed"}})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestLoad_SkipsOversizedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "big.txt", make([]byte, 64))
	writeFile(t, root, "small.txt", []byte("ok"))

	docs, err := Load(root, Options{MaxFileBytes: 16})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "small.txt", docs[0].Source)
}

func TestFingerprint(t *testing.T) {
	a := domain.NewDocument("a.tf", "alpha", nil)
	b := domain.NewDocument("b.tf", "beta", nil)

	base := Fingerprint([]domain.Document{a, b}, 1000, 100, "tfidf")
	assert.Len(t, base, 64)
	assert.Equal(t, base, Fingerprint([]domain.Document{b, a}, 1000, 100, "tfidf"), "order independent")

	changed := domain.NewDocument("b.tf", "beta2", nil)
	assert.NotEqual(t, base, Fingerprint([]domain.Document{a, changed}, 1000, 100, "tfidf"))
	assert.NotEqual(t, base, Fingerprint([]domain.Document{a, b}, 500, 100, "tfidf"))
	assert.NotEqual(t, base, Fingerprint([]domain.Document{a, b}, 1000, 50, "tfidf"))
	assert.NotEqual(t, base, Fingerprint([]domain.Document{a, b}, 1000, 100, "openai/text-embedding-3-small"))
}
