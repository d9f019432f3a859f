package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iacrag/internal/domain"
)

func corpus() []domain.Document {
	return []domain.Document{
		domain.NewDocument("main.tf", `
provider "google" {
  project = var.project
}

resource "google_storage_bucket" "logs" {
  name     = "acme-logs"
  location = "EU"
  labels = {
    team = "platform"
  }
  lifecycle_rule {
    action {
      type = "Delete"
    }
  }
}

resource "google_storage_bucket" "assets" {
  name = "acme-assets"
}

resource "google_compute_firewall" "allow_ssh" {
  name    = "allow-ssh"
  network = "default"
  description = "opens {22}"
}
`, nil),
		domain.NewDocument("variables.tf", `
variable "project" {}
variable "region" { default = "eu" }
output "bucket_url" { value = google_storage_bucket.logs.url }
provider "google" {}
`, nil),
		domain.NewDocument("README.md", "Notes only.", nil),
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(corpus())

	assert.Equal(t, 3, s.TotalFiles)
	assert.Equal(t, []string{"google_compute_firewall", "google_storage_bucket"}, s.Types())
	assert.Equal(t, []string{"assets", "logs"}, s.ResourceTypes["google_storage_bucket"])
	assert.Equal(t, []string{"allow_ssh"}, s.ResourceTypes["google_compute_firewall"])
	assert.Equal(t, []string{"project", "region"}, s.Variables)
	assert.Equal(t, []string{"bucket_url"}, s.Outputs)
	assert.Equal(t, []string{"google"}, s.Providers)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.Equal(t, 0, s.TotalFiles)
	assert.Empty(t, s.ResourceTypes)
	assert.Empty(t, s.Variables)
}

func TestDetails(t *testing.T) {
	all := Details(corpus(), "")
	require.Len(t, all, 3)
	assert.Equal(t, "google_compute_firewall.allow_ssh", all[0].Key())
	assert.Equal(t, []string{"name", "network", "description"}, all[0].Properties)
	assert.Equal(t, "main.tf", all[0].SourceFile)

	buckets := Details(corpus(), "google_storage_bucket")
	require.Len(t, buckets, 2)
	assert.Equal(t, "assets", buckets[0].Name)
	assert.Equal(t, "logs", buckets[1].Name)
	assert.Equal(t, []string{"name", "location", "labels"}, buckets[1].Properties)

	assert.Empty(t, Details(corpus(), "aws_s3_bucket"))
}

func TestDetails_SkipsCommentsAndHeredocs(t *testing.T) {
	docs := []domain.Document{domain.NewDocument("vm.tf", `
# resource "google_compute_instance" "old" {}
resource "google_compute_instance" "web" {
  name = "web" # don't "quote this
  machine_type = "e2-small"
  // disabled = true
  /* zone = "a"
     region = "b" } */
  user_data = <<-EOT
    #!/bin/bash
    PORT=8080
    MODE = "prod" }
  EOT
  tags = ["#web"]
}
`, nil)}

	res := Details(docs, "")
	require.Len(t, res, 1)
	assert.Equal(t, "google_compute_instance.web", res[0].Key())
	assert.Equal(t, []string{"name", "machine_type", "user_data", "tags"}, res[0].Properties)

	s := Summarize(docs)
	assert.Equal(t, []string{"web"}, s.ResourceTypes["google_compute_instance"])
}
