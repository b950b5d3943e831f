package terraform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const webInstanceHCL = `
resource "aws_instance" "web" {
  instance_type = "t3.micro"
  ami           = "ami-0abc123"
  count         = 2

  tags = {
    Name = "web"
    Team = "platform"
  }

  root_block_device {
    volume_size = 20
  }

  ingress {
    from_port = 80
  }
  ingress {
    from_port = 443
  }
}

variable "region" {
  default = "us-east-1"
}
`

func TestParseExtractsResourceBlocks(t *testing.T) {
	p := NewParser()

	resources, err := p.Parse([]byte(webInstanceHCL), "web.tf")
	require.NoError(t, err)
	require.Len(t, resources, 1, "variable blocks are not resources")

	res := resources[0]
	assert.Equal(t, "aws_instance", res.Type)
	assert.Equal(t, "web", res.Name)
	assert.Equal(t, "aws_instance.web", res.Address)
	assert.Equal(t, "aws", res.Provider)

	assert.Equal(t, "t3.micro", res.Attributes["instance_type"])
	assert.Equal(t, "ami-0abc123", res.Attributes["ami"])
	assert.NotContains(t, res.Attributes, "count", "meta-arguments are stripped")
}

func TestParseLiteralValueTypes(t *testing.T) {
	p := NewParser()

	resources, err := p.Parse([]byte(webInstanceHCL), "types.tf")
	require.NoError(t, err)
	res := resources[0]

	tags, ok := res.Attributes["tags"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "web", tags["Name"])

	device, ok := res.Attributes["root_block_device"].(map[string]interface{})
	require.True(t, ok, "a single nested block stays a map")
	assert.Equal(t, float64(20), device["volume_size"])

	ingress, ok := res.Attributes["ingress"].([]interface{})
	require.True(t, ok, "repeated nested blocks collect into a list")
	assert.Len(t, ingress, 2)
}

func TestParseKeepsUnresolvableExpressionsAsSource(t *testing.T) {
	p := NewParser()

	content := `
resource "aws_instance" "app" {
  subnet_id = aws_subnet.main.id
  ami       = var.ami_id
}
`
	resources, err := p.Parse([]byte(content), "refs.tf")
	require.NoError(t, err)
	require.Len(t, resources, 1)

	assert.Equal(t, "aws_subnet.main.id", resources[0].Attributes["subnet_id"])
	assert.Equal(t, "var.ami_id", resources[0].Attributes["ami"])
}

func TestParseProviderFromResourceType(t *testing.T) {
	p := NewParser()

	content := `
resource "google_storage_bucket" "assets" {
  name = "assets"
}

resource "azurerm_virtual_machine" "app" {
  name = "app"
}
`
	resources, err := p.Parse([]byte(content), "multi.tf")
	require.NoError(t, err)
	require.Len(t, resources, 2)

	assert.Equal(t, "gcp", resources[0].Provider)
	assert.Equal(t, "azure", resources[1].Provider)
}

func TestParseInvalidHCL(t *testing.T) {
	p := NewParser()

	_, err := p.Parse([]byte(`resource "aws_instance" {`), "broken.tf")
	require.Error(t, err)
}

func TestParseResourceMissingNameLabel(t *testing.T) {
	p := NewParser()

	_, err := p.Parse([]byte(`resource "aws_instance" { instance_type = "t3.micro" }`), "nolabel.tf")
	require.Error(t, err)
}

func TestParseDirectoryWalksTerraformFiles(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "main.tf"), `
resource "aws_instance" "web" {
  instance_type = "t3.micro"
}
`)
	writeFile(t, filepath.Join(dir, "storage.tf"), `
resource "aws_s3_bucket" "logs" {
  bucket = "logs"
}
`)
	writeFile(t, filepath.Join(dir, "README.md"), "not terraform")

	p := NewParser()
	resources, err := p.ParseDirectory(dir)
	require.NoError(t, err)

	addresses := make([]string, 0, len(resources))
	for _, res := range resources {
		addresses = append(addresses, res.Address)
	}
	assert.ElementsMatch(t, []string{"aws_instance.web", "aws_s3_bucket.logs"}, addresses)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
