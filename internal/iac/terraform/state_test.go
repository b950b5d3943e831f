package terraform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftguard/driftguard/internal/pkg/errors"
)

const stateJSON = `{
  "format_version": "1.0",
  "terraform_version": "1.7.0",
  "values": {
    "root_module": {
      "resources": [
        {
          "address": "aws_instance.web",
          "mode": "managed",
          "type": "aws_instance",
          "name": "web",
          "provider_name": "registry.terraform.io/hashicorp/aws",
          "values": {
            "instance_type": "t3.micro",
            "ami": "ami-0abc123"
          }
        },
        {
          "address": "data.aws_ami.ubuntu",
          "mode": "data",
          "type": "aws_ami",
          "name": "ubuntu",
          "provider_name": "registry.terraform.io/hashicorp/aws",
          "values": {}
        }
      ],
      "child_modules": [
        {
          "address": "module.network",
          "resources": [
            {
              "address": "module.network.aws_vpc.main",
              "mode": "managed",
              "type": "aws_vpc",
              "name": "main",
              "provider_name": "registry.terraform.io/hashicorp/aws",
              "values": {
                "cidr_block": "10.0.0.0/16"
              }
            }
          ]
        }
      ]
    }
  }
}`

func TestParseStateManagedResources(t *testing.T) {
	sr := NewStateReader()

	resources, err := sr.ParseState([]byte(stateJSON))
	require.NoError(t, err)
	require.Len(t, resources, 2, "data sources are skipped")

	assert.Equal(t, "aws_instance.web", resources[0].Address)
	assert.Equal(t, "aws", resources[0].Provider)
	assert.Equal(t, "t3.micro", resources[0].Attributes["instance_type"])

	assert.Equal(t, "module.network.aws_vpc.main", resources[1].Address)
	assert.Equal(t, "10.0.0.0/16", resources[1].Attributes["cidr_block"])
}

func TestParseStateEmptyDocument(t *testing.T) {
	sr := NewStateReader()

	_, err := sr.ParseState(nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMalformedState))
}

func TestParseStateInvalidJSON(t *testing.T) {
	sr := NewStateReader()

	_, err := sr.ParseState([]byte(`{"format_version": `))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMalformedState))
}

func TestParseStateWithoutValues(t *testing.T) {
	sr := NewStateReader()

	resources, err := sr.ParseState([]byte(`{"format_version": "1.0", "terraform_version": "1.7.0"}`))
	require.NoError(t, err)
	assert.Empty(t, resources)
}
