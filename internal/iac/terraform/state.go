package terraform

import (
	tfjson "github.com/hashicorp/terraform-json"

	"github.com/driftguard/driftguard/internal/pkg/errors"
)

// StateReader extracts declared resources from `terraform show -json`
// output, which carries fully resolved attribute values
type StateReader struct{}

// NewStateReader creates a new state reader
func NewStateReader() *StateReader {
	return &StateReader{}
}

// ParseState decodes a machine-readable state document and returns its
// managed resources. Data sources are skipped; their values are inputs,
// not declarations.
func (sr *StateReader) ParseState(content []byte) ([]Resource, error) {
	if len(content) == 0 {
		return nil, errors.MalformedState("empty state document", nil)
	}

	var state tfjson.State
	if err := state.UnmarshalJSON(content); err != nil {
		return nil, errors.MalformedState("state document is not valid terraform show output", err)
	}

	if state.Values == nil || state.Values.RootModule == nil {
		return nil, nil
	}

	return collectModuleResources(state.Values.RootModule), nil
}

func collectModuleResources(module *tfjson.StateModule) []Resource {
	var resources []Resource

	for _, res := range module.Resources {
		if res.Mode != tfjson.ManagedResourceMode {
			continue
		}
		resources = append(resources, Resource{
			Type:       res.Type,
			Name:       res.Name,
			Address:    res.Address,
			Provider:   providerFromType(res.Type),
			Attributes: res.AttributeValues,
		})
	}

	for _, child := range module.ChildModules {
		resources = append(resources, collectModuleResources(child)...)
	}

	return resources
}
