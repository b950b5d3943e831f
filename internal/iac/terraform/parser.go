package terraform

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// Resource is one declared resource extracted from Terraform sources. The
// Address (type.name) is the stable resource identifier used for drift
// matching.
type Resource struct {
	Type       string                 `json:"type"`
	Name       string                 `json:"name"`
	Address    string                 `json:"address"`
	Provider   string                 `json:"provider"`
	Attributes map[string]interface{} `json:"attributes"`
}

// Parser extracts declared resources from Terraform HCL files
type Parser struct {
	parser *hclparse.Parser
}

// NewParser creates a new Terraform parser
func NewParser() *Parser {
	return &Parser{parser: hclparse.NewParser()}
}

// Parse extracts resource blocks from HCL content. Only literal attribute
// values resolve; references and function calls keep their source text so
// the diff engine still sees a stable value.
func (p *Parser) Parse(content []byte, filename string) ([]Resource, error) {
	file, diags := p.parser.ParseHCL(content, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("HCL parsing failed: %s", diags.Error())
	}
	if file == nil || file.Body == nil {
		return nil, fmt.Errorf("empty HCL file")
	}

	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, fmt.Errorf("unexpected HCL body type")
	}

	var resources []Resource
	for _, block := range body.Blocks {
		if block.Type != "resource" {
			continue
		}
		res, err := p.parseResourceBlock(block)
		if err != nil {
			return nil, err
		}
		resources = append(resources, *res)
	}

	return resources, nil
}

// ParseFile parses a single Terraform file
func (p *Parser) ParseFile(filename string) ([]Resource, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return p.Parse(content, filename)
}

// ParseDirectory parses all .tf files under a directory tree
func (p *Parser) ParseDirectory(dir string) ([]Resource, error) {
	var resources []Resource

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".tf") {
			return nil
		}

		parsed, err := p.ParseFile(path)
		if err != nil {
			return err
		}
		resources = append(resources, parsed...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return resources, nil
}

func (p *Parser) parseResourceBlock(block *hclsyntax.Block) (*Resource, error) {
	if len(block.Labels) < 2 {
		return nil, fmt.Errorf("resource block at %s requires type and name labels", block.DefRange().String())
	}

	resourceType := block.Labels[0]
	resourceName := block.Labels[1]

	attrs := p.parseBody(block.Body)

	// Meta-arguments are orchestration detail, not resource state
	delete(attrs, "count")
	delete(attrs, "for_each")
	delete(attrs, "depends_on")
	delete(attrs, "lifecycle")
	delete(attrs, "provider")

	return &Resource{
		Type:       resourceType,
		Name:       resourceName,
		Address:    fmt.Sprintf("%s.%s", resourceType, resourceName),
		Provider:   providerFromType(resourceType),
		Attributes: attrs,
	}, nil
}

// parseBody flattens attributes and nested blocks into a key/value tree.
// Repeated nested blocks of the same type collect into a list.
func (p *Parser) parseBody(body *hclsyntax.Body) map[string]interface{} {
	out := make(map[string]interface{})

	for name, attr := range body.Attributes {
		out[name] = p.evalExpression(attr.Expr)
	}

	blocksByType := make(map[string][]map[string]interface{})
	for _, block := range body.Blocks {
		blocksByType[block.Type] = append(blocksByType[block.Type], p.parseBody(block.Body))
	}
	for blockType, blocks := range blocksByType {
		if len(blocks) == 1 {
			out[blockType] = blocks[0]
			continue
		}
		list := make([]interface{}, 0, len(blocks))
		for _, b := range blocks {
			list = append(list, b)
		}
		out[blockType] = list
	}

	return out
}

// evalExpression resolves literal expressions; anything referencing
// variables or functions keeps its raw source as a placeholder
func (p *Parser) evalExpression(expr hclsyntax.Expression) interface{} {
	val, diags := expr.Value(nil)
	if diags.HasErrors() || !val.IsWhollyKnown() {
		rng := expr.Range()
		if file, ok := p.parser.Sources()[rng.Filename]; ok {
			return string(rng.SliceBytes(file))
		}
		return "${unresolved}"
	}
	return ctyToGo(val)
}

// ctyToGo converts a cty.Value to plain Go values
func ctyToGo(val cty.Value) interface{} {
	if val.IsNull() {
		return nil
	}

	switch val.Type() {
	case cty.String:
		return val.AsString()
	case cty.Number:
		num, _ := val.AsBigFloat().Float64()
		return num
	case cty.Bool:
		return val.True()
	}

	if val.Type().IsListType() || val.Type().IsTupleType() || val.Type().IsSetType() {
		result := make([]interface{}, 0, val.LengthInt())
		iter := val.ElementIterator()
		for iter.Next() {
			_, v := iter.Element()
			result = append(result, ctyToGo(v))
		}
		return result
	}

	if val.Type().IsMapType() || val.Type().IsObjectType() {
		result := make(map[string]interface{})
		iter := val.ElementIterator()
		for iter.Next() {
			k, v := iter.Element()
			result[k.AsString()] = ctyToGo(v)
		}
		return result
	}

	return nil
}

// providerFromType derives the provider from a resource type prefix,
// e.g. aws_instance -> aws, google_compute_instance -> gcp
func providerFromType(resourceType string) string {
	prefix := strings.SplitN(resourceType, "_", 2)[0]
	switch prefix {
	case "google":
		return "gcp"
	case "azurerm", "azuread":
		return "azure"
	default:
		return prefix
	}
}
