package detector

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/driftguard/driftguard/internal/pkg/errors"
)

// Change is one field-level difference between a declared and an observed
// state document
type Change struct {
	Path             string      `json:"path"`
	DeclaredValue    interface{} `json:"declared_value"`
	ActualValue      interface{} `json:"actual_value"`
	ChangeType       string      `json:"change_type"` // modified, added, removed
	SecurityCritical bool        `json:"security_critical"`
}

// Change types
const (
	ChangeModified = "modified"
	ChangeAdded    = "added"
	ChangeRemoved  = "removed"
)

// ChangeSet is the full comparison result for one resource, ordered by
// property path so identical inputs always produce identical output
type ChangeSet []Change

// Empty reports whether the two documents were equal
func (cs ChangeSet) Empty() bool {
	return len(cs) == 0
}

// SecurityCriticalCount counts changes flagged security critical
func (cs ChangeSet) SecurityCriticalCount() int {
	n := 0
	for _, c := range cs {
		if c.SecurityCritical {
			n++
		}
	}
	return n
}

// Differ computes structural comparisons between state documents.
// Comparison is exact-value; list order is significant.
type Differ struct {
	sensitivePatterns []string
}

// NewDiffer creates a differ with the given sensitive path patterns. A change
// whose property path contains one of the patterns (case-insensitive) is
// flagged security critical.
func NewDiffer(sensitivePatterns []string) *Differ {
	patterns := make([]string, len(sensitivePatterns))
	for i, p := range sensitivePatterns {
		patterns[i] = strings.ToLower(p)
	}
	return &Differ{sensitivePatterns: patterns}
}

// ComputeDrift compares a declared document against an observed one. A nil
// observed document means the resource no longer exists in the cloud and
// yields a single removed change at the root path.
func (d *Differ) ComputeDrift(declared, observed map[string]interface{}) ChangeSet {
	if observed == nil {
		return ChangeSet{{
			Path:          "",
			DeclaredValue: declared,
			ActualValue:   nil,
			ChangeType:    ChangeRemoved,
		}}
	}

	changes := d.compareMaps(declared, observed, "")

	sort.Slice(changes, func(i, j int) bool {
		if changes[i].Path != changes[j].Path {
			return changes[i].Path < changes[j].Path
		}
		return changes[i].ChangeType < changes[j].ChangeType
	})

	return changes
}

// compareMaps recursively walks both documents by key
func (d *Differ) compareMaps(declared, observed map[string]interface{}, path string) []Change {
	var changes []Change

	for key, declVal := range declared {
		childPath := joinPath(path, key)

		obsVal, exists := observed[key]
		if !exists {
			changes = append(changes, d.newChange(childPath, declVal, nil, ChangeRemoved))
			continue
		}

		changes = append(changes, d.compareValues(declVal, obsVal, childPath)...)
	}

	for key, obsVal := range observed {
		if _, exists := declared[key]; !exists {
			childPath := joinPath(path, key)
			changes = append(changes, d.newChange(childPath, nil, obsVal, ChangeAdded))
		}
	}

	return changes
}

// compareValues compares two values present at the same path
func (d *Differ) compareValues(declVal, obsVal interface{}, path string) []Change {
	declMap, declIsMap := declVal.(map[string]interface{})
	obsMap, obsIsMap := obsVal.(map[string]interface{})
	if declIsMap && obsIsMap {
		return d.compareMaps(declMap, obsMap, path)
	}

	declList, declIsList := declVal.([]interface{})
	obsList, obsIsList := obsVal.([]interface{})
	if declIsList && obsIsList {
		return d.compareLists(declList, obsList, path)
	}

	if !valuesEqual(declVal, obsVal) {
		return []Change{d.newChange(path, declVal, obsVal, ChangeModified)}
	}

	return nil
}

// compareLists walks list elements by index; order is significant, so a
// permuted list surfaces as modified elements rather than no change
func (d *Differ) compareLists(declared, observed []interface{}, path string) []Change {
	var changes []Change

	for i := 0; i < len(declared) && i < len(observed); i++ {
		childPath := fmt.Sprintf("%s[%d]", path, i)
		changes = append(changes, d.compareValues(declared[i], observed[i], childPath)...)
	}

	for i := len(observed); i < len(declared); i++ {
		childPath := fmt.Sprintf("%s[%d]", path, i)
		changes = append(changes, d.newChange(childPath, declared[i], nil, ChangeRemoved))
	}

	for i := len(declared); i < len(observed); i++ {
		childPath := fmt.Sprintf("%s[%d]", path, i)
		changes = append(changes, d.newChange(childPath, nil, observed[i], ChangeAdded))
	}

	return changes
}

func (d *Differ) newChange(path string, declared, actual interface{}, changeType string) Change {
	return Change{
		Path:             path,
		DeclaredValue:    declared,
		ActualValue:      actual,
		ChangeType:       changeType,
		SecurityCritical: d.isSensitivePath(path),
	}
}

// isSensitivePath checks the path against the configured sensitive patterns
func (d *Differ) isSensitivePath(path string) bool {
	lower := strings.ToLower(path)
	for _, p := range d.sensitivePatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

// valuesEqual compares two scalar or composite values for exact equality
func valuesEqual(v1, v2 interface{}) bool {
	if v1 == nil && v2 == nil {
		return true
	}
	if v1 == nil || v2 == nil {
		return false
	}

	switch t1 := v1.(type) {
	case string:
		t2, ok := v2.(string)
		return ok && t1 == t2
	case float64:
		t2, ok := v2.(float64)
		return ok && t1 == t2
	case bool:
		t2, ok := v2.(bool)
		return ok && t1 == t2
	case int:
		t2, ok := v2.(int)
		return ok && t1 == t2
	}

	if s1, ok := v1.([]interface{}); ok {
		s2, ok := v2.([]interface{})
		if !ok || len(s1) != len(s2) {
			return false
		}
		for i := range s1 {
			if !valuesEqual(s1[i], s2[i]) {
				return false
			}
		}
		return true
	}

	if m1, ok := v1.(map[string]interface{}); ok {
		m2, ok := v2.(map[string]interface{})
		if !ok || len(m1) != len(m2) {
			return false
		}
		for k, val1 := range m1 {
			val2, exists := m2[k]
			if !exists || !valuesEqual(val1, val2) {
				return false
			}
		}
		return true
	}

	// Fallback to JSON comparison for anything else
	j1, err1 := json.Marshal(v1)
	j2, err2 := json.Marshal(v2)
	if err1 != nil || err2 != nil {
		return false
	}
	return string(j1) == string(j2)
}

// parseStateDocument decodes a raw JSON state document into a key/value tree.
// Non-object roots and invalid JSON are reported as MalformedState so a bad
// document fails its own resource, not the whole scan.
func parseStateDocument(raw []byte) (map[string]interface{}, error) {
	if len(raw) == 0 {
		return nil, errors.MalformedState("empty state document", nil)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.MalformedState("state document is not a JSON object", err)
	}

	return doc, nil
}
