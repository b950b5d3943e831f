package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDiffer() *Differ {
	return NewDiffer([]string{"security_group", "iam", "public", "password", "ingress"})
}

func TestComputeDriftIdenticalDocuments(t *testing.T) {
	d := testDiffer()
	doc := map[string]interface{}{
		"instance_type": "t3.micro",
		"port":          float64(80),
		"tags":          map[string]interface{}{"env": "prod", "team": "infra"},
		"subnets":       []interface{}{"subnet-a", "subnet-b"},
	}

	changes := d.ComputeDrift(doc, doc)
	assert.True(t, changes.Empty())
}

func TestComputeDriftModifiedScalar(t *testing.T) {
	d := testDiffer()
	declared := map[string]interface{}{"port": float64(80)}
	observed := map[string]interface{}{"port": float64(443)}

	changes := d.ComputeDrift(declared, observed)
	require.Len(t, changes, 1)

	c := changes[0]
	assert.Equal(t, "port", c.Path)
	assert.Equal(t, float64(80), c.DeclaredValue)
	assert.Equal(t, float64(443), c.ActualValue)
	assert.Equal(t, ChangeModified, c.ChangeType)
	assert.False(t, c.SecurityCritical)
}

func TestComputeDriftAddedAndRemovedKeys(t *testing.T) {
	d := testDiffer()
	declared := map[string]interface{}{"a": "x", "b": "y"}
	observed := map[string]interface{}{"b": "y", "c": "z"}

	changes := d.ComputeDrift(declared, observed)
	require.Len(t, changes, 2)

	// Sorted by path: a before c
	assert.Equal(t, "a", changes[0].Path)
	assert.Equal(t, ChangeRemoved, changes[0].ChangeType)
	assert.Equal(t, "c", changes[1].Path)
	assert.Equal(t, ChangeAdded, changes[1].ChangeType)
}

func TestComputeDriftNestedPaths(t *testing.T) {
	d := testDiffer()
	declared := map[string]interface{}{
		"network": map[string]interface{}{
			"vpc":  "vpc-1",
			"cidr": "10.0.0.0/16",
		},
	}
	observed := map[string]interface{}{
		"network": map[string]interface{}{
			"vpc":  "vpc-1",
			"cidr": "10.1.0.0/16",
		},
	}

	changes := d.ComputeDrift(declared, observed)
	require.Len(t, changes, 1)
	assert.Equal(t, "network.cidr", changes[0].Path)
	assert.Equal(t, ChangeModified, changes[0].ChangeType)
}

func TestComputeDriftListIndexPaths(t *testing.T) {
	d := testDiffer()
	declared := map[string]interface{}{
		"subnets": []interface{}{"subnet-a", "subnet-b"},
	}
	observed := map[string]interface{}{
		"subnets": []interface{}{"subnet-a", "subnet-c", "subnet-d"},
	}

	changes := d.ComputeDrift(declared, observed)
	require.Len(t, changes, 2)
	assert.Equal(t, "subnets[1]", changes[0].Path)
	assert.Equal(t, ChangeModified, changes[0].ChangeType)
	assert.Equal(t, "subnets[2]", changes[1].Path)
	assert.Equal(t, ChangeAdded, changes[1].ChangeType)
}

func TestComputeDriftListOrderSignificant(t *testing.T) {
	d := testDiffer()
	declared := map[string]interface{}{"subnets": []interface{}{"a", "b"}}
	observed := map[string]interface{}{"subnets": []interface{}{"b", "a"}}

	changes := d.ComputeDrift(declared, observed)
	assert.Len(t, changes, 2)
}

func TestComputeDriftSecurityCriticalFlag(t *testing.T) {
	d := testDiffer()
	declared := map[string]interface{}{
		"security_group_rules": []interface{}{
			map[string]interface{}{"port": float64(443), "cidr": "10.0.0.0/8"},
		},
		"instance_type": "t3.micro",
	}
	observed := map[string]interface{}{
		"security_group_rules": []interface{}{
			map[string]interface{}{"port": float64(443), "cidr": "0.0.0.0/0"},
		},
		"instance_type": "t3.small",
	}

	changes := d.ComputeDrift(declared, observed)
	require.Len(t, changes, 2)

	byPath := map[string]Change{}
	for _, c := range changes {
		byPath[c.Path] = c
	}

	assert.True(t, byPath["security_group_rules[0].cidr"].SecurityCritical)
	assert.False(t, byPath["instance_type"].SecurityCritical)
	assert.Equal(t, 1, changes.SecurityCriticalCount())
}

func TestComputeDriftObservedAbsent(t *testing.T) {
	d := testDiffer()
	declared := map[string]interface{}{
		"sg_rules": []interface{}{map[string]interface{}{"port": float64(22)}},
	}

	changes := d.ComputeDrift(declared, nil)
	require.Len(t, changes, 1)
	assert.Equal(t, "", changes[0].Path)
	assert.Equal(t, ChangeRemoved, changes[0].ChangeType)
	assert.Equal(t, declared, changes[0].DeclaredValue)
	assert.Nil(t, changes[0].ActualValue)
}

func TestComputeDriftInversion(t *testing.T) {
	d := testDiffer()
	a := map[string]interface{}{
		"port":    float64(80),
		"only_a":  "x",
		"shared":  "same",
		"nested":  map[string]interface{}{"k": float64(1)},
		"subnets": []interface{}{"a"},
	}
	b := map[string]interface{}{
		"port":    float64(443),
		"only_b":  "y",
		"shared":  "same",
		"nested":  map[string]interface{}{"k": float64(2)},
		"subnets": []interface{}{"a", "b"},
	}

	forward := d.ComputeDrift(a, b)
	backward := d.ComputeDrift(b, a)
	require.Equal(t, len(forward), len(backward))

	inverted := map[string]string{
		ChangeAdded:    ChangeRemoved,
		ChangeRemoved:  ChangeAdded,
		ChangeModified: ChangeModified,
	}

	back := map[string]Change{}
	for _, c := range backward {
		back[c.Path] = c
	}
	for _, f := range forward {
		bc, ok := back[f.Path]
		require.True(t, ok, "path %s missing in inverse diff", f.Path)
		assert.Equal(t, inverted[f.ChangeType], bc.ChangeType)
		assert.Equal(t, f.DeclaredValue, bc.ActualValue)
		assert.Equal(t, f.ActualValue, bc.DeclaredValue)
	}
}

func TestComputeDriftDeterministicOrdering(t *testing.T) {
	d := testDiffer()
	declared := map[string]interface{}{
		"z": "1", "m": "1", "a": "1", "q": map[string]interface{}{"x": "1", "y": "1"},
	}
	observed := map[string]interface{}{
		"z": "2", "m": "2", "a": "2", "q": map[string]interface{}{"x": "2", "y": "2"},
	}

	first := d.ComputeDrift(declared, observed)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, d.ComputeDrift(declared, observed))
	}

	// Ordering is lexicographic by path
	require.Len(t, first, 5)
	assert.Equal(t, "a", first[0].Path)
	assert.Equal(t, "m", first[1].Path)
	assert.Equal(t, "q.x", first[2].Path)
	assert.Equal(t, "q.y", first[3].Path)
	assert.Equal(t, "z", first[4].Path)
}

func TestValuesEqualTypeMismatch(t *testing.T) {
	assert.False(t, valuesEqual("80", float64(80)))
	assert.False(t, valuesEqual(true, "true"))
	assert.True(t, valuesEqual(nil, nil))
	assert.False(t, valuesEqual(nil, "x"))
}

func TestParseStateDocument(t *testing.T) {
	doc, err := parseStateDocument([]byte(`{"port": 80, "tags": {"env": "prod"}}`))
	require.NoError(t, err)
	assert.Equal(t, float64(80), doc["port"])

	_, err = parseStateDocument([]byte(``))
	assert.Error(t, err)

	_, err = parseStateDocument([]byte(`{"unterminated`))
	assert.Error(t, err)

	_, err = parseStateDocument([]byte(`[1, 2, 3]`))
	assert.Error(t, err)
}
