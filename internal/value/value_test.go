package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capstan-io/capstan/internal/urn"
)

func TestMarshal_TaggedVariants(t *testing.T) {
	b, err := Marshal(Unknown{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"$capstan":"unknown"}`, string(b))

	ref := ResourceRef{URN: "urn:capstan:s::p::t::n", Path: "id"}
	b, err = Marshal(ref)
	require.NoError(t, err)
	assert.JSONEq(t, `{"$capstan":"ref","urn":"urn:capstan:s::p::t::n","path":"id"}`, string(b))
}

func TestUnmarshal_TaggedVariants(t *testing.T) {
	v, err := Unmarshal([]byte(`{"$capstan":"unknown"}`))
	require.NoError(t, err)
	assert.Equal(t, Unknown{}, v)

	v, err = Unmarshal([]byte(`{"$capstan":"ref","urn":"urn:capstan:s::p::t::n","path":"arn"}`))
	require.NoError(t, err)
	assert.Equal(t, ResourceRef{URN: "urn:capstan:s::p::t::n", Path: "arn"}, v)

	_, err = Unmarshal([]byte(`{"$capstan":"bogus"}`))
	assert.Error(t, err)

	_, err = Unmarshal([]byte(`{"$capstan":"ref"}`))
	assert.Error(t, err, "ref without urn must fail")
}

func TestMarshal_NestedBag(t *testing.T) {
	bag := Object{
		"name":  String("assets"),
		"count": Number(3),
		"tags":  Array{String("a"), String("b")},
		"net": Object{
			"vpc": ResourceRef{URN: "urn:capstan:s::p::aws:ec2:Vpc::main", Path: "id"},
		},
		"zone": Unknown{},
		"none": Null{},
	}

	b, err := Marshal(bag)
	require.NoError(t, err)

	back, err := Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, bag, back)
}

func TestUnmarshal_PlainJSON(t *testing.T) {
	v, err := Unmarshal([]byte(`{"a":1,"b":[true,null],"c":"x"}`))
	require.NoError(t, err)

	obj, ok := v.(Object)
	require.True(t, ok)
	assert.Equal(t, Number(1), obj["a"])
	assert.Equal(t, Array{Bool(true), Null{}}, obj["b"])
	assert.Equal(t, String("x"), obj["c"])
}

func TestMarshal_NilValueRejected(t *testing.T) {
	_, err := Marshal(nil)
	assert.Error(t, err)

	_, err = Marshal(Object{"k": nil})
	assert.Error(t, err)
}

func TestObject_Copy(t *testing.T) {
	orig := Object{"a": String("x")}
	cp := orig.Copy()
	cp["a"] = String("y")
	assert.Equal(t, String("x"), orig["a"])
}

func TestDependenciesOf(t *testing.T) {
	vpc := urn.URN("urn:capstan:s::p::aws:ec2:Vpc::main")
	sg := urn.URN("urn:capstan:s::p::aws:ec2:SecurityGroup::web")

	bag := Object{
		"vpcId": ResourceRef{URN: vpc, Path: "id"},
		"rules": Array{
			Object{"sg": ResourceRef{URN: sg}},
			// Duplicate reference - must be deduplicated.
			Object{"sg2": ResourceRef{URN: sg, Path: "id"}},
		},
		"plain": String("x"),
	}

	deps := DependenciesOf(bag)
	assert.Equal(t, []urn.URN{sg, vpc}, deps, "deduplicated and sorted")
	assert.Empty(t, DependenciesOf(Object{"a": Number(1)}))
}

func TestContainsUnknown(t *testing.T) {
	assert.False(t, ContainsUnknown(Object{"a": String("x"), "n": Null{}}))
	assert.True(t, ContainsUnknown(Object{"a": Unknown{}}))
	assert.True(t, ContainsUnknown(Array{Object{"r": ResourceRef{URN: "u"}}}))
}

type mapResolver map[string]Value

func (m mapResolver) ResolveOutput(u urn.URN, path string) (Value, error) {
	v, ok := m[string(u)+"#"+path]
	if !ok {
		return nil, assert.AnError
	}
	return v, nil
}

func TestResolveRefs(t *testing.T) {
	vpc := urn.URN("urn:capstan:s::p::aws:ec2:Vpc::main")
	r := mapResolver{string(vpc) + "#id": String("vpc-123")}

	bag := Object{
		"vpcId": ResourceRef{URN: vpc, Path: "id"},
		"nested": Array{
			ResourceRef{URN: vpc, Path: "id"},
			String("literal"),
		},
	}

	resolved, err := ResolveRefs(bag, r)
	require.NoError(t, err)
	assert.Equal(t, Object{
		"vpcId":  String("vpc-123"),
		"nested": Array{String("vpc-123"), String("literal")},
	}, resolved)

	// Original bag must be untouched.
	assert.IsType(t, ResourceRef{}, bag["vpcId"])
}

func TestResolveRefs_UnresolvableFails(t *testing.T) {
	bag := Object{"x": ResourceRef{URN: "urn:capstan:s::p::t::missing"}}
	_, err := ResolveRefs(bag, mapResolver{})
	assert.Error(t, err)
}
