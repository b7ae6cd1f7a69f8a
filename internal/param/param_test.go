package param

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scpid/scpid/internal/parser"
)

func TestBuildPartition_PromotesOptionalBeforeRequired(t *testing.T) {
	params := []Parameter{
		{Name: "opt", HasDefault: true, Default: "x"},
		{Name: "req"},
	}
	p := BuildPartition("LEAF", params)
	require.Len(t, p.PositionalRequired, 1)
	assert.Equal(t, "req", p.PositionalRequired[0].Name)
	_, promoted := p.Named["opt"]
	assert.True(t, promoted)
}

func TestBuildPartition_RepeatingMustBeLast(t *testing.T) {
	params := []Parameter{
		{Name: "rep", IsRepeating: true, Repeats: Repeats{Min: 0, Max: 0}},
		{Name: "after"},
	}
	assert.Panics(t, func() { BuildPartition("LEAF", params) })
}

func TestBind_RequiredAndOptionalPositional(t *testing.T) {
	params := []Parameter{
		{Name: "freq", Type: TypeReal},
		{Name: "unit", HasDefault: true, Default: "Hz"},
	}
	partition := BuildPartition("LEAF", params)

	bound, err := Bind("LEAF", partition, []parser.Part{{Cooked: "42.0"}})
	require.NoError(t, err)
	require.Len(t, bound["freq"], 1)
	assert.Equal(t, "42.0", bound["freq"][0].Cooked)
	require.Len(t, bound["unit"], 1)
	assert.Equal(t, "Hz", bound["unit"][0].Cooked)
}

func TestBind_MissingRequiredArgument(t *testing.T) {
	params := []Parameter{{Name: "freq", Type: TypeReal}}
	partition := BuildPartition("LEAF", params)

	_, err := Bind("LEAF", partition, nil)
	assert.Error(t, err)
}

func TestBind_NamedOption(t *testing.T) {
	params := []Parameter{{Name: "unit", Named: true, HasDefault: true, Default: "V"}}
	partition := BuildPartition("LEAF", params)

	bound, err := Bind("LEAF", partition, []parser.Part{{Option: "unit", Cooked: "mW"}})
	require.NoError(t, err)
	assert.Equal(t, "mW", bound["unit"][0].Cooked)
}

func TestBind_NoSuchCommandOption(t *testing.T) {
	params := []Parameter{{Name: "unit", Named: true, HasDefault: true}}
	partition := BuildPartition("LEAF", params)

	_, err := Bind("LEAF", partition, []parser.Part{{Option: "bogus", Cooked: "x"}})
	assert.Error(t, err)
}

func TestBind_ExtraArgument(t *testing.T) {
	params := []Parameter{{Name: "freq", Type: TypeReal}}
	partition := BuildPartition("LEAF", params)

	_, err := Bind("LEAF", partition, []parser.Part{{Cooked: "1"}, {Cooked: "2"}})
	assert.Error(t, err)
}

func TestBind_RangeViolation(t *testing.T) {
	params := []Parameter{{Name: "freq", Type: TypeReal, Range: Range{Enabled: true, Min: 0, Max: 10}}}
	partition := BuildPartition("LEAF", params)

	_, err := Bind("LEAF", partition, []parser.Part{{Cooked: "99"}})
	assert.Error(t, err)
}

func TestBind_EnumViolation(t *testing.T) {
	params := []Parameter{{Name: "mode", Type: TypeEnumeration, Enum: []string{"AUTO", "MANUAL"}}}
	partition := BuildPartition("LEAF", params)

	_, err := Bind("LEAF", partition, []parser.Part{{Cooked: "BOGUS"}})
	assert.Error(t, err)
}

func TestBind_RepeatingPositional(t *testing.T) {
	params := []Parameter{{Name: "items", IsRepeating: true, Repeats: Repeats{Min: 1, Max: 0}}}
	partition := BuildPartition("LEAF", params)

	bound, err := Bind("LEAF", partition, []parser.Part{{Cooked: "a"}, {Cooked: "b"}, {Cooked: "c"}})
	require.NoError(t, err)
	assert.Len(t, bound["items"], 3)
}

func TestToValue_Integer(t *testing.T) {
	v, err := ToValue(Binding{Param: Parameter{Type: TypeInteger}, Cooked: "42"})
	require.NoError(t, err)
	assert.EqualValues(t, 42, v)
}

func TestToValue_ListOfStrings(t *testing.T) {
	v, err := ToValue(Binding{Param: Parameter{Type: TypeListOfStrings, Split: Split{Separator: ","}}, Cooked: "a,b,c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, v)
}
