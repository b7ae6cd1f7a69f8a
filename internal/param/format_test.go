package param

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatOutputs_DeclaredOutputsAreNamedInDeclarationOrder(t *testing.T) {
	declared := []Parameter{
		{Name: "Version", Type: TypeString},
		{Name: "Build", Type: TypeString},
	}
	values := map[string]any{"Version": "1.0.0", "Build": "42"}

	pairs, undeclared := FormatOutputs(declared, values)

	assert.Empty(t, undeclared)
	require.Len(t, pairs, 2)
	assert.Equal(t, "Version", pairs[0].Option)
	assert.Equal(t, "1.0.0", pairs[0].Cooked)
	assert.Equal(t, "Build", pairs[1].Option)
	assert.Equal(t, "42", pairs[1].Cooked)
}

func TestFormatOutputs_MissingDeclaredValueIsSkipped(t *testing.T) {
	declared := []Parameter{{Name: "Version", Type: TypeString}}
	values := map[string]any{}

	pairs, undeclared := FormatOutputs(declared, values)

	assert.Empty(t, pairs)
	assert.Empty(t, undeclared)
}

func TestFormatOutputs_UndeclaredValuesAppendPositionallyAfterDeclared(t *testing.T) {
	declared := []Parameter{{Name: "Version", Type: TypeString}}
	values := map[string]any{"Version": "1.0.0", "Extra": "surprise"}

	pairs, undeclared := FormatOutputs(declared, values)

	assert.Equal(t, []string{"Extra"}, undeclared)
	assert.Equal(t, "Version", pairs[0].Option)
	assert.Equal(t, "1.0.0", pairs[0].Cooked)
	assert.Equal(t, "", pairs[1].Option)
	assert.Equal(t, "surprise", pairs[1].Cooked)
}
