package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scpid/scpid/internal/access"
	"github.com/scpid/scpid/internal/parser"
	"github.com/scpid/scpid/internal/signal"
)

func newBuiltinSession(t *testing.T) (*Registry, *Session) {
	reg, root := newTestRegistry()
	require.NoError(t, RegisterBuiltins(root))
	s, _ := newTestSession(reg, root)
	return reg, s
}

func TestACCess_RaisesSessionLevel(t *testing.T) {
	_, s := newBuiltinSession(t)
	ctx := NewContext(s)

	_, err := Dispatch(ctx, &parser.Command{Name: "ACCess", Parts: []parser.Part{{Cooked: "CONTROLLER"}}})
	require.NoError(t, err)
	assert.Equal(t, access.Controller, s.Level())
}

func TestACCess_ExclusiveAcquiresSlot(t *testing.T) {
	reg, s := newBuiltinSession(t)
	ctx := NewContext(s)

	_, err := Dispatch(ctx, &parser.Command{
		Name: "ACCess",
		Parts: []parser.Part{
			{Cooked: "CONTROLLER"},
			{Option: "exclusive", Cooked: "true"},
		},
	})
	require.NoError(t, err)
	assert.True(t, s.Exclusive)

	other, _ := newTestSession(reg, reg.Root)
	require.NoError(t, other.SetLevel(access.Controller))
	err = reg.TryAcquireExclusive(other, access.Controller)
	assert.Error(t, err)
}

func TestACCess_StealthSetsSessionFlag(t *testing.T) {
	_, s := newBuiltinSession(t)
	ctx := NewContext(s)

	_, err := Dispatch(ctx, &parser.Command{
		Name: "ACCess",
		Parts: []parser.Part{
			{Cooked: "OBSERVER"},
			{Option: "stealth", Cooked: "true"},
		},
	})
	require.NoError(t, err)
	assert.True(t, s.Stealth)
}

func TestACCess_RejectsValueOutsideTheEnumeration(t *testing.T) {
	_, s := newBuiltinSession(t)
	ctx := NewContext(s)

	_, err := Dispatch(ctx, &parser.Command{Name: "ACCess", Parts: []parser.Part{{Cooked: "NOTALEVEL"}}})
	assert.Error(t, err)
}

func TestRETurn_ProducesReturnValueSignalWithValue(t *testing.T) {
	_, s := newBuiltinSession(t)
	ctx := NewContext(s)

	res, err := Dispatch(ctx, &parser.Command{Name: "RETurn", Parts: []parser.Part{{Cooked: "42"}}})
	require.NoError(t, err)
	require.NotNil(t, res.Signal)
	assert.Equal(t, signal.ReturnValue, res.Signal.Kind)
	assert.Equal(t, "42", res.Signal.Parts["value"])
}

func TestRETurn_DefaultsToEmptyValue(t *testing.T) {
	_, s := newBuiltinSession(t)
	ctx := NewContext(s)

	res, err := Dispatch(ctx, &parser.Command{Name: "RETurn"})
	require.NoError(t, err)
	require.NotNil(t, res.Signal)
	assert.Equal(t, signal.ReturnValue, res.Signal.Kind)
	assert.Equal(t, "", res.Signal.Parts["value"])
}

func TestBREak_ProducesBreakSignalWithDefaultLevel(t *testing.T) {
	_, s := newBuiltinSession(t)
	ctx := NewContext(s)

	res, err := Dispatch(ctx, &parser.Command{Name: "BREak"})
	require.NoError(t, err)
	require.NotNil(t, res.Signal)
	assert.Equal(t, signal.Break, res.Signal.Kind)
	assert.Equal(t, 1, res.Signal.Levels)
}

func TestBREak_HonorsExplicitLevels(t *testing.T) {
	_, s := newBuiltinSession(t)
	ctx := NewContext(s)

	res, err := Dispatch(ctx, &parser.Command{Name: "BREak", Parts: []parser.Part{{Cooked: "2"}}})
	require.NoError(t, err)
	require.NotNil(t, res.Signal)
	assert.Equal(t, 2, res.Signal.Levels)
}
