package modbus_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	modbus "github.com/Argon343/pretty-modbus"
)

// the holding register layout shared by most fixtures
func holdingLayout(t *testing.T) *modbus.RegisterLayout {
	t.Helper()
	layout, err := modbus.NewRegisterLayout([]modbus.Variable{
		modbus.Str("str", 5, 2),
		modbus.Number("i", "i32"),
		modbus.Struct("struct", []modbus.Field{
			{Name: "CHANGED", Format: "u1"},
			{Name: "ELEMENT_TYPE", Format: "u7"},
			{Name: "ELEMENT_ID", Format: "u5"},
		}, 19),
		modbus.Number("f", "f16"),
	}, modbus.LittleEndian, modbus.BigEndian)
	require.NoError(t, err)
	return layout
}

func TestRegisterLayoutInitFailure(t *testing.T) {
	cases := []struct {
		name      string
		variables []modbus.Variable
		err       error
	}{
		{
			name: "overlapping addresses",
			variables: []modbus.Variable{
				modbus.Number("foo", "i64", 2),
				modbus.Number("bar", "i32", 5),
			},
			err: modbus.ErrInvalidAddressLayout,
		},
		{
			name: "duplicate name",
			variables: []modbus.Variable{
				modbus.Number("foo", "i64", 2),
				modbus.Str("foo", 5),
			},
			err: modbus.ErrDuplicateVariable,
		},
		{
			name:      "no variables",
			variables: nil,
			err:       modbus.ErrNoVariables,
		},
		{
			name:      "negative address",
			variables: []modbus.Variable{modbus.Number("foo", "i64", -1)},
			err:       modbus.ErrNegativeAddress,
		},
		{
			name:      "8-bit type",
			variables: []modbus.Variable{modbus.Number("foo", "i8")},
			err:       modbus.ErrUnknownType,
		},
		{
			name: "oversized struct",
			variables: []modbus.Variable{
				modbus.Struct("foo", []modbus.Field{{Name: "A", Format: "u16"}, {Name: "B", Format: "u1"}}),
			},
			err: modbus.ErrEncoding,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := modbus.NewRegisterLayout(c.variables, "", "")
			assert.ErrorIs(t, err, c.err)
		})
	}
}

func TestRegisterLayoutPlacement(t *testing.T) {
	layout := holdingLayout(t)
	assert.Equal(t, 2, layout.Address())
	assert.Equal(t, 21, layout.End())
	assert.Equal(t, 19, layout.Size())
	variables := layout.Variables()
	addresses := make(map[string]int, len(variables))
	for _, v := range variables {
		addresses[v.Name()] = v.Address()
	}
	// "i" trails "str" (3 registers from 2), "f" trails "struct"
	assert.Equal(t, map[string]int{"str": 2, "i": 5, "struct": 19, "f": 20}, addresses)
}

func TestRegisterLayoutGapsAllowed(t *testing.T) {
	layout, err := modbus.NewRegisterLayout([]modbus.Variable{
		modbus.Number("a", "u16", 0),
		modbus.Number("b", "u16", 7),
	}, "", "")
	require.NoError(t, err)
	assert.Equal(t, 8, layout.Size())
}

func TestRegisterLayoutBuildPayloadFailure(t *testing.T) {
	layout := holdingLayout(t)
	_, err := layout.BuildPayload(map[string]any{"str": "hello", "world": "!"})
	require.ErrorIs(t, err, modbus.ErrVariableNotFound)
	assert.Contains(t, err.Error(), "world")
	assert.NotContains(t, err.Error(), "str")
}

func TestRegisterLayoutBuildPayloadMerging(t *testing.T) {
	layout := holdingLayout(t)
	payloads, err := layout.BuildPayload(map[string]any{
		"str":    "hello",
		"i":      12,
		"struct": map[string]any{"CHANGED": 1, "ELEMENT_TYPE": 33, "ELEMENT_ID": 7},
		"f":      3.4,
	})
	require.NoError(t, err)
	// str+i are back-to-back, as are struct+f; the gap in between splits
	require.Len(t, payloads, 2)
	assert.Equal(t, 2, payloads[0].Address)
	assert.Equal(t, 5, payloads[0].Quantity())
	assert.Equal(t, 19, payloads[1].Address)
	assert.Equal(t, 2, payloads[1].Quantity())
}

func TestRegisterLayoutBuildPayloadPartial(t *testing.T) {
	layout := holdingLayout(t)
	// omitting "i" splits str from the rest
	payloads, err := layout.BuildPayload(map[string]any{"str": "hello", "struct": map[string]int64{
		"CHANGED": 0, "ELEMENT_TYPE": 1, "ELEMENT_ID": 2,
	}})
	require.NoError(t, err)
	require.Len(t, payloads, 2)
	assert.Equal(t, 2, payloads[0].Address)
	assert.Equal(t, 3, payloads[0].Quantity())
	assert.Equal(t, 19, payloads[1].Address)
	assert.Equal(t, 1, payloads[1].Quantity())

	payloads, err = layout.BuildPayload(map[string]any{})
	require.NoError(t, err)
	assert.Empty(t, payloads)
}

func TestRegisterLayoutRoundTrip(t *testing.T) {
	layout := holdingLayout(t)
	payloads, err := layout.BuildPayload(map[string]any{
		"str":    "hello",
		"i":      12,
		"struct": map[string]any{"CHANGED": 1, "ELEMENT_TYPE": 33, "ELEMENT_ID": 7},
		"f":      3.4,
	})
	require.NoError(t, err)
	registers := make([]uint16, layout.End())
	for _, p := range payloads {
		copy(registers[p.Address:], p.Registers())
	}
	values, err := layout.DecodeRegisters(registers[layout.Address():layout.End()])
	require.NoError(t, err)
	assert.Equal(t, "hello", values["str"])
	assert.Equal(t, int64(12), values["i"])
	assert.Equal(t, map[string]int64{"CHANGED": 1, "ELEMENT_TYPE": 33, "ELEMENT_ID": 7}, values["struct"])
	assert.InDelta(t, 3.4, values["f"], 1e-3)
}

func TestRegisterLayoutDecodeSubset(t *testing.T) {
	layout := holdingLayout(t)
	registers := make([]uint16, layout.Size())
	values, err := layout.DecodeRegisters(registers, "i")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"i": int64(0)}, values)

	_, err = layout.DecodeRegisters(registers, "spam")
	assert.ErrorIs(t, err, modbus.ErrVariableNotFound)

	_, err = layout.DecodeRegisters(registers[:3])
	assert.ErrorIs(t, err, modbus.ErrEncoding)
}

func TestRegisterLayoutLoad(t *testing.T) {
	layout := holdingLayout(t)
	two, nineteen := 2, 19
	data := modbus.RegisterLayoutData{
		Variables: []modbus.RegisterVariableData{
			{Name: "str", Type: "str", Length: 5, Address: &two},
			{Name: "i", Type: "i32"},
			{Name: "struct", Type: "struct", Fields: []modbus.FieldData{
				{Name: "CHANGED", Format: "u1"},
				{Name: "ELEMENT_TYPE", Format: "u7"},
				{Name: "ELEMENT_ID", Format: "u5"},
			}, Address: &nineteen},
			{Name: "f", Type: "f16"},
		},
		ByteOrder: "<",
		WordOrder: ">",
	}
	loaded, err := modbus.LoadRegisterLayout(data)
	require.NoError(t, err)
	assert.True(t, loaded.Equal(layout))
}

func TestRegisterLayoutDumpRoundTrip(t *testing.T) {
	layout := holdingLayout(t)
	loaded, err := modbus.LoadRegisterLayout(layout.Dump())
	require.NoError(t, err)
	assert.True(t, loaded.Equal(layout))
	assert.Empty(t, cmp.Diff(layout.Dump(), loaded.Dump()))
}
