package modbus_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	modbus "github.com/Argon343/pretty-modbus"
)

func coilLayout(t *testing.T) *modbus.CoilLayout {
	t.Helper()
	layout, err := modbus.NewCoilLayout([]modbus.CoilVariable{
		modbus.Coil("x", 3, 2),
		modbus.Coil("y", 1, 7),
		modbus.Coil("z", 5),
		modbus.Coil("u", 1),
		modbus.Coil("v", 2),
	})
	require.NoError(t, err)
	return layout
}

func TestCoilLayoutInitFailure(t *testing.T) {
	cases := []struct {
		name      string
		variables []modbus.CoilVariable
		err       error
	}{
		{
			name: "overlapping addresses",
			variables: []modbus.CoilVariable{
				modbus.Coil("foo", 1, 2),
				modbus.Coil("bar", 77, 2),
			},
			err: modbus.ErrInvalidAddressLayout,
		},
		{
			name: "duplicate name",
			variables: []modbus.CoilVariable{
				modbus.Coil("foo", 2, 2),
				modbus.Coil("foo", 5),
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
			variables: []modbus.CoilVariable{modbus.Coil("foo", 1, -1)},
			err:       modbus.ErrNegativeAddress,
		},
		{
			name:      "zero size",
			variables: []modbus.CoilVariable{modbus.Coil("foo", 0, 77)},
			err:       modbus.ErrInvalidSize,
		},
		{
			name:      "negative size",
			variables: []modbus.CoilVariable{modbus.Coil("foo", -3, 7)},
			err:       modbus.ErrInvalidSize,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := modbus.NewCoilLayout(c.variables)
			assert.ErrorIs(t, err, c.err)
		})
	}
}

func TestCoilLayoutPlacement(t *testing.T) {
	layout := coilLayout(t)
	assert.Equal(t, 2, layout.Address())
	assert.Equal(t, 16, layout.End())
	assert.Equal(t, 14, layout.Size())
}

func TestCoilLayoutBuildPayload(t *testing.T) {
	layout := coilLayout(t)
	payload, err := layout.BuildPayload(map[string]any{
		"x": []int{0, 1, 0},
		"y": 1,
		"z": []int{0, 0, 1, 1, 0},
		"v": []int{0, 1},
	})
	require.NoError(t, err)
	assert.Equal(t, []modbus.CoilChunk{
		{Address: 2, Bits: []bool{false, true, false}},
		{Address: 7, Bits: []bool{true, false, false, true, true, false}},
		{Address: 14, Bits: []bool{false, true}},
	}, payload)
}

func TestCoilLayoutBuildPayloadEmpty(t *testing.T) {
	layout := coilLayout(t)
	payload, err := layout.BuildPayload(map[string]any{})
	require.NoError(t, err)
	assert.Empty(t, payload)
}

func TestCoilLayoutBuildPayloadFailure(t *testing.T) {
	layout := coilLayout(t)
	_, err := layout.BuildPayload(map[string]any{"x": []int{1, 2, 3}, "a": 0})
	assert.ErrorIs(t, err, modbus.ErrVariableNotFound)

	_, err = layout.BuildPayload(map[string]any{"z": []bool{true}})
	assert.ErrorIs(t, err, modbus.ErrEncoding)
}

func TestCoilLayoutDecode(t *testing.T) {
	layout := coilLayout(t)
	payload, err := layout.BuildPayload(map[string]any{
		"x": []bool{false, true, false},
		"y": false,
		"z": []bool{true, false, true, false, false},
		"u": true,
		"v": []bool{true, true},
	})
	require.NoError(t, err)
	bits := make([]bool, layout.End())
	for _, chunk := range payload {
		copy(bits[chunk.Address:], chunk.Bits)
	}
	values, err := layout.DecodeCoils(bits[layout.Address():layout.End()])
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"x": []bool{false, true, false},
		"y": false,
		"z": []bool{true, false, true, false, false},
		"u": true,
		"v": []bool{true, true},
	}, values)
}

func TestCoilLayoutDecodeSubset(t *testing.T) {
	layout := coilLayout(t)
	bits := make([]bool, layout.Size())
	bits[7-2] = true
	values, err := layout.DecodeCoils(bits, "y")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"y": true}, values)

	_, err = layout.DecodeCoils(bits, "spam")
	assert.ErrorIs(t, err, modbus.ErrVariableNotFound)

	_, err = layout.DecodeCoils(bits[:3])
	assert.ErrorIs(t, err, modbus.ErrEncoding)
}

func TestCoilLayoutLoad(t *testing.T) {
	layout := coilLayout(t)
	two, seven := 2, 7
	data := modbus.CoilLayoutData{
		{Name: "x", Size: 3, Address: &two},
		{Name: "y", Address: &seven},
		{Name: "z", Size: 5},
		{Name: "u"},
		{Name: "v", Size: 2},
	}
	loaded, err := modbus.LoadCoilLayout(data)
	require.NoError(t, err)
	assert.True(t, loaded.Equal(layout))
}

func TestCoilLayoutDumpRoundTrip(t *testing.T) {
	layout := coilLayout(t)
	loaded, err := modbus.LoadCoilLayout(layout.Dump())
	require.NoError(t, err)
	assert.True(t, loaded.Equal(layout))
	assert.Empty(t, cmp.Diff(layout.Dump(), loaded.Dump()))
}
