package modbus_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	modbus "github.com/Argon343/pretty-modbus"
)

func inputLayout(t *testing.T) *modbus.RegisterLayout {
	t.Helper()
	layout, err := modbus.NewRegisterLayout([]modbus.Variable{
		modbus.Number("a", "u16"),
		modbus.Number("b", "u16"),
		modbus.Number("c", "u16"),
	}, modbus.BigEndian, "")
	require.NoError(t, err)
	return layout
}

func discreteLayout(t *testing.T) *modbus.CoilLayout {
	t.Helper()
	layout, err := modbus.NewCoilLayout([]modbus.CoilVariable{
		modbus.Coil("a", 1),
		modbus.Coil("b", 2),
		modbus.Coil("c", 3),
	})
	require.NoError(t, err)
	return layout
}

func serverLayout(t *testing.T) *modbus.ServerContextLayout {
	t.Helper()
	return modbus.NewServerContextLayout(map[int]*modbus.SlaveContextLayout{
		0: {
			HoldingRegisters: holdingLayout(t),
			InputRegisters:   inputLayout(t),
			Coils:            coilLayout(t),
			DiscreteInputs:   discreteLayout(t),
		},
	})
}

func TestServerContextLayoutLookup(t *testing.T) {
	layout := serverLayout(t)

	sub, err := layout.HoldingRegisterLayout(0)
	require.NoError(t, err)
	assert.Equal(t, 2, sub.Address())

	_, err = layout.HoldingRegisterLayout(1)
	assert.ErrorIs(t, err, modbus.ErrNoSuchSlaveLayout)

	empty := modbus.NewServerContextLayout(map[int]*modbus.SlaveContextLayout{3: {}})
	_, err = empty.CoilLayout(3)
	assert.ErrorIs(t, err, modbus.ErrMissingSubLayout)
	_, err = empty.DiscreteInputLayout(3)
	assert.ErrorIs(t, err, modbus.ErrMissingSubLayout)
	_, err = empty.InputRegisterLayout(3)
	assert.ErrorIs(t, err, modbus.ErrMissingSubLayout)
}

func TestServerContextLayoutFind(t *testing.T) {
	layout := serverLayout(t)

	unit, space, err := layout.Find("str")
	require.NoError(t, err)
	assert.Equal(t, 0, unit)
	assert.Equal(t, modbus.SpaceHoldingRegisters, space)

	unit, space, err = layout.Find("x")
	require.NoError(t, err)
	assert.Equal(t, 0, unit)
	assert.Equal(t, modbus.SpaceCoils, space)

	_, _, err = layout.Find("spam")
	assert.ErrorIs(t, err, modbus.ErrVariableNotFound)
}

func TestServerContextLayoutWhere(t *testing.T) {
	layout := serverLayout(t)

	space, err := layout.Where("i", 0)
	require.NoError(t, err)
	assert.Equal(t, modbus.SpaceHoldingRegisters, space)

	_, err = layout.Where("i", 1)
	assert.ErrorIs(t, err, modbus.ErrNoSuchSlaveLayout)

	_, err = layout.Where("spam", 0)
	assert.ErrorIs(t, err, modbus.ErrVariableNotFound)
}

func TestParseServerLayout(t *testing.T) {
	doc := []byte(`
slaves:
  0:
    holding_registers:
      variables:
        - {name: str, type: str, length: 5, address: 2}
        - {name: i, type: i32}
        - name: struct
          type: struct
          fields:
            - {name: CHANGED, format: u1}
            - {name: ELEMENT_TYPE, format: u7}
            - {name: ELEMENT_ID, format: u5}
          address: 19
        - {name: f, type: f16}
      byteorder: "<"
      wordorder: ">"
    coils:
      - {name: x, size: 3, address: 2}
      - {name: y, address: 7}
      - {name: z, size: 5}
      - {name: u}
      - {name: v, size: 2}
  1:
    discrete_inputs:
      - {name: result, address: 3}
`)
	layout, err := modbus.ParseServerLayout(doc)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, layout.Units())

	holding, err := layout.HoldingRegisterLayout(0)
	require.NoError(t, err)
	assert.True(t, holding.Equal(holdingLayout(t)))

	coils, err := layout.CoilLayout(0)
	require.NoError(t, err)
	assert.True(t, coils.Equal(coilLayout(t)))

	discrete, err := layout.DiscreteInputLayout(1)
	require.NoError(t, err)
	assert.Equal(t, 3, discrete.Address())
	assert.Equal(t, 1, discrete.Size())

	_, err = layout.InputRegisterLayout(0)
	assert.ErrorIs(t, err, modbus.ErrMissingSubLayout)
}

func TestParseServerLayoutInvalid(t *testing.T) {
	_, err := modbus.ParseServerLayout([]byte("slaves: [nonsense"))
	assert.Error(t, err)

	_, err = modbus.ParseServerLayout([]byte(`
slaves:
  0:
    holding_registers:
      variables:
        - {name: a, type: i8}
`))
	assert.ErrorIs(t, err, modbus.ErrUnknownType)
}
