package modbus_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	modbus "github.com/Argon343/pretty-modbus"
)

// loopbackLayout declares unit 0 with all four sub-spaces, unit 1 for
// the daemon scenario and unit 3 without any sub-layout.
func loopbackLayout(t *testing.T) *modbus.ServerContextLayout {
	t.Helper()
	holding1, err := modbus.NewRegisterLayout([]modbus.Variable{
		modbus.Number("x", "i16", 2),
		modbus.Number("y", "i16"),
	}, "", "")
	require.NoError(t, err)
	discrete1, err := modbus.NewCoilLayout([]modbus.CoilVariable{modbus.Coil("result", 1, 3)})
	require.NoError(t, err)
	return modbus.NewServerContextLayout(map[int]*modbus.SlaveContextLayout{
		0: {
			HoldingRegisters: holdingLayout(t),
			InputRegisters:   inputLayout(t),
			Coils:            coilLayout(t),
			DiscreteInputs:   discreteLayout(t),
		},
		1: {HoldingRegisters: holding1, DiscreteInputs: discrete1},
		3: {},
	})
}

// compareUnit1 is the daemon job of the loopback scenario.
func compareUnit1(ctx *modbus.LocalContext) error {
	values, err := ctx.GetHoldingRegisters(1)
	if err != nil {
		return err
	}
	result := values["x"].(int64) > values["y"].(int64)
	return ctx.SetDiscreteInputs(1, map[string]any{"result": result})
}

func TestThreadedClientLoopback(t *testing.T) {
	layout := loopbackLayout(t)
	ds := modbus.NewServerDatastore(map[int]*modbus.Datastore{
		0: modbus.NewDatastore(100),
		1: modbus.NewDatastore(100),
	})
	daemon, err := modbus.NewDaemon(compareUnit1, 10*time.Millisecond)
	require.NoError(t, err)
	server := modbus.NewBackgroundServer("127.0.0.1:0", ds, layout, daemon)
	require.NoError(t, server.Start())
	defer server.Stop()

	client := modbus.NewThreadedClientConfig(modbus.Config{
		Mode:     "tcp",
		Endpoint: server.Addr().String(),
		Timeout:  time.Second,
	}, layout)

	// not yet started
	_, err = client.ReadHoldingRegisters(0)
	assert.ErrorIs(t, err, modbus.ErrNotConnected)

	require.NoError(t, client.Start(3*time.Second))

	require.NoError(t, client.WriteHoldingRegisters(0, map[string]any{
		"str":    "hello",
		"i":      12,
		"struct": map[string]any{"CHANGED": 1, "ELEMENT_TYPE": 33, "ELEMENT_ID": 7},
		"f":      3.4,
	}))
	values, err := client.ReadHoldingRegisters(0)
	require.NoError(t, err)
	assert.Equal(t, "hello", values["str"])
	assert.Equal(t, int64(12), values["i"])
	assert.Equal(t, map[string]int64{"CHANGED": 1, "ELEMENT_TYPE": 33, "ELEMENT_ID": 7}, values["struct"])
	assert.InDelta(t, 3.4, values["f"], 1e-3)

	require.NoError(t, client.WriteCoils(0, map[string]any{
		"x": []int{0, 1, 0},
		"y": 1,
		"z": []int{0, 0, 1, 1, 0},
		"v": []int{0, 1},
	}))
	coils, err := client.ReadCoils(0, "x", "y", "z", "v")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"x": []bool{false, true, false},
		"y": true,
		"z": []bool{false, false, true, true, false},
		"v": []bool{false, true},
	}, coils)

	// input registers are untouched and read back as zeros
	inputs, err := client.ReadInputRegisters(0)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": uint64(0), "b": uint64(0), "c": uint64(0)}, inputs)

	// a unit whose layout lacks the coil sub-space, and an undeclared unit
	_, err = client.ReadCoils(3)
	assert.ErrorIs(t, err, modbus.ErrMissingSubLayout)
	_, err = client.ReadCoils(4)
	assert.ErrorIs(t, err, modbus.ErrNoSuchSlaveLayout)

	// the daemon watches unit 1 through the shared datastore
	require.NoError(t, client.WriteHoldingRegisters(1, map[string]any{"x": 9, "y": 4}))
	time.Sleep(150 * time.Millisecond)
	result, err := client.ReadDiscreteInputs(1, "result")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"result": true}, result)

	require.NoError(t, client.WriteHoldingRegisters(1, map[string]any{"x": 3, "y": 5}))
	time.Sleep(150 * time.Millisecond)
	result, err = client.ReadDiscreteInputs(1, "result")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"result": false}, result)

	// variable-addressed write: "i" lives in unit 0's holding registers
	require.NoError(t, client.Write("i", 42))
	value, err := client.ReadHoldingRegister(0, "i")
	require.NoError(t, err)
	assert.Equal(t, int64(42), value)

	// discrete inputs are read-only from the wire side
	assert.Error(t, client.Write("result", true))

	require.NoError(t, client.Stop(3330*time.Millisecond))

	// stopped clients refuse further operations
	_, err = client.ReadHoldingRegisters(0)
	assert.ErrorIs(t, err, modbus.ErrNotConnected)

	require.NoError(t, server.Stop())
}

func TestThreadedClientConnectFailure(t *testing.T) {
	client := modbus.NewThreadedClientConfig(modbus.Config{
		Mode:     "tcp",
		Endpoint: "127.0.0.1:1",
		Timeout:  100 * time.Millisecond,
	}, loopbackLayout(t))
	assert.Error(t, client.Start(time.Second))
}

func TestThreadedClientConfigVerify(t *testing.T) {
	cfg := modbus.Config{Mode: "carrier-pigeon", Endpoint: "coop"}
	assert.ErrorIs(t, cfg.Verify(), modbus.ErrInvalidParameter)
	_, err := cfg.Transport()
	assert.ErrorIs(t, err, modbus.ErrInvalidParameter)

	cfg = modbus.Config{Mode: "tcp"}
	assert.ErrorIs(t, cfg.Verify(), modbus.ErrInvalidParameter)

	cfg = modbus.Config{Mode: "rtu", Endpoint: "/dev/ttyUSB0"}
	assert.NoError(t, cfg.Verify())
}
