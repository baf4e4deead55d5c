package service

import (
	"strings"
	"testing"

	"github.com/berfenger/scpiconsole/pkg/scpi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const TEST_CATALOG = `
device: {address: "127.0.0.1:5025", channels: 2}
commands:
  - {name: Output, channel: true, scpi: "OUTP<CH> ", values: ["ON", "OFF"]}
  - {name: Display, channel: false, scpi: "DISP:TEXT ", values: ["\"<TXT>\""]}
  - {name: Identify, channel: false, scpi: "*IDN?", values: [""]}
`

func testResolver(t *testing.T) *CommandResolver {
	t.Helper()
	catalog, err := scpi.ParseCatalog(strings.NewReader(TEST_CATALOG), "yaml")
	require.NoError(t, err)
	return NewCommandResolver(catalog)
}

func ptr[T any](v T) *T {
	return &v
}

func TestResolveByName(t *testing.T) {

	assert := assert.New(t)

	r := testResolver(t)

	cmd, err := r.Resolve(CommandRequest{Command: "Output", Channel: 2, Argument: ptr("OFF")})
	assert.NoError(err)
	assert.Equal("OUTP2 OFF\n", cmd)

	cmd, err = r.Resolve(CommandRequest{Command: "Display", Freetext: "RUNNING"})
	assert.NoError(err)
	assert.Equal("DISP:TEXT \"RUNNING\"\n", cmd)

	cmd, err = r.Resolve(CommandRequest{Command: "Identify"})
	assert.NoError(err)
	assert.Equal("*IDN?\n", cmd)
}

func TestResolveDefaults(t *testing.T) {

	assert := assert.New(t)

	r := testResolver(t)

	cmd, err := r.Resolve(CommandRequest{Command: "Output"})
	assert.NoError(err)
	assert.Equal("OUTP1 ON\n", cmd, "channel 1 and first value")

	cmd, err = r.Resolve(CommandRequest{Command: "Output", Argument: ptr("")})
	assert.NoError(err)
	assert.Equal("OUTP1 \n", cmd, "an explicit empty argument is kept")
}

func TestResolveRaw(t *testing.T) {

	assert := assert.New(t)

	r := testResolver(t)

	cmd, err := r.Resolve(CommandRequest{Raw: "SYST:ERR?", Command: "Output"})
	assert.NoError(err)
	assert.Equal("SYST:ERR?\n", cmd)
}

func TestResolveUnknown(t *testing.T) {

	assert := assert.New(t)

	r := testResolver(t)

	_, err := r.Resolve(CommandRequest{Command: "Nope"})
	assert.ErrorIs(err, ErrUnknownCommand)
}
