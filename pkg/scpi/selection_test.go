package scpi

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestCatalog(t *testing.T) *Configuration {
	t.Helper()
	cfg, err := LoadCatalog(filepath.Join("testdata", "psu.yaml"))
	require.NoError(t, err)
	return cfg
}

func TestSelectionStartsOnFirstCommand(t *testing.T) {

	assert := assert.New(t)

	cfg := loadTestCatalog(t)
	sel := NewSelection(cfg)

	assert.True(sel.Selected().Equal(cfg.Commands[0]))
	assert.Equal(DEFAULT_CHANNEL, sel.Channel())
	assert.Equal("ON", sel.Argument())
	assert.Equal("", sel.Freetext())
	assert.Equal("OUTP1 ON\n", sel.Command())
	assert.Equal([]uint8{1, 2, 3}, sel.Channels())
	assert.Equal([]string{"ON", "OFF"}, sel.Arguments())
	assert.Len(sel.Commands(), 5)
}

func TestSelectionCommandChangeResetsArgument(t *testing.T) {

	assert := assert.New(t)

	cfg := loadTestCatalog(t)
	sel := NewSelection(cfg)

	sel.SelectArgument("OFF")
	sel.SelectChannel(2)
	assert.Equal("OUTP2 OFF\n", sel.Command())

	sel.SelectCommand(cfg.Commands[1])
	assert.Equal("<TXT>", sel.Argument())
	assert.True(sel.NeedsFreetext())
	assert.Equal("SOUR2:VOLT \n", sel.Command(), "empty freetext")

	sel.SetFreetext("12.5")
	assert.Equal("SOUR2:VOLT 12.5\n", sel.Command())

	sel.SelectArgument("MAX")
	assert.False(sel.NeedsFreetext())
	assert.Equal("SOUR2:VOLT MAX\n", sel.Command())
}

func TestSelectionIsPermissive(t *testing.T) {

	assert := assert.New(t)

	cfg := loadTestCatalog(t)
	sel := NewSelection(cfg)

	// neither the channel count nor the allowed values are enforced
	sel.SelectChannel(200)
	sel.SelectArgument("BLINK")
	assert.Equal("OUTP200 BLINK\n", sel.Command())
}

func TestSelectionGlobalCommand(t *testing.T) {

	assert := assert.New(t)

	cfg := loadTestCatalog(t)
	sel := NewSelection(cfg)

	sel.SelectChannel(3)
	sel.SelectCommand(cfg.Commands[4])
	assert.Equal("*IDN?\n", sel.Command())

	sel.SelectCommand(cfg.Commands[2])
	sel.SetFreetext("HELLO")
	assert.Equal("DISP:TEXT \"HELLO\"\n", sel.Command())
}
