package scpi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAddress(t *testing.T) {

	assert := assert.New(t)

	addr, err := ParseAddress("192.168.1.50:5025")
	assert.NoError(err)
	assert.Equal("192.168.1.50:5025", addr.String())
	assert.Equal(uint16(5025), addr.Port())

	addr, err = ParseAddress(" [::1]:5025 ")
	assert.NoError(err)
	assert.Equal(uint16(5025), addr.Port())

	for _, invalid := range []string{"", "localhost:5025", "192.168.1.50", "192.168.1.50:", "192.168.1.300:5025", "10.0.0.1:70000"} {
		_, err := ParseAddress(invalid)
		assert.ErrorIs(err, ErrInvalidAddress, invalid)
	}
}

func TestJoinAddress(t *testing.T) {

	assert := assert.New(t)

	assert.Equal("10.0.0.7:5025", JoinAddress("10.0.0.7", "5025"))
	assert.Equal("[fe80::1]:5025", JoinAddress("fe80::1", " 5025"))

	_, err := ParseAddress(JoinAddress("10.0.0.7", "port"))
	assert.Error(err)
}
