package util_test

import (
	"kslab/internal/util"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Dump(t *testing.T) {
	data := make([]byte, 40)
	data[0] = 0x62
	data[1] = 0x61
	data[2] = 0x6c
	data[3] = 0x73

	out := util.Dump(data, 0x20000)
	assert.Contains(t, out, "0000000000020000")
	assert.Contains(t, out, "0000000000020020")
	assert.Contains(t, out, "736c6162")
	// header + 2 rows + footer
	assert.Equal(t, 6, strings.Count(out, "\n"))
}

func Test_Hash(t *testing.T) {
	assert.Equal(t, util.Hash(42), util.Hash(42))
	assert.NotEqual(t, util.Hash(1), util.Hash(2))
	assert.NotEqual(t, uint64(0), util.Hash(1))
}
