package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedGenerator_ReturnsIDsInOrder(t *testing.T) {
	gen := NewFixedGenerator("device-a", "device-b")

	assert.Equal(t, "device-a", gen.Generate())
	assert.Equal(t, "device-b", gen.Generate())
	assert.Equal(t, "device-b", gen.Generate(), "last id repeats once exhausted")
	assert.Equal(t, 1, gen.Calls())
}

func TestFixedGenerator_Default(t *testing.T) {
	assert.Equal(t, "device-test", NewFixedGenerator().Generate())
}
