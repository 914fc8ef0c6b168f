package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineRoundTrip(t *testing.T) {
	for _, line := range []int{0, 1, 41, 999} {
		assert.Equal(t, line, AdapterToClientLine(ClientToAdapterLine(line)))
	}
}

func TestColumnRoundTrip(t *testing.T) {
	for _, col := range []int{0, 1, 7, 200} {
		assert.Equal(t, col, AdapterToClientColumn(ClientToAdapterColumn(col)))
	}
}

func TestClientToAdapterLine(t *testing.T) {
	assert.Equal(t, 1, ClientToAdapterLine(0))
	assert.Equal(t, 11, ClientToAdapterLine(10))
}

func TestAdapterToClientLine(t *testing.T) {
	assert.Equal(t, 0, AdapterToClientLine(1))
	assert.Equal(t, 6, AdapterToClientLine(7))
}
