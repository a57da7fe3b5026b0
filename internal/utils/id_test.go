package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSequenceID(t *testing.T) {
	require.NoError(t, InitIDs(1))
	a := NewSequenceID()
	b := NewSequenceID()
	assert.Less(t, a, b)
}
