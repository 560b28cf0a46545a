package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDebugEnabled(t *testing.T) {
	assert.False(t, DebugEnabled(false))
	assert.Equal(t, Debug, DebugEnabled(true))
}
