package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCell_LastWriteWins(t *testing.T) {
	cell := NewCell()
	assert.Equal(t, "", cell.Get())

	cell.Set("6645")
	assert.Equal(t, "6645", cell.Get())

	// A newer alert supersedes the older one unconditionally.
	cell.Set("9001")
	assert.Equal(t, "9001", cell.Get())

	cell.Set("")
	assert.Equal(t, "", cell.Get())
}
