package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogKeepsMessagesPerHandle(t *testing.T) {
	n := NewLog()
	a, b := new(int), new(int)

	n.Error(a, "Connection Error", "Missing protocol plugin", "")
	n.Error(a, "Unable to remove group", "Friends", "it still has members")
	n.Error(b, "Icon", "disk full", "")

	assert.Len(t, n.Open(a), 2)
	assert.Len(t, n.All(), 3)
	assert.Equal(t, "Unable to remove group: Friends (it still has members)", n.Open(a)[1].String())

	n.CloseWithHandle(a)
	assert.Empty(t, n.Open(a))
	assert.Len(t, n.Open(b), 1)
	assert.Equal(t, "Icon: disk full", n.Open(b)[0].String())
}
