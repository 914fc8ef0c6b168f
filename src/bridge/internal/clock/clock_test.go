package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClock(t *testing.T) {
	c := New()

	before := c.Now()
	c.Sleep(time.Millisecond)
	assert.True(t, c.Now().After(before) || c.Now().Equal(before))

	select {
	case <-c.After(time.Millisecond):
	case <-time.After(time.Second):
		t.Fatal("After channel never fired")
	}
}
