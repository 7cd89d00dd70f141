package hub

import (
	"testing"
)

func TestConnSendAfterClose(t *testing.T) {
	c := NewConn(nil)
	c.Close()

	if err := c.Send([]byte("hi")); err != ErrConnClosed {
		t.Errorf("Send after Close = %v, want ErrConnClosed", err)
	}
}

func TestConnCloseIsIdempotent(t *testing.T) {
	c := NewConn(nil)
	c.Close()
	// Must not panic on double close.
	c.Close()
}

func TestConnSendFailsWhenBufferFull(t *testing.T) {
	c := NewConn(nil)
	defer c.Close()

	// Without a running write pump nothing drains the queue.
	for i := 0; i < sendBufferSize; i++ {
		if err := c.Send([]byte("x")); err != nil {
			t.Fatalf("Send %d failed early: %v", i, err)
		}
	}

	if err := c.Send([]byte("overflow")); err != ErrSendBufferFull {
		t.Errorf("Send on full buffer = %v, want ErrSendBufferFull", err)
	}
}

func TestConnIDsAreUnique(t *testing.T) {
	a := NewConn(nil)
	b := NewConn(nil)
	if a.ID == b.ID {
		t.Error("connection IDs should be unique per instance")
	}
}
