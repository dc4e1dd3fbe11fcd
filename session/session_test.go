package session

import (
	"net"
	"testing"
	"time"
)

// fakeConn satisfies network.Connection for manager tests.
type fakeConn struct {
	sent   int
	closed bool
}

func (c *fakeConn) SendEvent(event string, data interface{}) error {
	c.sent++
	return nil
}
func (c *fakeConn) Close() error                        { c.closed = true; return nil }
func (c *fakeConn) RemoteAddr() net.Addr                { return nil }
func (c *fakeConn) SetHeartbeat(interval time.Duration) {}
func (c *fakeConn) Listen() error                       { return nil }

func TestManagerAddRemove(t *testing.T) {
	m := NewManager()
	s := NewSession("s1", 1, &fakeConn{})
	m.Add(s)

	if m.Count() != 1 {
		t.Fatalf("count = %d, want 1", m.Count())
	}
	if got, ok := m.Get("s1"); !ok || got != s {
		t.Fatal("Get did not return the added session")
	}

	m.Remove("s1")
	if m.Count() != 0 {
		t.Fatalf("count after remove = %d, want 0", m.Count())
	}
	// Removing twice is a no-op.
	m.Remove("s1")
}

func TestManagerByGame(t *testing.T) {
	m := NewManager()
	m.Add(NewSession("a", 1, &fakeConn{}))
	m.Add(NewSession("b", 1, &fakeConn{}))
	m.Add(NewSession("c", 2, &fakeConn{}))

	if got := len(m.ByGame(1)); got != 2 {
		t.Errorf("ByGame(1) = %d sessions, want 2", got)
	}
	if got := len(m.ByGame(2)); got != 1 {
		t.Errorf("ByGame(2) = %d sessions, want 1", got)
	}
	if got := len(m.ByGame(9)); got != 0 {
		t.Errorf("ByGame(9) = %d sessions, want 0", got)
	}
	if got := len(m.All()); got != 3 {
		t.Errorf("All() = %d sessions, want 3", got)
	}
}

func TestSessionSendTouchesActivity(t *testing.T) {
	conn := &fakeConn{}
	s := NewSession("s1", 1, conn)
	before := s.LastActive

	time.Sleep(time.Millisecond)
	if err := s.Send("standings", nil); err != nil {
		t.Fatal(err)
	}
	if conn.sent != 1 {
		t.Fatalf("sent = %d, want 1", conn.sent)
	}
	if !s.LastActive.After(before) {
		t.Error("Send did not refresh LastActive")
	}
}
