package hub

import (
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/chatwave/backend/internal/models"
)

// fakeSender records delivered payloads and can be made to fail.
type fakeSender struct {
	mu       sync.Mutex
	payloads [][]byte
	sendErr  error
	closed   bool
}

func (f *fakeSender) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakeSender) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeSender) delivered() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func (f *fakeSender) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func TestMembersTracksRegistrations(t *testing.T) {
	h := New()

	h.Register(7, 1, &fakeSender{})
	h.Register(7, 2, &fakeSender{})
	h.Register(9, 3, &fakeSender{})

	if got, want := h.Members(7), []int64{1, 2}; !slices.Equal(got, want) {
		t.Errorf("Members(7) = %v, want %v", got, want)
	}
	if got, want := h.Members(9), []int64{3}; !slices.Equal(got, want) {
		t.Errorf("Members(9) = %v, want %v", got, want)
	}

	h.Unregister(7, 1)
	if got, want := h.Members(7), []int64{2}; !slices.Equal(got, want) {
		t.Errorf("Members(7) after unregister = %v, want %v", got, want)
	}
}

func TestUnregisterAbsentPairIsNoOp(t *testing.T) {
	h := New()

	h.Unregister(7, 1)

	h.Register(7, 2, &fakeSender{})
	h.Unregister(7, 99)
	if got, want := h.Members(7), []int64{2}; !slices.Equal(got, want) {
		t.Errorf("Members(7) = %v, want %v", got, want)
	}
}

func TestEmptyChannelIsPruned(t *testing.T) {
	h := New()

	h.Register(7, 1, &fakeSender{})
	h.Unregister(7, 1)

	h.mu.RLock()
	_, exists := h.channels[7]
	h.mu.RUnlock()

	if exists {
		t.Fatal("expected channel entry to be removed after last member left")
	}
	if got := h.Members(7); len(got) != 0 {
		t.Errorf("Members(7) = %v, want empty", got)
	}
}

func TestRegisterReplacesAndClosesPrior(t *testing.T) {
	h := New()
	first := &fakeSender{}
	second := &fakeSender{}

	h.Register(7, 1, first)
	h.Register(7, 1, second)

	if got, want := h.Members(7), []int64{1}; !slices.Equal(got, want) {
		t.Errorf("Members(7) = %v, want %v", got, want)
	}
	if !first.isClosed() {
		t.Error("superseded connection should have been closed")
	}
	if second.isClosed() {
		t.Error("replacement connection should not be closed")
	}

	snapshot := h.Snapshot(7)
	if snapshot[1] != Sender(second) {
		t.Error("registry should hold the most recent connection")
	}
}

func TestReleaseOnlyRemovesOwnConnection(t *testing.T) {
	h := New()
	old := &fakeSender{}
	replacement := &fakeSender{}

	h.Register(7, 1, old)
	h.Register(7, 1, replacement)

	// The evicted session's cleanup must not remove its successor.
	if h.Release(7, 1, old) {
		t.Error("Release should report false for a superseded connection")
	}
	if !h.IsOnline(1, 7) {
		t.Error("user should still be online via the replacement connection")
	}

	if !h.Release(7, 1, replacement) {
		t.Error("Release should report true for the current connection")
	}
	if h.IsOnline(1, 7) {
		t.Error("user should be offline after releasing the current connection")
	}
}

func TestIsOnline(t *testing.T) {
	h := New()

	if h.IsOnline(1, 7) {
		t.Error("IsOnline should be false before registration")
	}

	h.Register(7, 1, &fakeSender{})
	if !h.IsOnline(1, 7) {
		t.Error("IsOnline should be true after registration")
	}
	if h.IsOnline(1, 9) {
		t.Error("IsOnline should be scoped to the channel")
	}
}

func TestBroadcastDeliversToAllMembers(t *testing.T) {
	h := New()
	a := &fakeSender{}
	b := &fakeSender{}

	h.Register(7, 1, a)
	h.Register(7, 2, b)

	h.Broadcast(7, models.Event{Type: models.EventMessage, Content: "hi", ChannelID: 7}, NoExclusion)

	if a.delivered() != 1 || b.delivered() != 1 {
		t.Errorf("deliveries = (%d, %d), want (1, 1)", a.delivered(), b.delivered())
	}
	if string(a.payloads[0]) != string(b.payloads[0]) {
		t.Error("all members should receive the identical payload")
	}
}

func TestBroadcastExcludesUser(t *testing.T) {
	h := New()
	a := &fakeSender{}
	b := &fakeSender{}

	h.Register(7, 1, a)
	h.Register(7, 2, b)

	h.Broadcast(7, models.Event{Type: models.EventUserLeft, ChannelID: 7}, 1)

	if a.delivered() != 0 {
		t.Errorf("excluded member received %d deliveries, want 0", a.delivered())
	}
	if b.delivered() != 1 {
		t.Errorf("other member received %d deliveries, want 1", b.delivered())
	}
}

func TestBroadcastPrunesFailingMember(t *testing.T) {
	h := New()
	healthy := &fakeSender{}
	broken := &fakeSender{sendErr: errors.New("peer gone")}

	h.Register(7, 1, healthy)
	h.Register(7, 2, broken)
	h.Register(7, 3, &fakeSender{})

	h.Broadcast(7, models.Event{Type: models.EventMessage, Content: "hi", ChannelID: 7}, NoExclusion)

	if healthy.delivered() != 1 {
		t.Error("failure on one member must not prevent delivery to the others")
	}
	if got, want := h.Members(7), []int64{1, 3}; !slices.Equal(got, want) {
		t.Errorf("Members(7) after prune = %v, want %v", got, want)
	}
	if !broken.isClosed() {
		t.Error("pruned connection should be closed")
	}
}

func TestBroadcastToEmptyChannel(t *testing.T) {
	h := New()
	// Must not panic.
	h.Broadcast(42, models.Event{Type: models.EventMessage, ChannelID: 42}, NoExclusion)
}

func TestConcurrentRegisterBroadcastUnregister(t *testing.T) {
	h := New()
	var wg sync.WaitGroup

	for i := int64(0); i < 50; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			s := &fakeSender{}
			h.Register(7, userID, s)
			h.Broadcast(7, models.Event{Type: models.EventMessage, ChannelID: 7}, NoExclusion)
			h.Members(7)
			h.IsOnline(userID, 7)
			h.Unregister(7, userID)
		}(i)
	}

	wg.Wait()

	if got := h.Members(7); len(got) != 0 {
		t.Errorf("Members(7) = %v, want empty after all unregistered", got)
	}
}
