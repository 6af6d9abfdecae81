package broadcast

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
)

// fakeSub collects sent messages; it can be told to fail sends.
type fakeSub struct {
	mu       sync.Mutex
	messages [][]byte
	sendErr  error
	closed   bool
}

func (s *fakeSub) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.messages = append(s.messages, data)
	return nil
}

func (s *fakeSub) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSub) received() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *fakeSub) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func TestHubRegisterUnregister(t *testing.T) {
	h := NewHub(nil)
	a, b := &fakeSub{}, &fakeSub{}

	h.Register(a, "alice")
	h.Register(b, "bob")
	if h.Count() != 2 {
		t.Errorf("Count() = %d, want 2", h.Count())
	}

	h.Unregister(a)
	if h.Count() != 1 {
		t.Errorf("Count() = %d, want 1", h.Count())
	}

	// Double unregister is a no-op.
	h.Unregister(a)
	if h.Count() != 1 {
		t.Errorf("Count() = %d after double unregister, want 1", h.Count())
	}
}

func TestHubPublishFanOut(t *testing.T) {
	h := NewHub(nil)
	a, b := &fakeSub{}, &fakeSub{}
	h.Register(a, "alice")
	h.Register(b, "bob")

	h.Publish(map[string]int{"flightId": 7})

	if a.received() != 1 || b.received() != 1 {
		t.Errorf("received = (%d, %d), want (1, 1)", a.received(), b.received())
	}

	var decoded map[string]int
	if err := json.Unmarshal(a.messages[0], &decoded); err != nil {
		t.Fatalf("published payload is not JSON: %v", err)
	}
	if decoded["flightId"] != 7 {
		t.Errorf("payload = %v", decoded)
	}
}

func TestHubPublishPrunesStaleSubscriber(t *testing.T) {
	h := NewHub(nil)
	healthy := &fakeSub{}
	stale := &fakeSub{sendErr: errors.New("broken pipe")}
	h.Register(healthy, "alice")
	h.Register(stale, "ghost")

	h.Publish("ping")

	if h.Count() != 1 {
		t.Errorf("Count() = %d after pruning, want 1", h.Count())
	}
	if !stale.isClosed() {
		t.Error("stale subscriber not closed")
	}
	if healthy.received() != 1 {
		t.Errorf("healthy subscriber received %d messages, want 1", healthy.received())
	}

	// Subsequent publishes only reach the survivor.
	h.Publish("ping")
	if healthy.received() != 2 {
		t.Errorf("healthy subscriber received %d messages, want 2", healthy.received())
	}
}

func TestHubPublishNoSubscribers(t *testing.T) {
	h := NewHub(nil)
	h.Publish("nobody is listening") // must not panic
}

func TestHubPublishUnmarshalableValue(t *testing.T) {
	h := NewHub(nil)
	sub := &fakeSub{}
	h.Register(sub, "alice")

	h.Publish(make(chan int)) // not JSON-serializable

	if sub.received() != 0 {
		t.Errorf("subscriber received %d messages for an unserializable value", sub.received())
	}
	if h.Count() != 1 {
		t.Error("marshal failure must not evict subscribers")
	}
}

func TestHubCloseAll(t *testing.T) {
	h := NewHub(nil)
	a, b := &fakeSub{}, &fakeSub{}
	h.Register(a, "alice")
	h.Register(b, "bob")

	h.CloseAll()

	if h.Count() != 0 {
		t.Errorf("Count() = %d after CloseAll, want 0", h.Count())
	}
	if !a.isClosed() || !b.isClosed() {
		t.Error("subscribers not closed")
	}
}

func TestHubConcurrentPublishAndChurn(t *testing.T) {
	h := NewHub(nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				sub := &fakeSub{}
				h.Register(sub, "churn")
				h.Publish(j)
				h.Unregister(sub)
			}
		}()
	}
	wg.Wait()

	if h.Count() != 0 {
		t.Errorf("Count() = %d after churn, want 0", h.Count())
	}
}
