package broadcast

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublish_FanOut(t *testing.T) {
	h := NewHub(4)
	a := h.Subscribe("sync")
	b := h.Subscribe("sync")
	other := h.Subscribe("other")
	defer a.Close()
	defer b.Close()
	defer other.Close()

	n := h.Publish("sync", "delivered", 7)
	assert.Equal(t, 2, n)

	for _, s := range []*Subscription{a, b} {
		msg := <-s.C
		assert.Equal(t, Message{Channel: "sync", Kind: "delivered", Data: 7}, msg)
	}
	assert.Len(t, other.C, 0)
}

func TestPublish_NoSubscribers(t *testing.T) {
	h := NewHub(1)
	assert.Equal(t, 0, h.Publish("nobody", "x", nil))
}

func TestPublish_FullSubscriberDrops(t *testing.T) {
	h := NewHub(1)
	s := h.Subscribe("sync")
	defer s.Close()

	assert.Equal(t, 1, h.Publish("sync", "first", nil))
	assert.Equal(t, 0, h.Publish("sync", "second", nil), "publish must not block on a full buffer")

	msg := <-s.C
	assert.Equal(t, "first", msg.Kind)
}

func TestSubscription_Close(t *testing.T) {
	h := NewHub(1)
	s := h.Subscribe("sync")
	require.Equal(t, 1, h.Subscribers("sync"))

	s.Close()
	s.Close()
	assert.Equal(t, 0, h.Subscribers("sync"))

	_, ok := <-s.C
	assert.False(t, ok)
	assert.Equal(t, 0, h.Publish("sync", "late", nil))
}

func TestHub_Close(t *testing.T) {
	h := NewHub(1)
	s := h.Subscribe("sync")
	h.Close()

	_, ok := <-s.C
	assert.False(t, ok)
	s.Close()

	late := h.Subscribe("sync")
	_, ok = <-late.C
	assert.False(t, ok)
	assert.Equal(t, 0, h.Publish("sync", "x", nil))
}

func TestPublish_Concurrent(t *testing.T) {
	h := NewHub(1000)
	s := h.Subscribe("sync")
	defer s.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h.Publish("sync", "tick", j)
			}
		}()
	}
	wg.Wait()
	assert.Len(t, s.C, 500)
}
