package webui

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmaker/homectl/pkg/ui"
)

func TestHubRegisterUnregister(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	c := &client{send: make(chan []byte, 16)}
	hub.register <- c
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, time.Millisecond)

	hub.unregister <- c
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, time.Millisecond)
}

func TestHubObserverBroadcast(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	c1 := &client{send: make(chan []byte, 16)}
	c2 := &client{send: make(chan []byte, 16)}
	hub.register <- c1
	hub.register <- c2

	hub.Observer()(ui.Event{Control: "home/1/brightness", Kind: ui.KindSlider, Value: 42})

	for _, c := range []*client{c1, c2} {
		select {
		case data := <-c.send:
			var msg Message
			require.NoError(t, json.Unmarshal(data, &msg))
			assert.Equal(t, TypeControl, msg.Type)
			require.NotNil(t, msg.Control)
			assert.Equal(t, "home/1/brightness", msg.Control.Control)
			assert.Equal(t, 42.0, msg.Control.Value)
		case <-time.After(time.Second):
			t.Fatal("client did not receive broadcast")
		}
	}
}

func TestHubSlowClientEviction(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	slow := &client{send: make(chan []byte)}
	hub.register <- slow
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, time.Millisecond)

	hub.Broadcast(Message{Type: TypeControl})
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, time.Millisecond)

	_, open := <-slow.send
	assert.False(t, open, "evicted client channel is closed")
}

func TestHubStopClosesClients(t *testing.T) {
	hub := NewHub(nil)
	done := make(chan struct{})
	go func() {
		hub.Run()
		close(done)
	}()

	c := &client{send: make(chan []byte, 1)}
	hub.register <- c
	hub.Stop()
	hub.Stop()
	<-done

	_, open := <-c.send
	assert.False(t, open)
}
