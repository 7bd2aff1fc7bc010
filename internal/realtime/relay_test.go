package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func relayHub(t *testing.T, ctx context.Context, addr, instance string) *Hub {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	hub := NewHub()
	relay := NewRelay(client, instance, 16)
	hub.SetRelay(relay)
	go relay.Run(ctx, hub.Deliver)
	return hub
}

func TestRelayDeliversAcrossInstances(t *testing.T) {
	m := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	first := relayHub(t, ctx, m.Addr(), "one")
	second := relayHub(t, ctx, m.Addr(), "two")

	local, remote, sender := newRecorder("local"), newRecorder("remote"), newRecorder("sender")
	first.Join("b1", local)
	first.Join("b1", sender)
	second.Join("b1", remote)

	// the subscription is established asynchronously, so keep emitting
	emitted := 0
	require.Eventually(t, func() bool {
		first.EmitExcept("b1", "sender", EventUserTyping, UserTyping{UserID: "u1"})
		emitted++
		return len(remote.events(EventUserTyping)) > 0
	}, 5*time.Second, 50*time.Millisecond)

	assert.Equal(t, UserTyping{UserID: "u1"}, lastOf[UserTyping](t, remote, EventUserTyping))
	assert.Empty(t, sender.events(EventUserTyping))

	// give any echo of our own frames time to arrive; it must be ignored
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, local.events(EventUserTyping), emitted)
}

func TestRelayIgnoresOwnAndBrokenMessages(t *testing.T) {
	r := NewRelay(nil, "me", 1)
	var delivered []string
	deliver := func(boardID, except string, frame []byte) {
		delivered = append(delivered, boardID+"|"+except+"|"+string(frame))
	}

	own, err := json.Marshal(relayEnvelope{InstanceID: "me", BoardID: "b1", Frame: json.RawMessage(`{}`)})
	require.NoError(t, err)
	other, err := json.Marshal(relayEnvelope{InstanceID: "you", BoardID: "b1", Except: "c1", Frame: json.RawMessage(`{"event":"pong"}`)})
	require.NoError(t, err)

	r.handle(string(own), deliver)
	r.handle("not json", deliver)
	r.handle(string(other), deliver)

	assert.Equal(t, []string{`b1|c1|{"event":"pong"}`}, delivered)
}

func TestRelayPublishNeverBlocks(t *testing.T) {
	r := NewRelay(nil, "me", 1)
	done := make(chan struct{})
	go func() {
		r.Publish("b1", "", []byte(`{}`))
		r.Publish("b1", "", []byte(`{}`))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full outbox")
	}
}

func TestRelayStopEndsRunAndDropsPublishes(t *testing.T) {
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { client.Close() })

	r := NewRelay(client, "me", 4)
	finished := make(chan struct{})
	go func() {
		r.Run(context.Background(), func(string, string, []byte) {})
		close(finished)
	}()

	r.Stop()
	r.Stop()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("Run kept going after Stop")
	}

	r.Publish("b1", "", []byte(`{}`))
	assert.Zero(t, len(r.outbox))
}
