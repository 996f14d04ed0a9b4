package nats

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	m, err := decode([]byte(`{"id":"n1","type":"outbid","user_id":"alice.smith","item_id":"i1","amount":"105"}`))
	require.NoError(t, err)
	assert.Equal(t, "alice.smith", m.UserID, "routed by payload, not by the sanitized subject")
	assert.Equal(t, "outbid", m.Type)

	_, err = decode([]byte(`{"id":"n2","type":"outbid"}`))
	assert.Error(t, err)

	_, err = decode([]byte(`{`))
	assert.Error(t, err)
}

func TestListen(t *testing.T) {
	msgs := make(chan *nats.Msg, 4)
	sub := &Subscriber{msgs: msgs}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan *Message, 4)
	done := make(chan error, 1)
	go func() { done <- sub.Listen(ctx, out) }()

	msgs <- &nats.Msg{Subject: "notifications.outbid.bob", Data: []byte(`not json`)}
	msgs <- &nats.Msg{Subject: "notifications.reserve_met.sam", Data: []byte(`{"type":"reserve_met","user_id":"sam"}`)}

	select {
	case m := <-out:
		assert.Equal(t, "sam", m.UserID)
		assert.Equal(t, "reserve_met", m.Type)
	case <-time.After(time.Second):
		t.Fatal("no notification forwarded")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Listen did not return after cancel")
	}
	assert.Empty(t, out)
	assert.NoError(t, sub.Close())
}
