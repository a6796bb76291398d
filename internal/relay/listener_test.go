package relay_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"poll-voting/internal/relay"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestListenerDeliversInOrder(t *testing.T) {
	var (
		mu       sync.Mutex
		received []string
	)
	done := make(chan struct{})
	listener := relay.NewListener(zap.NewNop(), func(msg relay.Message) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, msg.Tag)
		if len(received) == 3 {
			close(done)
		}
		if msg.Tag == "b" {
			return errors.New("dropped")
		}
		return nil
	})

	require.NoError(t, listener.Start())
	assert.Error(t, listener.Start())

	for _, tag := range []string{"a", "b", "c"} {
		require.NoError(t, listener.Publish(context.TODO(), relay.Message{Tag: tag}))
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("messages were not delivered")
	}
	require.NoError(t, listener.Stop())

	mu.Lock()
	assert.Equal(t, []string{"a", "b", "c"}, received)
	mu.Unlock()
}

func TestListenerStopped(t *testing.T) {
	listener := relay.NewListener(zap.NewNop(), func(relay.Message) error { return nil })

	err := listener.Publish(context.TODO(), relay.Message{Tag: "a"})
	assert.ErrorIs(t, err, relay.ErrListenerStopped)
	assert.ErrorIs(t, listener.Stop(), relay.ErrListenerStopped)

	require.NoError(t, listener.Start())
	require.NoError(t, listener.Stop())
	assert.ErrorIs(t, listener.Publish(context.TODO(), relay.Message{Tag: "a"}), relay.ErrListenerStopped)
}

func TestListenerWithoutHandler(t *testing.T) {
	assert.Error(t, relay.NewListener(zap.NewNop(), nil).Start())
}
