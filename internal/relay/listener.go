package relay

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

var ErrListenerStopped = errors.New("relay listener is not running")

const defaultInboxSize = 64

// Listener is the relay channel. Published messages are handed to the handler
// one at a time on a single goroutine, in arrival order.
type Listener struct {
	log     *zap.Logger
	handler func(msg Message) error
	inbox   chan Message

	mu            sync.Mutex
	stopListening chan struct{}
	wg            *sync.WaitGroup
}

func NewListener(logger *zap.Logger, handler func(msg Message) error) *Listener {
	return &Listener{
		log:     logger,
		handler: handler,
		inbox:   make(chan Message, defaultInboxSize),
		wg:      &sync.WaitGroup{},
	}
}

func (l *Listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopListening != nil {
		return errors.New("relay listener already started")
	}
	if l.handler == nil {
		return errors.New("relay listener has no handler")
	}

	l.stopListening = make(chan struct{})
	l.wg.Add(1)
	go l.listenLoop(l.stopListening)

	return nil
}

func (l *Listener) Stop() error {
	l.mu.Lock()
	stop := l.stopListening
	l.stopListening = nil
	l.mu.Unlock()

	if stop == nil {
		return ErrListenerStopped
	}

	close(stop)
	l.log.Info("waiting for the relay listener to finish...")
	l.wg.Wait()
	l.log.Info("relay listener finished")

	return nil
}

// Publish enqueues a message, blocking while the inbox is full.
func (l *Listener) Publish(ctx context.Context, msg Message) error {
	l.mu.Lock()
	stop := l.stopListening
	l.mu.Unlock()

	if stop == nil {
		return ErrListenerStopped
	}

	select {
	case l.inbox <- msg:
		return nil
	case <-stop:
		return ErrListenerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Listener) listenLoop(stop chan struct{}) {
	defer l.wg.Done()
	l.log.Info("start listening on relay messages")

	for {
		select {
		case <-stop:
			return
		case msg := <-l.inbox:
			l.log.Debug("relay message received", zap.String("tag", msg.Tag))

			if err := l.handler(msg); err != nil {
				l.log.Warn("relay message dropped: "+err.Error(), zap.String("tag", msg.Tag))
			}
		}
	}
}
