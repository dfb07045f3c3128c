package bus

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// MessageBus decouples chat channels from the agent core. The agent
// loop is the sole consumer of the inbound channel; outbound messages
// fan out to per-channel subscribers.
type MessageBus struct {
	inbound             chan InboundMessage
	outbound            chan OutboundMessage
	outboundSubscribers map[string][]func(OutboundMessage)
	subscribersMu       sync.RWMutex
	stopChan            chan struct{}
	stopOnce            sync.Once
}

// NewMessageBus creates a new MessageBus.
func NewMessageBus() *MessageBus {
	return &MessageBus{
		inbound:             make(chan InboundMessage, 100),
		outbound:            make(chan OutboundMessage, 100),
		outboundSubscribers: make(map[string][]func(OutboundMessage)),
		stopChan:            make(chan struct{}),
	}
}

// PublishInbound publishes a message from a channel (or a subagent
// announce) to the agent.
func (b *MessageBus) PublishInbound(msg InboundMessage) {
	select {
	case b.inbound <- msg:
	case <-b.stopChan:
	}
}

// ConsumeInbound returns the channel the agent loop consumes from.
func (b *MessageBus) ConsumeInbound() <-chan InboundMessage {
	return b.inbound
}

// PublishOutbound publishes a response from the agent to channels.
func (b *MessageBus) PublishOutbound(msg OutboundMessage) {
	select {
	case b.outbound <- msg:
	case <-b.stopChan:
	}
}

// SubscribeOutbound subscribes to outbound messages for one channel type.
func (b *MessageBus) SubscribeOutbound(channel string, callback func(OutboundMessage)) {
	b.subscribersMu.Lock()
	defer b.subscribersMu.Unlock()
	b.outboundSubscribers[channel] = append(b.outboundSubscribers[channel], callback)
}

// DispatchOutbound delivers outbound messages to subscribers until the
// bus is stopped. Run it in a goroutine.
func (b *MessageBus) DispatchOutbound() {
	for {
		select {
		case msg := <-b.outbound:
			b.subscribersMu.RLock()
			subscribers := b.outboundSubscribers[msg.Channel()]
			b.subscribersMu.RUnlock()

			if len(subscribers) == 0 {
				logrus.Debugf("No subscriber for outbound channel %q", msg.Channel())
				continue
			}
			for _, cb := range subscribers {
				go func(callback func(OutboundMessage), message OutboundMessage) {
					defer func() {
						if r := recover(); r != nil {
							logrus.Errorf("Outbound subscriber panicked: %v", r)
						}
					}()
					callback(message)
				}(cb, msg)
			}
		case <-b.stopChan:
			return
		}
	}
}

// Stop stops publishing and dispatching.
func (b *MessageBus) Stop() {
	b.stopOnce.Do(func() { close(b.stopChan) })
}
