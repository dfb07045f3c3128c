package bus

import (
	"testing"
	"time"

	"github.com/ZaynJarvis/vikingbot/pkg/session"
	"github.com/stretchr/testify/assert"
)

func TestInboundRoundTrip(t *testing.T) {
	b := NewMessageBus()
	defer b.Stop()

	b.PublishInbound(InboundMessage{
		Kind:       KindUser,
		SessionKey: session.NewKey("telegram", "default", "1"),
		Content:    "hello",
	})

	select {
	case msg := <-b.ConsumeInbound():
		assert.Equal(t, KindUser, msg.Kind)
		assert.Equal(t, "hello", msg.Content)
	case <-time.After(time.Second):
		t.Fatal("no inbound message received")
	}
}

func TestDispatchOutboundRoutesByChannelType(t *testing.T) {
	b := NewMessageBus()
	defer b.Stop()

	telegram := make(chan OutboundMessage, 1)
	feishu := make(chan OutboundMessage, 1)
	b.SubscribeOutbound("telegram", func(m OutboundMessage) { telegram <- m })
	b.SubscribeOutbound("feishu", func(m OutboundMessage) { feishu <- m })
	go b.DispatchOutbound()

	b.PublishOutbound(OutboundMessage{
		SessionKey: session.NewKey("telegram", "default", "7"),
		Content:    "for telegram",
	})

	select {
	case msg := <-telegram:
		assert.Equal(t, "for telegram", msg.Content)
	case <-time.After(time.Second):
		t.Fatal("telegram subscriber not called")
	}
	select {
	case <-feishu:
		t.Fatal("feishu subscriber called for telegram message")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDispatchSurvivesPanickingSubscriber(t *testing.T) {
	b := NewMessageBus()
	defer b.Stop()

	got := make(chan string, 2)
	b.SubscribeOutbound("cli", func(OutboundMessage) { panic("boom") })
	b.SubscribeOutbound("cli", func(m OutboundMessage) { got <- m.Content })
	go b.DispatchOutbound()

	b.PublishOutbound(OutboundMessage{SessionKey: session.CLIKey(), Content: "first"})
	b.PublishOutbound(OutboundMessage{SessionKey: session.CLIKey(), Content: "second"})

	var contents []string
	for i := 0; i < 2; i++ {
		select {
		case c := <-got:
			contents = append(contents, c)
		case <-time.After(time.Second):
			t.Fatal("subscriber starved after panic")
		}
	}
	assert.ElementsMatch(t, []string{"first", "second"}, contents)
}

func TestPublishAfterStopDoesNotBlock(t *testing.T) {
	b := NewMessageBus()
	b.Stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			b.PublishInbound(InboundMessage{Content: "x"})
			b.PublishOutbound(OutboundMessage{Content: "y"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked after Stop")
	}
}
