package hooks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHook struct {
	name string
	sync bool
	fn   func(Payload) (Payload, error)
}

func (h *fakeHook) Name() string { return h.name }
func (h *fakeHook) Sync() bool   { return h.sync }
func (h *fakeHook) Execute(_ context.Context, p Payload) (Payload, error) {
	return h.fn(p)
}

func TestRunNoHooks(t *testing.T) {
	m := NewManager()
	in := &ToolCallPayload{ToolName: "exec", Result: "ok"}

	out, err := m.Run(context.Background(), EventToolPostCall, in)
	require.NoError(t, err)
	assert.Same(t, Payload(in), out)
}

func TestSyncHookRewritesResult(t *testing.T) {
	m := NewManager()
	m.Register(EventToolPostCall, &fakeHook{name: "rewrite", sync: true, fn: func(p Payload) (Payload, error) {
		tc := *(p.(*ToolCallPayload))
		tc.Result = tc.Result + " enriched"
		return &tc, nil
	}})

	out, err := m.Run(context.Background(), EventToolPostCall, &ToolCallPayload{ToolName: "read_file", Result: "content"})
	require.NoError(t, err)
	assert.Equal(t, "content enriched", out.(*ToolCallPayload).Result)
}

func TestSyncHooksRunInOrder(t *testing.T) {
	m := NewManager()
	append_ := func(suffix string) Hook {
		return &fakeHook{name: suffix, sync: true, fn: func(p Payload) (Payload, error) {
			tc := *(p.(*ToolCallPayload))
			tc.Result += suffix
			return &tc, nil
		}}
	}
	m.Register(EventToolPostCall, append_("-a"))
	m.Register(EventToolPostCall, append_("-b"))

	out, err := m.Run(context.Background(), EventToolPostCall, &ToolCallPayload{Result: "x"})
	require.NoError(t, err)
	assert.Equal(t, "x-a-b", out.(*ToolCallPayload).Result)
}

func TestSyncHookErrorPropagates(t *testing.T) {
	m := NewManager()
	m.Register(EventToolPostCall, &fakeHook{name: "boom", sync: true, fn: func(Payload) (Payload, error) {
		return nil, errors.New("boom")
	}})

	in := &ToolCallPayload{Result: "x"}
	out, err := m.Run(context.Background(), EventToolPostCall, in)
	assert.Error(t, err)
	assert.Same(t, Payload(in), out)
}

func TestAsyncHookFailuresSwallowed(t *testing.T) {
	m := NewManager()
	m.Register(EventMessageCompact, &fakeHook{name: "fails", sync: false, fn: func(Payload) (Payload, error) {
		return nil, errors.New("network down")
	}})
	m.Register(EventMessageCompact, &fakeHook{name: "panics", sync: false, fn: func(Payload) (Payload, error) {
		panic("bad hook")
	}})

	out, err := m.Run(context.Background(), EventMessageCompact, &CompactPayload{})
	require.NoError(t, err)
	assert.NotNil(t, out)
}

func TestAsyncResultIgnored(t *testing.T) {
	m := NewManager()
	m.Register(EventToolPostCall, &fakeHook{name: "async-rewrite", sync: false, fn: func(p Payload) (Payload, error) {
		tc := *(p.(*ToolCallPayload))
		tc.Result = "should be ignored"
		return &tc, nil
	}})

	in := &ToolCallPayload{Result: "original"}
	out, err := m.Run(context.Background(), EventToolPostCall, in)
	require.NoError(t, err)
	assert.Equal(t, "original", out.(*ToolCallPayload).Result)
}
