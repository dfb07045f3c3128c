package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeNameRoundTrip(t *testing.T) {
	keys := []Key{
		NewKey("telegram", "default", "12345"),
		NewKey("cli", "default", "direct"),
		NewKey("feishu", "app-1", "oc_abc.def"),
		NewKey("dingtalk", "robot", "cid xyz/with:odd_chars"),
		NewKey("telegram", "a_b", "c"),
	}
	for _, key := range keys {
		parsed, err := ParseSafeName(key.SafeName())
		require.NoError(t, err, "key %s", key)
		assert.Equal(t, key, parsed)
	}
}

func TestSafeNameDistinct(t *testing.T) {
	// Underscores inside components must not collide with the
	// component separators
	a := NewKey("a_b", "c", "d")
	b := NewKey("a", "b_c", "d")
	c := NewKey("a", "b", "c_d")
	assert.NotEqual(t, a.SafeName(), b.SafeName())
	assert.NotEqual(t, b.SafeName(), c.SafeName())
	assert.NotEqual(t, a.SafeName(), c.SafeName())
}

func TestParseSafeNameInvalid(t *testing.T) {
	_, err := ParseSafeName("only-one-part")
	assert.Error(t, err)

	_, err = ParseSafeName("a_b_c_d")
	assert.Error(t, err)

	_, err = ParseSafeName("a_b%2_c")
	assert.Error(t, err)
}

func TestIsInteractive(t *testing.T) {
	assert.True(t, CLIKey().IsInteractive())
	assert.True(t, NewKey("tui", "default", "x").IsInteractive())
	assert.False(t, NewKey("telegram", "default", "x").IsInteractive())
}
