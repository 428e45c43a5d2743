package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscript_Lifecycle(t *testing.T) {
	r := NewRenderer("15:04", fixedClock())
	tr := NewTranscript()
	assert.True(t, tr.Welcome())

	a := r.Render(Text(RoleUser, "one"))
	b := r.Render(Text(RoleAssistant, "two"))
	tr.Append(a)
	tr.Append(b)
	assert.False(t, tr.Welcome())
	assert.Equal(t, 2, tr.size())

	got, ok := tr.Replace(b.ID, "changed")
	require.True(t, ok)
	assert.Equal(t, "changed", got.Body)

	_, ok = tr.Replace("missing", "x")
	assert.False(t, ok)

	assert.True(t, tr.Remove(a.ID))
	assert.False(t, tr.Remove(a.ID))
	nodes := tr.Nodes()
	require.Len(t, nodes, 1)
	assert.Equal(t, b.ID, nodes[0].ID)

	tr.Reset()
	assert.True(t, tr.Welcome())
	assert.Zero(t, tr.size())
}

func TestTranscript_OneNodePerRender(t *testing.T) {
	r := NewRenderer("15:04", fixedClock())
	tr := NewTranscript()
	for i := 0; i < 5; i++ {
		before := tr.size()
		tr.Append(r.Render(Text(RoleUser, "m")))
		assert.Equal(t, before+1, tr.size())
	}
}

func TestTranscript_ReaugmentAll(t *testing.T) {
	tr := NewTranscript()
	tr.Append(Node{ID: "raw", Role: RoleAssistant, Body: "<pre><code>x</code></pre>"})
	tr.Append(Node{ID: "text", Role: RoleUser, Body: "plain"})

	changed := tr.ReaugmentAll()
	require.Len(t, changed, 1)
	assert.Equal(t, "raw", changed[0].ID)
	assert.Empty(t, tr.ReaugmentAll())
}
