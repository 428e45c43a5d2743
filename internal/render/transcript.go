package render

import "sync"

// Transcript is the ordered message view. It starts in the welcome state
// and leaves it on the first append; nodes are never reordered.
type Transcript struct {
	mu      sync.Mutex
	nodes   []Node
	welcome bool
}

// NewTranscript returns an empty transcript in the welcome state.
func NewTranscript() *Transcript {
	return &Transcript{welcome: true}
}

// Append adds n at the end.
func (t *Transcript) Append(n Node) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes = append(t.nodes, n)
	t.welcome = false
}

// Replace swaps the body of node id. It reports false when the node is gone,
// e.g. because the view was reset while a request was in flight.
func (t *Transcript) Replace(id, body string) (Node, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.nodes {
		if t.nodes[i].ID == id {
			t.nodes[i].Body = body
			return t.nodes[i], true
		}
	}
	return Node{}, false
}

// Remove deletes node id.
func (t *Transcript) Remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.nodes {
		if t.nodes[i].ID == id {
			t.nodes = append(t.nodes[:i], t.nodes[i+1:]...)
			return true
		}
	}
	return false
}

// Reset empties the transcript and returns it to the welcome state.
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes = nil
	t.welcome = true
}

// Welcome reports whether the welcome state is showing.
func (t *Transcript) Welcome() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.welcome
}

// size returns the number of nodes.
func (t *Transcript) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.nodes)
}

// Find returns node id.
func (t *Transcript) Find(id string) (Node, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, n := range t.nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Nodes returns a copy of all nodes in order.
func (t *Transcript) Nodes() []Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Node, len(t.nodes))
	copy(out, t.nodes)
	return out
}

// ReaugmentAll runs the code-block pass over every node again and returns
// the nodes whose body changed.
func (t *Transcript) ReaugmentAll() []Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	var changed []Node
	for i := range t.nodes {
		body := Augment(t.nodes[i].Body)
		if body != t.nodes[i].Body {
			t.nodes[i].Body = body
			changed = append(changed, t.nodes[i])
		}
	}
	return changed
}
