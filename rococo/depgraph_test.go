package rococo

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDepGraphGetOrCreateIsIdempotent(t *testing.T) {
	g := NewDepGraph()
	v1 := g.GetOrCreate(1)
	v2 := g.GetOrCreate(1)
	assert.Same(t, v1, v2)
	assert.Nil(t, g.Get(2))
}

func TestDepGraphAddEdgeIgnoresSelfEdge(t *testing.T) {
	g := NewDepGraph()
	g.AddEdge(1, 1, EdgeWW)
	v := g.Get(1)
	assert.Nil(t, v, "a pure self-edge must not even create a vertex")
}

func TestDepGraphAncestorsDecided(t *testing.T) {
	g := NewDepGraph()
	g.AddEdge(1, 2, EdgeWW) // 2 depends on 1: AddEdge(from, to) makes to depend on from

	assert.False(t, g.AncestorsDecided(2))
	g.MarkDecided(1)
	assert.True(t, g.AncestorsDecided(2))
}

func TestDepGraphOnAncestorsDecidedFiresImmediatelyWhenReady(t *testing.T) {
	g := NewDepGraph()
	g.GetOrCreate(5)

	fired := false
	g.OnAncestorsDecided(5, func() { fired = true })
	assert.True(t, fired, "a vertex with no ancestors is trivially ready")
}

func TestDepGraphOnAncestorsDecidedFiresAfterMarkDecided(t *testing.T) {
	g := NewDepGraph()
	g.AddEdge(1, 2, EdgeWW)

	fired := false
	g.OnAncestorsDecided(2, func() { fired = true })
	assert.False(t, fired)

	g.MarkDecided(1)
	assert.True(t, fired)
}

func TestDepGraphSCCMembersSingleton(t *testing.T) {
	g := NewDepGraph()
	g.AddEdge(1, 2, EdgeWW)
	members := g.SCCMembers(1)
	assert.Equal(t, []int64{1}, members)
}

func TestDepGraphSCCMembersCycle(t *testing.T) {
	g := NewDepGraph()
	g.AddEdge(1, 2, EdgeWW)
	g.AddEdge(2, 3, EdgeWW)
	g.AddEdge(3, 1, EdgeWW)

	members := g.SCCMembers(2)
	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
	assert.Equal(t, []int64{1, 2, 3}, members)
}

func TestDepGraphSCCMembersUnknownTidReturnsItself(t *testing.T) {
	g := NewDepGraph()
	assert.Equal(t, []int64{42}, g.SCCMembers(42))
}
