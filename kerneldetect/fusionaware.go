package kerneldetect

import (
	"strings"

	"github.com/Andyyoung0507/nn-Meter/graphir"
	"github.com/Andyyoung0507/nn-Meter/internal/utils"
)

// BasicBlock is one kernel of the final partition: the set of original node
// names executing as one fused unit, plus its type label -- the fusion-unit
// name for a pre-fused template, the node's own type for a singleton, or the
// member types joined in fusion order otherwise.
type BasicBlock struct {
	Type  string
	Nodes []string
}

// FusionAwareGraph is a stateful view over a graph for the lifetime of one
// split run. Positions index the graph's traversal order; block membership is
// a union-find whose root is always the earliest position of the block.
//
// Once a position is fused it is never revisited as a fusion source, and
// readiness is a one-way flag.
type FusionAwareGraph struct {
	graph *graphir.Graph
	order []string

	parent []int
	fused  []bool
	ready  []bool

	// Per root position: outbound positions of the whole block, the block's
	// effective op type (the tail of the fused chain), and the member types
	// in fusion order.
	outs   [][]int
	types  []string
	labels [][]string
}

// NewFusionAwareGraph captures the traversal order and per-node outbound
// positions of the graph. The graph must not be structurally mutated while
// the view is alive.
func NewFusionAwareGraph(g *graphir.Graph) *FusionAwareGraph {
	order := g.TraversalOrder()
	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}
	fag := &FusionAwareGraph{
		graph:  g,
		order:  order,
		parent: make([]int, len(order)),
		fused:  make([]bool, len(order)),
		ready:  make([]bool, len(order)),
		outs:   make([][]int, len(order)),
		types:  make([]string, len(order)),
		labels: make([][]string, len(order)),
	}
	for i, name := range order {
		node := g.Node(name)
		fag.parent[i] = i
		fag.types[i] = node.Type
		fag.labels[i] = []string{node.Type}
		for _, consumer := range node.Outbounds {
			fag.outs[i] = append(fag.outs[i], pos[consumer])
		}
	}
	return fag
}

// Len returns the number of positions.
func (fag *FusionAwareGraph) Len() int { return len(fag.order) }

func (fag *FusionAwareGraph) find(i int) int {
	for fag.parent[i] != i {
		fag.parent[i] = fag.parent[fag.parent[i]]
		i = fag.parent[i]
	}
	return i
}

// IsFused reports whether the position was absorbed into another block.
func (fag *FusionAwareGraph) IsFused(i int) bool { return fag.fused[i] }

// MarkReady flags the position as visited; readiness is never cleared.
func (fag *FusionAwareGraph) MarkReady(i int) { fag.ready[i] = true }

// IsReady reports whether the position has been visited as a fusion source.
func (fag *FusionAwareGraph) IsReady(i int) bool { return fag.ready[i] }

// Outbounds returns the outbound positions of the block containing i.
func (fag *FusionAwareGraph) Outbounds(i int) []int { return fag.outs[fag.find(i)] }

// Type returns the effective op type of the block containing i, used for
// fusibility lookups: a chain's type is the type of its last absorbed node.
func (fag *FusionAwareGraph) Type(i int) string { return fag.types[fag.find(i)] }

// Fuse merges position j into the block containing i. With preserveOutbounds
// the block keeps i's remaining consumers (minus j) ahead of j's own, so a
// permissive multiplicity mode can still consider them; otherwise the block's
// outbounds become j's outbounds.
func (fag *FusionAwareGraph) Fuse(i, j int, preserveOutbounds bool) {
	ri, rj := fag.find(i), fag.find(j)
	if ri == rj {
		return
	}
	fag.parent[rj] = ri
	fag.fused[j] = true
	fag.types[ri] = fag.types[rj]
	fag.labels[ri] = append(fag.labels[ri], fag.labels[rj]...)

	var merged []int
	if preserveOutbounds {
		merged = append(merged, fag.outs[ri]...)
	}
	merged = append(merged, fag.outs[rj]...)
	fag.outs[ri] = fag.compactOutbounds(ri, merged)
}

// compactOutbounds drops block-internal edges and duplicates, preserving edge
// order.
func (fag *FusionAwareGraph) compactOutbounds(root int, positions []int) []int {
	var result []int
	seen := utils.MakeSet[int](len(positions))
	for _, p := range positions {
		if fag.find(p) == root || seen.Has(p) {
			continue
		}
		seen.Insert(p)
		result = append(result, p)
	}
	return result
}

// BasicBlocks reads the final partition off the union-find grouping, ordered
// by each block's earliest position. Node names are expanded to the original
// node ids, so pre-fused template nodes contribute all their members.
func (fag *FusionAwareGraph) BasicBlocks() []BasicBlock {
	members := make(map[int][]int, len(fag.order))
	var roots []int
	for i := range fag.order {
		root := fag.find(i)
		if _, found := members[root]; !found {
			roots = append(roots, root)
		}
		members[root] = append(members[root], i)
	}

	blocks := make([]BasicBlock, 0, len(roots))
	for _, root := range roots {
		block := BasicBlock{Type: fag.blockLabel(root, members[root])}
		for _, i := range members[root] {
			block.Nodes = append(block.Nodes, fag.graph.Node(fag.order[i]).Members()...)
		}
		blocks = append(blocks, block)
	}
	return blocks
}

// blockLabel names a block: singletons keep their node type (which is the
// fusion-unit name for a pre-fused template); composite blocks join the
// normalized member types in fusion order.
func (fag *FusionAwareGraph) blockLabel(root int, members []int) string {
	if len(members) == 1 {
		return fag.graph.Node(fag.order[root]).Type
	}
	normalized := make([]string, len(fag.labels[root]))
	for i, t := range fag.labels[root] {
		normalized[i] = utils.NormalizeIdentifier(t)
	}
	return strings.Join(normalized, "-")
}
