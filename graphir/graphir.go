// Package graphir holds the annotated operator graph the kernel-detection
// passes work on.
//
// A Graph is an arena of nodes addressed by dense integer index, with a name
// index on the side. Nodes carry the op type tag handed over by a model
// converter, an attribute bag with the op-specific parameters, ordered
// inbound/outbound edges, and the input/output shapes filled in by the
// shape-inference pass.
//
// The graph is mutated in place by the annotation and pre-fusion passes and
// is not safe for concurrent use; each inference or split run must own its
// Graph exclusively.
package graphir

import (
	"sort"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"

	"github.com/Andyyoung0507/nn-Meter/internal/optypes"
	"github.com/Andyyoung0507/nn-Meter/types/shapes"
)

// Attributes is the bag of op-specific parameters a converter attaches to a
// node, plus the fields the shape-inference pass derives for windowed ops.
//
// Fields are only meaningful for the op types that use them; the zero value
// means "not set".
type Attributes struct {
	// DType of the tensors this node produces. Defaults to Float32 on ingestion.
	DType dtypes.DType

	// KSize is the pooling window, either [h w] or NHWC [1 h w 1].
	KSize []int

	// Strides and Dilations are either [h w] or NHWC [1 h w 1].
	Strides   []int
	Dilations []int

	// Padding mode for windowed ops: "SAME" or "VALID".
	Padding string

	// Shape is a declared shape: the placeholder's input shape or a reshape's
	// explicit target shape.
	Shape []int

	// TensorShape is the shape of the tensor held by a Const node.
	TensorShape []int

	// Constant is the integer payload of a Const node feeding a reshape,
	// transpose, or similar shape-consuming operator.
	Constant []int

	// PackedConstant is the payload of a Pack node, one vector per packed input.
	PackedConstant [][]int

	// Axis is the concatenation axis; SplitDim the split axis.
	Axis     int
	SplitDim int

	// ReductionIndices lists the axes removed by reduce-type ops.
	ReductionIndices []int

	// Derived by shape inference on conv/pool nodes.
	KernelShape []int
	WeightShape []int
	// Pads is [top bottom left right], computed from the padding mode.
	Pads []int
}

// Node is one operator in the graph.
type Node struct {
	Name string

	// Type is the raw op type tag from the converter vocabulary. After
	// pre-fusion it may also be a fusion-unit name.
	Type string

	// Op is the canonical kind resolved from Type; optypes.Invalid for
	// unsupported tags.
	Op optypes.OpType

	Attr Attributes

	// InputShapes and OutputShapes are filled by shape inference. More than
	// one entry supports multi-input/multi-output operators.
	InputShapes  []shapes.Shape
	OutputShapes []shapes.Shape

	// Inbounds and Outbounds are the ordered producer and consumer node names.
	Inbounds  []string
	Outbounds []string

	// members holds the original node names this node stands for after a
	// collapse; nil while the node only represents itself.
	members []string
}

// Members returns the original node names this node represents: itself, or
// the constituent nodes of a collapsed fusion unit.
func (n *Node) Members() []string {
	if n.members == nil {
		return []string{n.Name}
	}
	return n.members
}

// Record is the structural form a converter must produce per node before the
// core runs; see FromRecords.
type Record struct {
	Type string
	Attr Attributes

	// Tensor optionally carries a Const node's raw payload as the converter
	// decoded it (a scalar or nested slices). When Attr.TensorShape is unset,
	// ingestion derives the tensor shape and dtype from it.
	Tensor any

	Inbounds  []string
	Outbounds []string
}

// Graph is the arena of nodes. Nodes keep their dense index for the lifetime
// of the graph, except across Fuse, which compacts the arena.
type Graph struct {
	nodes []*Node
	index map[string]int
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{index: make(map[string]int)}
}

// FromRecords builds a graph from the converter hand-off: a mapping from node
// name to its structural record. Nodes enter the arena in sorted name order
// so ingestion is deterministic; traversal order is computed from the edges.
func FromRecords(records map[string]Record) (*Graph, error) {
	g := New()
	names := make([]string, 0, len(records))
	for name := range records {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rec := records[name]
		node := &Node{
			Name:      name,
			Type:      rec.Type,
			Attr:      rec.Attr,
			Inbounds:  append([]string(nil), rec.Inbounds...),
			Outbounds: append([]string(nil), rec.Outbounds...),
		}
		if rec.Tensor != nil && len(node.Attr.TensorShape) == 0 {
			shape, err := shapes.FromAnyValue(rec.Tensor)
			if err != nil {
				return nil, errors.WithMessagef(err, "node %q tensor payload", name)
			}
			node.Attr.DType = shape.DType
			node.Attr.TensorShape = shape.Dimensions
		}
		if err := g.Add(node); err != nil {
			return nil, err
		}
	}
	// Edges must reference ingested nodes.
	for _, n := range g.nodes {
		for _, edges := range [][]string{n.Inbounds, n.Outbounds} {
			for _, other := range edges {
				if _, found := g.index[other]; !found {
					return nil, errors.Errorf("node %q references unknown node %q", n.Name, other)
				}
			}
		}
	}
	return g, nil
}

// Add appends a node to the arena, resolving its canonical op kind and
// defaulting its dtype. The node name must be unique.
func (g *Graph) Add(n *Node) error {
	if _, found := g.index[n.Name]; found {
		return errors.Errorf("duplicate node name %q", n.Name)
	}
	n.Op = optypes.FromString(n.Type)
	if n.Attr.DType == dtypes.InvalidDType {
		n.Attr.DType = dtypes.Float32
	}
	g.index[n.Name] = len(g.nodes)
	g.nodes = append(g.nodes, n)
	return nil
}

// AddNode creates a node, wires it to the given producer nodes (which must
// already exist), and appends it to the arena. It is the incremental
// counterpart of FromRecords, meant for converters that build graphs node by
// node in emission order.
func (g *Graph) AddNode(name, opType string, attr Attributes, inputs ...string) (*Node, error) {
	for _, input := range inputs {
		if g.Node(input) == nil {
			return nil, errors.Errorf("node %q wires unknown producer %q", name, input)
		}
	}
	n := &Node{
		Name:     name,
		Type:     opType,
		Attr:     attr,
		Inbounds: append([]string(nil), inputs...),
	}
	if err := g.Add(n); err != nil {
		return nil, err
	}
	for _, input := range inputs {
		g.Node(input).Outbounds = append(g.Node(input).Outbounds, name)
	}
	return n, nil
}

// Len returns the number of nodes currently in the arena.
func (g *Graph) Len() int { return len(g.nodes) }

// Node returns the node with the given name, or nil.
func (g *Graph) Node(name string) *Node {
	i, found := g.index[name]
	if !found {
		return nil
	}
	return g.nodes[i]
}

// NodeAt returns the node at the given arena index.
func (g *Graph) NodeAt(i int) *Node { return g.nodes[i] }

// Names returns all node names in arena order.
func (g *Graph) Names() []string {
	names := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		names[i] = n.Name
	}
	return names
}

// Heads returns the names of the root nodes (no inbound edges) in arena order.
func (g *Graph) Heads() []string {
	var heads []string
	for _, n := range g.nodes {
		if len(n.Inbounds) == 0 {
			heads = append(heads, n.Name)
		}
	}
	return heads
}

// TraversalOrder returns a deterministic order consistent with edge
// direction: a Kahn topological sort seeded with the head nodes in arena
// order. Nodes unreachable through that process (only possible on malformed,
// cyclic input) are appended in arena order so every node is visited once.
func (g *Graph) TraversalOrder() []string {
	pending := make(map[string]int, len(g.nodes))
	for _, n := range g.nodes {
		pending[n.Name] = len(n.Inbounds)
	}
	queue := append([]string(nil), g.Heads()...)
	order := make([]string, 0, len(g.nodes))
	seen := make(map[string]bool, len(g.nodes))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if seen[name] {
			continue
		}
		seen[name] = true
		order = append(order, name)
		for _, consumer := range g.Node(name).Outbounds {
			pending[consumer]--
			if pending[consumer] == 0 {
				queue = append(queue, consumer)
			}
		}
	}
	if len(order) < len(g.nodes) {
		for _, n := range g.nodes {
			if !seen[n.Name] {
				order = append(order, n.Name)
			}
		}
	}
	return order
}

// TraversalFrom returns up to limit node names in BFS order along the
// dataflow direction, starting at (and including) the given node.
func (g *Graph) TraversalFrom(name string, limit int) []string {
	if g.Node(name) == nil || limit <= 0 {
		return nil
	}
	order := make([]string, 0, limit)
	seen := map[string]bool{name: true}
	queue := []string{name}
	for len(queue) > 0 && len(order) < limit {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)
		for _, consumer := range g.Node(current).Outbounds {
			if !seen[consumer] {
				seen[consumer] = true
				queue = append(queue, consumer)
			}
		}
	}
	return order
}

// Fuse collapses the named nodes into a single node labeled with the given
// type. The surviving node is the member earliest in the arena; it absorbs
// the members' original names and keeps only the edges crossing the group
// boundary, in their original order. Neighbors outside the group are rewired
// to the surviving node. The arena is compacted afterwards, so indexes held
// across a Fuse call are invalid.
func (g *Graph) Fuse(names []string, label string) error {
	if len(names) == 0 {
		return errors.Errorf("cannot fuse an empty node set")
	}
	group := make(map[string]bool, len(names))
	ordered := make([]*Node, 0, len(names))
	for _, n := range g.nodes {
		if group[n.Name] {
			continue
		}
		for _, name := range names {
			if n.Name == name {
				group[name] = true
				ordered = append(ordered, n)
				break
			}
		}
	}
	if len(ordered) != len(names) {
		return errors.Errorf("fuse group %v contains unknown or duplicate nodes", names)
	}

	host := ordered[0]
	var members, inbounds, outbounds []string
	for _, member := range ordered {
		members = append(members, member.Members()...)
		for _, producer := range member.Inbounds {
			if !group[producer] {
				inbounds = appendUnique(inbounds, producer)
			}
		}
		for _, consumer := range member.Outbounds {
			if !group[consumer] {
				outbounds = appendUnique(outbounds, consumer)
			}
		}
	}

	for _, producer := range inbounds {
		g.Node(producer).Outbounds = rewireEdges(g.Node(producer).Outbounds, group, host.Name)
	}
	for _, consumer := range outbounds {
		g.Node(consumer).Inbounds = rewireEdges(g.Node(consumer).Inbounds, group, host.Name)
	}

	host.Type = label
	host.Op = optypes.FromString(label)
	host.Inbounds = inbounds
	host.Outbounds = outbounds
	host.members = members

	// Compact the arena.
	kept := g.nodes[:0]
	g.index = make(map[string]int, len(g.nodes))
	for _, n := range g.nodes {
		if group[n.Name] && n != host {
			continue
		}
		g.index[n.Name] = len(kept)
		kept = append(kept, n)
	}
	g.nodes = kept
	return nil
}

// appendUnique appends name if not already present, preserving order.
func appendUnique(list []string, name string) []string {
	for _, existing := range list {
		if existing == name {
			return list
		}
	}
	return append(list, name)
}

// rewireEdges replaces every reference to a group member with the host name,
// deduplicated, preserving the original edge order.
func rewireEdges(edges []string, group map[string]bool, host string) []string {
	result := make([]string, 0, len(edges))
	for _, name := range edges {
		if group[name] {
			name = host
		}
		result = appendUnique(result, name)
	}
	return result
}

// WeightRoot identifies the unique weight predecessor of a conv/matmul-style
// node: a Const inbound carrying a tensor shape, possibly wrapped in a single
// Identity. It returns the inbound name and the weight tensor shape.
func (g *Graph) WeightRoot(n *Node) (string, []int, error) {
	var name string
	var shape []int
	count := 0
	for _, inbound := range n.Inbounds {
		p := g.Node(inbound)
		if p == nil {
			continue
		}
		switch p.Op {
		case optypes.Const:
			if len(p.Attr.TensorShape) > 0 {
				name, shape = p.Name, p.Attr.TensorShape
				count++
			}
		case optypes.Identity:
			if len(p.Inbounds) != 1 {
				continue
			}
			q := g.Node(p.Inbounds[0])
			if q != nil && q.Op == optypes.Const && len(q.Attr.TensorShape) > 0 {
				name, shape = p.Name, q.Attr.TensorShape
				count++
			}
		}
	}
	if count != 1 {
		return "", nil, errors.Errorf("node %q (%s) needs exactly one weight predecessor, found %d", n.Name, n.Type, count)
	}
	return name, shape, nil
}

// DataRoot returns the unique data predecessor of a node once the weight
// predecessor is known: the inbound that is neither the weight nor an
// Identity wrapper.
func (g *Graph) DataRoot(n *Node, weight string) (*Node, error) {
	var root *Node
	count := 0
	for _, inbound := range n.Inbounds {
		if inbound == weight {
			continue
		}
		p := g.Node(inbound)
		if p == nil || p.Op == optypes.Identity {
			continue
		}
		root = p
		count++
	}
	if count != 1 {
		return nil, errors.Errorf("node %q (%s) needs exactly one data predecessor, found %d", n.Name, n.Type, count)
	}
	return root, nil
}
