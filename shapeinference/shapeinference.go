// Package shapeinference annotates every reachable node of a graphir.Graph
// with its input and output tensor shapes, computed from the op-type-specific
// parameters stored on each node.
//
// Most operators are resolved in a single forward pass over a deterministic
// traversal order. Pack and StridedSlice cannot be shaped in forward order:
// their effective shape is only recoverable from a downstream Reshape, so a
// second pass patches them after the rest of the graph is annotated.
//
// Per-node failures are never fatal: an unsupported operator, a malformed
// neighborhood, or a shape mismatch is logged, recorded in the aggregate
// error, and traversal continues. Callers must treat nodes with unset shapes
// as untrusted.
package shapeinference

import (
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"k8s.io/klog/v2"

	"github.com/Andyyoung0507/nn-Meter/graphir"
	"github.com/Andyyoung0507/nn-Meter/internal/optypes"
	"github.com/Andyyoung0507/nn-Meter/internal/utils"
	"github.com/Andyyoung0507/nn-Meter/types/shapes"
)

var (
	// PropagationOperations output exactly the shape of their single data
	// predecessor.
	PropagationOperations = utils.SetWith(
		optypes.Identity,
		optypes.FusedBatchNorm,
		optypes.BiasAdd,
		optypes.Relu,
		optypes.Relu6,
		optypes.LeakyReLU,
	)

	// BroadcastOperations combine multiple inputs under the usual
	// broadcasting upper bound.
	BroadcastOperations = utils.SetWith(
		optypes.Add,
		optypes.Mul,
	)

	// PoolingOperations slide a window over the spatial axes without
	// changing the channel count.
	PoolingOperations = utils.SetWith(
		optypes.AvgPool,
		optypes.MaxPool,
	)

	// ReduceOperations remove the reduced axes from the input shape.
	ReduceOperations = utils.SetWith(
		optypes.Mean,
		optypes.GlobalAveragePooling2D,
		optypes.GlobalMaxPooling2D,
	)

	// PatchedOperations cannot be shaped in forward order and are corrected
	// by the second pass.
	PatchedOperations = utils.SetWith(
		optypes.Pack,
		optypes.StridedSlice,
	)
)

// patchHopBound limits how far forward the patch pass looks for a Reshape.
const patchHopBound = 5

// Rule computes the input and output shapes of a node from already-annotated
// predecessors. A rule may return shapes together with a non-nil error when
// it can produce a best-effort result despite a recorded problem.
type Rule func(g *graphir.Graph, n *graphir.Node) (inputs, outputs []shapes.Shape, err error)

var rules = map[optypes.OpType]Rule{
	optypes.Placeholder: placeholderRule,
	optypes.Const:       constRule,

	optypes.Identity:       propagateRule,
	optypes.FusedBatchNorm: propagateRule,
	optypes.BiasAdd:        propagateRule,
	optypes.Relu:           propagateRule,
	optypes.Relu6:          propagateRule,
	optypes.LeakyReLU:      propagateRule,

	optypes.Add: broadcastRule,
	optypes.Mul: broadcastRule,

	optypes.Conv2D:                convRule,
	optypes.DepthwiseConv2dNative: depthwiseConvRule,
	optypes.MatMul:                matMulRule,
	optypes.AvgPool:               poolRule,
	optypes.MaxPool:               poolRule,

	optypes.Mean:                   reduceRule,
	optypes.GlobalAveragePooling2D: reduceRule,
	optypes.GlobalMaxPooling2D:     reduceRule,

	optypes.Reshape:   reshapeRule,
	optypes.Concat:    concatRule,
	optypes.Split:     splitRule,
	optypes.Transpose: transposeRule,

	optypes.Pack:         patchedRule,
	optypes.StridedSlice: patchedRule,
}

// Infer mutates every reachable node's InputShapes/OutputShapes in place.
//
// The returned error aggregates every per-node condition encountered; it is
// diagnostic only -- the graph is annotated as far as possible regardless.
func Infer(g *graphir.Graph) error {
	order := g.TraversalOrder()
	var issues error

	for _, name := range order {
		n := g.Node(name)
		rule, registered := rules[n.Op]
		if !registered {
			klog.Warningf("operator %q (node %q) not supported yet, leaving shapes unset", n.Type, n.Name)
			issues = multierr.Append(issues, errors.Errorf("unsupported operator %q (node %q)", n.Type, n.Name))
			continue
		}
		issues = multierr.Append(issues, apply(g, n, rule))
	}

	// Patch pass: Pack and StridedSlice borrow their shape from a downstream
	// Reshape that is only annotated after the forward pass completes.
	for _, name := range order {
		n := g.Node(name)
		if !PatchedOperations.Has(n.Op) {
			continue
		}
		issues = multierr.Append(issues, apply(g, n, patchedRule))
	}
	return issues
}

// apply runs one rule and stores whatever shapes it produced, logging and
// returning the recorded condition, if any.
func apply(g *graphir.Graph, n *graphir.Node, rule Rule) error {
	inputs, outputs, err := rule(g, n)
	if inputs != nil {
		n.InputShapes = inputs
	}
	if outputs != nil {
		n.OutputShapes = outputs
	}
	if err != nil {
		klog.Warningf("shape inference for node %q (%s): %v", n.Name, n.Type, err)
		return errors.WithMessagef(err, "node %q (%s)", n.Name, n.Type)
	}
	if klog.V(2).Enabled() {
		klog.V(2).Infof("node %q (%s): inputs %v, outputs %v", n.Name, n.Type, n.InputShapes, n.OutputShapes)
	}
	return nil
}

// producerShape returns a copy of the i-th predecessor's first output shape.
func producerShape(g *graphir.Graph, n *graphir.Node, i int) (shapes.Shape, error) {
	if i >= len(n.Inbounds) {
		return shapes.Invalid(), errors.Errorf("expected at least %d predecessors, got %d", i+1, len(n.Inbounds))
	}
	p := g.Node(n.Inbounds[i])
	if p == nil {
		return shapes.Invalid(), errors.Errorf("unknown predecessor %q", n.Inbounds[i])
	}
	if len(p.OutputShapes) == 0 {
		return shapes.Invalid(), errors.Errorf("predecessor %q has no output shape yet", p.Name)
	}
	return p.OutputShapes[0].Clone(), nil
}

func placeholderRule(_ *graphir.Graph, n *graphir.Node) ([]shapes.Shape, []shapes.Shape, error) {
	if len(n.Attr.Shape) == 0 {
		return nil, nil, errors.Errorf("placeholder carries no declared shape")
	}
	return nil, []shapes.Shape{shapes.Make(n.Attr.DType, n.Attr.Shape...)}, nil
}

func constRule(_ *graphir.Graph, n *graphir.Node) ([]shapes.Shape, []shapes.Shape, error) {
	return nil, []shapes.Shape{shapes.Make(n.Attr.DType, n.Attr.TensorShape...)}, nil
}

func propagateRule(g *graphir.Graph, n *graphir.Node) ([]shapes.Shape, []shapes.Shape, error) {
	input, err := producerShape(g, n, 0)
	if err != nil {
		return nil, nil, err
	}
	return []shapes.Shape{input}, []shapes.Shape{input.Clone()}, nil
}

// broadcastRule evaluates the broadcasting upper bound over all inputs: the
// shape of the greatest rank, with the element-wise maximum per dimension
// when two inputs share that rank.
func broadcastRule(g *graphir.Graph, n *graphir.Node) ([]shapes.Shape, []shapes.Shape, error) {
	if len(n.Inbounds) < 2 {
		klog.Warningf("broadcast op %q (%s) has %d inputs", n.Name, n.Type, len(n.Inbounds))
		if len(n.Inbounds) == 1 {
			return propagateRule(g, n)
		}
		return nil, nil, errors.Errorf("broadcast op needs inputs, got none")
	}
	inputs := make([]shapes.Shape, 0, len(n.Inbounds))
	target := shapes.Invalid()
	for i := range n.Inbounds {
		input, err := producerShape(g, n, i)
		if err != nil {
			return nil, nil, err
		}
		inputs = append(inputs, input)
		if !target.Ok() || input.Rank() > target.Rank() {
			target = input.Clone()
			continue
		}
		if input.Rank() == target.Rank() {
			for axis, dim := range input.Dimensions {
				if dim > target.Dimensions[axis] {
					target.Dimensions[axis] = dim
				}
			}
		}
	}
	return inputs, []shapes.Shape{target}, nil
}

func matMulRule(g *graphir.Graph, n *graphir.Node) ([]shapes.Shape, []shapes.Shape, error) {
	weight, weightShape, err := g.WeightRoot(n)
	if err != nil {
		return nil, nil, err
	}
	if len(weightShape) != 2 {
		return nil, nil, errors.Errorf("weight tensor shape %v is not a matrix", weightShape)
	}
	data, err := g.DataRoot(n, weight)
	if err != nil {
		return nil, nil, err
	}
	if len(data.OutputShapes) == 0 {
		return nil, nil, errors.Errorf("data predecessor %q has no output shape yet", data.Name)
	}
	input := data.OutputShapes[0].Clone()
	if input.Rank() < 2 {
		return nil, nil, errors.Errorf("matmul input %s must be at least rank-2", input)
	}
	if weightShape[0] != input.Dim(1) {
		return nil, nil, errors.Errorf("weight shape %v does not match input feature dimension of %s", weightShape, input)
	}
	output := input.Clone()
	output.Dimensions[1] = weightShape[1]
	return []shapes.Shape{input}, []shapes.Shape{output}, nil
}

// reduceRule removes the reduced axes in ascending order, shifting the
// remaining indices as it goes. Global pooling variants default to reducing
// the two spatial axes.
func reduceRule(g *graphir.Graph, n *graphir.Node) ([]shapes.Shape, []shapes.Shape, error) {
	input, err := producerShape(g, n, 0)
	if err != nil {
		return nil, nil, err
	}
	indices := n.Attr.ReductionIndices
	if len(indices) == 0 {
		indices = []int{1, 2}
	}
	sorted := append([]int(nil), indices...)
	sort.Ints(sorted)
	output := input.Clone()
	for removed, axis := range sorted {
		axis -= removed
		if axis < 0 || axis >= output.Rank() {
			return []shapes.Shape{input}, nil, errors.Errorf("reduction index %d out of range for shape %s", sorted[removed], input)
		}
		output.Dimensions = append(output.Dimensions[:axis], output.Dimensions[axis+1:]...)
	}
	return []shapes.Shape{input}, []shapes.Shape{output}, nil
}

// reshapeRule uses the explicit target-shape attribute when present;
// otherwise it derives the target from a Const or Pack predecessor. An
// element-count mismatch is recorded but the shapes are still produced.
func reshapeRule(g *graphir.Graph, n *graphir.Node) ([]shapes.Shape, []shapes.Shape, error) {
	input := shapes.Invalid()
	var target []int
	if len(n.Attr.Shape) > 0 {
		var err error
		input, err = producerShape(g, n, 0)
		if err != nil {
			return nil, nil, err
		}
		target = append([]int(nil), n.Attr.Shape...)
	} else {
		for _, inbound := range n.Inbounds {
			p := g.Node(inbound)
			if p == nil {
				continue
			}
			switch p.Op {
			case optypes.Const:
				target = append([]int(nil), p.Attr.Constant...)
			case optypes.Pack:
				target = packedTarget(p)
			default:
				if len(p.OutputShapes) > 0 {
					input = p.OutputShapes[0].Clone()
				}
			}
		}
		if len(target) == 0 {
			return nil, nil, errors.Errorf("no target shape attribute and no Const or Pack predecessor")
		}
	}
	if !input.Ok() {
		return nil, nil, errors.Errorf("could not resolve the input shape")
	}
	output := shapes.Make(input.DType, target...)
	if absSize(input) != absSize(output) {
		return []shapes.Shape{input}, []shapes.Shape{output},
			errors.Errorf("input %s and target %s element counts do not match", input, output)
	}
	return []shapes.Shape{input}, []shapes.Shape{output}, nil
}

// packedTarget flattens a Pack node's payload into the shape vector it
// encodes, with the implied leading batch dimension.
func packedTarget(p *graphir.Node) []int {
	target := []int{1}
	for _, vec := range p.Attr.PackedConstant {
		target = append(target, vec...)
	}
	return target
}

// absSize is the element count ignoring sign, so a -1 wildcard dimension does
// not break the reshape consistency check.
func absSize(s shapes.Shape) int {
	size := 1
	for _, dim := range s.Dimensions {
		if dim < 0 {
			dim = -dim
		}
		size *= dim
	}
	return size
}

func concatRule(g *graphir.Graph, n *graphir.Node) ([]shapes.Shape, []shapes.Shape, error) {
	var inputs []shapes.Shape
	for i := range n.Inbounds {
		input, err := producerShape(g, n, i)
		if err != nil {
			return nil, nil, err
		}
		if input.Rank() == 0 {
			continue
		}
		inputs = append(inputs, input)
	}
	if len(inputs) == 0 {
		return nil, nil, errors.Errorf("concat has no shaped inputs")
	}
	axis := n.Attr.Axis
	output := inputs[0].Clone()
	if axis < 0 || axis >= output.Rank() {
		return inputs, nil, errors.Errorf("concat axis %d out of range for shape %s", axis, output)
	}
	for _, input := range inputs[1:] {
		if input.Rank() != output.Rank() {
			return inputs, nil, errors.Errorf("concat inputs %s and %s have different ranks", inputs[0], input)
		}
		output.Dimensions[axis] += input.Dim(axis)
	}
	return inputs, []shapes.Shape{output}, nil
}

// splitRule divides the split axis by the number of consumers, truncating,
// and replicates the result once per output.
func splitRule(g *graphir.Graph, n *graphir.Node) ([]shapes.Shape, []shapes.Shape, error) {
	input := shapes.Invalid()
	for _, inbound := range n.Inbounds {
		p := g.Node(inbound)
		if p == nil || p.Op == optypes.Const || p.Op == optypes.Pack {
			continue
		}
		if len(p.OutputShapes) > 0 {
			input = p.OutputShapes[0].Clone()
		}
	}
	if !input.Ok() {
		return nil, nil, errors.Errorf("could not resolve the input shape")
	}
	count := len(n.Outbounds)
	if count == 0 {
		return []shapes.Shape{input}, nil, errors.Errorf("split has no consumers to divide across")
	}
	axis := n.Attr.SplitDim
	if axis < 0 || axis >= input.Rank() {
		return []shapes.Shape{input}, nil, errors.Errorf("split axis %d out of range for shape %s", axis, input)
	}
	part := input.Clone()
	part.Dimensions[axis] /= count
	outputs := make([]shapes.Shape, count)
	for i := range outputs {
		outputs[i] = part.Clone()
	}
	return []shapes.Shape{input}, outputs, nil
}

func transposeRule(g *graphir.Graph, n *graphir.Node) ([]shapes.Shape, []shapes.Shape, error) {
	input := shapes.Invalid()
	var perm []int
	for _, inbound := range n.Inbounds {
		p := g.Node(inbound)
		if p == nil {
			continue
		}
		switch p.Op {
		case optypes.Const:
			perm = append([]int(nil), p.Attr.Constant...)
		case optypes.Pack:
			perm = packedTarget(p)
		default:
			if len(p.OutputShapes) > 0 {
				input = p.OutputShapes[0].Clone()
			}
		}
	}
	if !input.Ok() {
		return nil, nil, errors.Errorf("could not resolve the input shape")
	}
	if len(perm) == 0 {
		return []shapes.Shape{input}, nil, errors.Errorf("no permutation found on a Const or Pack predecessor")
	}
	output := shapes.Make(input.DType, make([]int, len(perm))...)
	for i, axis := range perm {
		if axis < 0 || axis >= input.Rank() {
			return []shapes.Shape{input}, nil, errors.Errorf("permutation entry %d out of range for shape %s", axis, input)
		}
		output.Dimensions[i] = input.Dim(axis)
	}
	return []shapes.Shape{input}, []shapes.Shape{output}, nil
}

// patchedRule walks forward along the dataflow, up to patchHopBound nodes,
// looking for a Reshape that already recorded an input shape; the node
// borrows that shape for both its input and output. Without one it falls
// back to the all-zero rank-4 placeholder instead of failing.
func patchedRule(g *graphir.Graph, n *graphir.Node) ([]shapes.Shape, []shapes.Shape, error) {
	for _, name := range g.TraversalFrom(n.Name, patchHopBound) {
		m := g.Node(name)
		if m.Op != optypes.Reshape || len(m.InputShapes) == 0 {
			continue
		}
		return cloneShapes(m.InputShapes), cloneShapes(m.InputShapes), nil
	}
	placeholder := shapes.Make(n.Attr.DType, 0, 0, 0, 0)
	return []shapes.Shape{placeholder}, []shapes.Shape{placeholder.Clone()}, nil
}

func cloneShapes(list []shapes.Shape) []shapes.Shape {
	cloned := make([]shapes.Shape, len(list))
	for i, s := range list {
		cloned[i] = s.Clone()
	}
	return cloned
}
