package graphir

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/require"
)

// chain builds in → conv → bn → relu → pool, with a const weight feeding conv.
func chain(t *testing.T) *Graph {
	t.Helper()
	g := New()
	mustAdd := func(name, opType string, attr Attributes, inputs ...string) {
		_, err := g.AddNode(name, opType, attr, inputs...)
		require.NoError(t, err)
	}
	mustAdd("in", "Placeholder", Attributes{Shape: []int{1, 224, 224, 3}})
	mustAdd("w", "Const", Attributes{TensorShape: []int{3, 3, 3, 32}})
	mustAdd("conv", "Conv2D", Attributes{Padding: "SAME"}, "in", "w")
	mustAdd("bn", "FusedBatchNorm", Attributes{}, "conv")
	mustAdd("relu", "Relu", Attributes{}, "bn")
	mustAdd("pool", "MaxPool", Attributes{KSize: []int{2, 2}, Padding: "SAME"}, "relu")
	return g
}

func TestFromRecords(t *testing.T) {
	g, err := FromRecords(map[string]Record{
		"in":   {Type: "Placeholder", Outbounds: []string{"relu"}},
		"relu": {Type: "Relu", Inbounds: []string{"in"}, Outbounds: []string{"mean"}},
		"mean": {Type: "Mean", Inbounds: []string{"relu"}},
	})
	require.NoError(t, err)
	require.Equal(t, 3, g.Len())

	// Sorted-name ingestion keeps the arena deterministic.
	require.Equal(t, []string{"in", "mean", "relu"}, g.Names())
	require.Equal(t, []string{"in"}, g.Heads())
	require.Equal(t, []string{"in", "relu", "mean"}, g.TraversalOrder())

	_, err = FromRecords(map[string]Record{
		"relu": {Type: "Relu", Inbounds: []string{"missing"}},
	})
	require.ErrorContains(t, err, "unknown node")
}

func TestFromRecordsDerivesTensorShape(t *testing.T) {
	g, err := FromRecords(map[string]Record{
		"w": {Type: "Const", Tensor: [][]float64{{1, 2, 3}, {4, 5, 6}}},
		"b": {Type: "Const", Tensor: []float32{1}, Attr: Attributes{TensorShape: []int{32}}},
	})
	require.NoError(t, err)

	w := g.Node("w")
	require.Equal(t, []int{2, 3}, w.Attr.TensorShape)
	require.Equal(t, dtypes.Float64, w.Attr.DType)

	// An explicit tensor shape wins over the payload.
	require.Equal(t, []int{32}, g.Node("b").Attr.TensorShape)

	_, err = FromRecords(map[string]Record{
		"bad": {Type: "Const", Tensor: [][]int{{1}, {2, 3}}},
	})
	require.ErrorContains(t, err, "irregular")
}

func TestAddNode(t *testing.T) {
	g := New()
	_, err := g.AddNode("in", "Placeholder", Attributes{})
	require.NoError(t, err)

	n, err := g.AddNode("relu", "Relu", Attributes{}, "in")
	require.NoError(t, err)
	require.Equal(t, []string{"in"}, n.Inbounds)
	require.Equal(t, []string{"relu"}, g.Node("in").Outbounds)

	_, err = g.AddNode("relu", "Relu", Attributes{}, "in")
	require.ErrorContains(t, err, "duplicate")
	_, err = g.AddNode("relu2", "Relu", Attributes{}, "missing")
	require.ErrorContains(t, err, "unknown producer")
}

func TestTraversalOrder(t *testing.T) {
	g := chain(t)
	order := g.TraversalOrder()
	require.Len(t, order, g.Len())

	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}
	for _, name := range g.Names() {
		n := g.Node(name)
		for _, consumer := range n.Outbounds {
			if pos[name] >= pos[consumer] {
				t.Errorf("traversal places %q (%d) after its consumer %q (%d)",
					name, pos[name], consumer, pos[consumer])
			}
		}
	}
}

func TestTraversalFrom(t *testing.T) {
	g := chain(t)
	require.Equal(t, []string{"bn", "relu", "pool"}, g.TraversalFrom("bn", 3))
	require.Equal(t, []string{"pool"}, g.TraversalFrom("pool", 5))
	require.Nil(t, g.TraversalFrom("missing", 5))
	require.Nil(t, g.TraversalFrom("bn", 0))
}

func TestFuse(t *testing.T) {
	g := chain(t)
	// Member order does not matter; the earliest arena member hosts the group.
	require.NoError(t, g.Fuse([]string{"bn", "conv"}, "conv-bn"))

	require.Equal(t, 5, g.Len())
	require.Nil(t, g.Node("bn"))

	host := g.Node("conv")
	require.NotNil(t, host)
	require.Equal(t, "conv-bn", host.Type)
	require.Equal(t, []string{"conv", "bn"}, host.Members())
	require.Equal(t, []string{"in", "w"}, host.Inbounds)
	require.Equal(t, []string{"relu"}, host.Outbounds)

	// Neighbors outside the group are rewired to the host.
	require.Equal(t, []string{"conv"}, g.Node("in").Outbounds)
	require.Equal(t, []string{"conv"}, g.Node("relu").Inbounds)

	// A second collapse absorbs the previous one's members.
	require.NoError(t, g.Fuse([]string{"conv", "relu"}, "conv-bn-relu"))
	require.Equal(t, []string{"conv", "bn", "relu"}, g.Node("conv").Members())
	require.Equal(t, []string{"pool"}, g.Node("conv").Outbounds)

	require.Error(t, g.Fuse(nil, "empty"))
	require.Error(t, g.Fuse([]string{"conv", "missing"}, "bad"))
}

func TestFuseKeepsExternalEdgeOrder(t *testing.T) {
	g := New()
	mustAdd := func(name, opType string, inputs ...string) {
		_, err := g.AddNode(name, opType, Attributes{}, inputs...)
		require.NoError(t, err)
	}
	mustAdd("in", "Placeholder")
	mustAdd("split", "Split", "in")
	mustAdd("a", "Relu", "split")
	mustAdd("b", "Relu", "split")
	mustAdd("concat", "Concat", "a", "b")

	require.NoError(t, g.Fuse([]string{"a", "b"}, "relu-pair"))
	// Both edges into the group collapse to one, in first-seen position.
	require.Equal(t, []string{"a"}, g.Node("split").Outbounds)
	require.Equal(t, []string{"a"}, g.Node("concat").Inbounds)
	require.Equal(t, []string{"split"}, g.Node("a").Inbounds)
	require.Equal(t, []string{"concat"}, g.Node("a").Outbounds)
}

func TestWeightRoot(t *testing.T) {
	g := chain(t)
	name, shape, err := g.WeightRoot(g.Node("conv"))
	require.NoError(t, err)
	require.Equal(t, "w", name)
	require.Equal(t, []int{3, 3, 3, 32}, shape)

	data, err := g.DataRoot(g.Node("conv"), name)
	require.NoError(t, err)
	require.Equal(t, "in", data.Name)

	// No weight predecessor at all.
	_, _, err = g.WeightRoot(g.Node("relu"))
	require.ErrorContains(t, err, "exactly one weight predecessor")
}

func TestWeightRootThroughIdentity(t *testing.T) {
	g := New()
	mustAdd := func(name, opType string, attr Attributes, inputs ...string) {
		_, err := g.AddNode(name, opType, attr, inputs...)
		require.NoError(t, err)
	}
	mustAdd("in", "Placeholder", Attributes{Shape: []int{1, 32}})
	mustAdd("w", "Const", Attributes{TensorShape: []int{32, 10}})
	mustAdd("w_read", "Identity", Attributes{}, "w")
	mustAdd("fc", "MatMul", Attributes{}, "in", "w_read")

	name, shape, err := g.WeightRoot(g.Node("fc"))
	require.NoError(t, err)
	require.Equal(t, "w_read", name)
	require.Equal(t, []int{32, 10}, shape)

	data, err := g.DataRoot(g.Node("fc"), name)
	require.NoError(t, err)
	require.Equal(t, "in", data.Name)

	// A second weight makes the root ambiguous.
	_, err = g.AddNode("w2", "Const", Attributes{TensorShape: []int{32, 10}})
	require.NoError(t, err)
	fc := g.Node("fc")
	fc.Inbounds = append(fc.Inbounds, "w2")
	_, _, err = g.WeightRoot(fc)
	require.ErrorContains(t, err, "found 2")
}
