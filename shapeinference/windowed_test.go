package shapeinference

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Andyyoung0507/nn-Meter/graphir"
	"github.com/Andyyoung0507/nn-Meter/types/shapes"
)

func TestConvOutputShapes(t *testing.T) {
	testCases := []struct {
		name        string
		opType      string
		input       []int
		weight      []int
		strides     []int
		dilations   []int
		padding     string
		want        []int
		wantPads    []int
		wantKernel  []int
		wantStrides []int
	}{
		{
			name:   "same stride 1",
			opType: "Conv2D",
			input:  []int{1, 224, 224, 3}, weight: []int{3, 3, 3, 32},
			padding: "SAME",
			want:    []int{1, 224, 224, 32},
			wantPads:    []int{1, 1, 1, 1},
			wantKernel:  []int{3, 3},
			wantStrides: []int{1, 1},
		},
		{
			name:   "same stride 2 pads to the bottom right",
			opType: "Conv2D",
			input:  []int{1, 224, 224, 3}, weight: []int{3, 3, 3, 32},
			strides: []int{1, 2, 2, 1},
			padding: "SAME",
			want:    []int{1, 112, 112, 32},
			wantPads:    []int{0, 1, 0, 1},
			wantKernel:  []int{3, 3},
			wantStrides: []int{2, 2},
		},
		{
			name:   "valid stride 1",
			opType: "Conv2D",
			input:  []int{1, 224, 224, 3}, weight: []int{3, 3, 3, 32},
			strides: []int{1, 1},
			padding: "VALID",
			want:    []int{1, 222, 222, 32},
			wantPads:    []int{0, 0, 0, 0},
			wantKernel:  []int{3, 3},
			wantStrides: []int{1, 1},
		},
		{
			name:   "valid stride 2",
			opType: "Conv2D",
			input:  []int{1, 224, 224, 3}, weight: []int{3, 3, 3, 32},
			strides: []int{2, 2},
			padding: "VALID",
			want:    []int{1, 111, 111, 32},
			wantPads:    []int{0, 0, 0, 0},
			wantKernel:  []int{3, 3},
			wantStrides: []int{2, 2},
		},
		{
			name:   "dilation widens the kernel extent",
			opType: "Conv2D",
			input:  []int{1, 224, 224, 3}, weight: []int{3, 3, 3, 32},
			dilations: []int{1, 2, 2, 1},
			padding:   "SAME",
			want:      []int{1, 224, 224, 32},
			wantPads:    []int{2, 2, 2, 2},
			wantKernel:  []int{3, 3},
			wantStrides: []int{1, 1},
		},
		{
			name:   "depthwise channel count from the multiplier axis",
			opType: "DepthwiseConv2dNative",
			input:  []int{1, 112, 112, 32}, weight: []int{3, 3, 32, 1},
			strides: []int{1, 1, 1, 1},
			padding: "SAME",
			want:    []int{1, 112, 112, 32},
			wantPads:    []int{1, 1, 1, 1},
			wantKernel:  []int{3, 3},
			wantStrides: []int{1, 1},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			g := graphir.New()
			addNode(t, g, "in", "Placeholder", graphir.Attributes{Shape: tc.input})
			addNode(t, g, "w", "Const", graphir.Attributes{TensorShape: tc.weight})
			addNode(t, g, "conv", tc.opType, graphir.Attributes{
				Strides:   tc.strides,
				Dilations: tc.dilations,
				Padding:   tc.padding,
			}, "in", "w")

			require.NoError(t, Infer(g))
			conv := g.Node("conv")
			assert.Equal(t, tc.want, conv.OutputShapes[0].Dimensions)
			assert.Equal(t, tc.input, conv.InputShapes[0].Dimensions)

			// Derived attributes read by downstream feature extraction.
			assert.Equal(t, tc.wantPads, conv.Attr.Pads)
			assert.Equal(t, tc.wantKernel, conv.Attr.KernelShape)
			assert.Equal(t, tc.weight, conv.Attr.WeightShape)
			assert.Equal(t, tc.wantStrides, conv.Attr.Strides)
		})
	}
}

func TestConvRejectsBadParameters(t *testing.T) {
	build := func(attr graphir.Attributes, weight []int) *graphir.Graph {
		g := graphir.New()
		addNode(t, g, "in", "Placeholder", graphir.Attributes{Shape: []int{1, 224, 224, 3}})
		addNode(t, g, "w", "Const", graphir.Attributes{TensorShape: weight})
		addNode(t, g, "conv", "Conv2D", attr, "in", "w")
		return g
	}

	for _, tc := range []struct {
		name    string
		attr    graphir.Attributes
		weight  []int
		wantErr string
	}{
		{
			name: "non-unit batch stride",
			attr: graphir.Attributes{Strides: []int{2, 2, 2, 1}, Padding: "SAME"},
			weight: []int{3, 3, 3, 32}, wantErr: "batch and channel entries must be 1",
		},
		{
			name: "malformed strides",
			attr: graphir.Attributes{Strides: []int{2, 2, 2}, Padding: "SAME"},
			weight: []int{3, 3, 3, 32}, wantErr: "must have 2 or 4 entries",
		},
		{
			name: "unknown padding mode",
			attr: graphir.Attributes{Padding: "FULL"},
			weight: []int{3, 3, 3, 32}, wantErr: `unexpected padding mode "FULL"`,
		},
		{
			name: "weight not rank-4",
			attr: graphir.Attributes{Padding: "SAME"},
			weight: []int{3, 3, 3}, wantErr: "must be rank-4",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			g := build(tc.attr, tc.weight)
			err := Infer(g)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
			assert.Empty(t, g.Node("conv").OutputShapes)
		})
	}
}

func TestPooling(t *testing.T) {
	g := graphir.New()
	addNode(t, g, "in", "Placeholder", graphir.Attributes{Shape: []int{1, 112, 112, 64}})
	addNode(t, g, "max", "MaxPool", graphir.Attributes{
		KSize:   []int{1, 3, 3, 1},
		Strides: []int{1, 2, 2, 1},
		Padding: "SAME",
	}, "in")
	addNode(t, g, "avg", "AveragePooling2D", graphir.Attributes{
		KSize:   []int{2, 2},
		Strides: []int{2, 2},
		Padding: "VALID",
	}, "max")

	require.NoError(t, Infer(g))
	assert.Equal(t, []int{1, 56, 56, 64}, outputDims(t, g, "max"))
	// VALID: ceil((56 - 2 + 1) / 2) = 28.
	assert.Equal(t, []int{1, 28, 28, 64}, outputDims(t, g, "avg"))

	// The window and strides are trimmed to their spatial components.
	max := g.Node("max")
	assert.Equal(t, []int{3, 3}, max.Attr.KSize)
	assert.Equal(t, []int{2, 2}, max.Attr.Strides)
	assert.Equal(t, []int{0, 1, 0, 1}, max.Attr.Pads)
}

func TestWindowedOutput(t *testing.T) {
	// Degenerate window larger than the input: VALID collapses to zero.
	input := shapes.Make(dtypes.Float32, 1, 2, 2, 8)
	out, pads, err := windowedOutput(input, 8, 3, 3, 1, 1, "VALID")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 0, 8}, out.Dimensions)
	assert.Equal(t, []int{0, 0, 0, 0}, pads)

	_, _, err = windowedOutput(input, 8, 3, 3, 0, 1, "SAME")
	require.Error(t, err)
}
