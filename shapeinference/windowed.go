package shapeinference

import (
	"github.com/pkg/errors"

	"github.com/Andyyoung0507/nn-Meter/graphir"
	"github.com/Andyyoung0507/nn-Meter/types/shapes"
)

// spatial extracts the (h, w) components of a windowed-op parameter vector,
// which converters hand over either as [h w] or in NHWC form [1 h w 1].
// A nil vector defaults to (1, 1).
func spatial(v []int) (h, w int, err error) {
	switch len(v) {
	case 0:
		return 1, 1, nil
	case 2:
		return v[0], v[1], nil
	case 4:
		return v[1], v[2], nil
	}
	return 0, 0, errors.Errorf("parameter vector %v must have 2 or 4 entries", v)
}

// checkUnitAxes rejects NHWC parameter vectors with a non-unit value on the
// batch or channel axis.
func checkUnitAxes(v []int, what string) error {
	if len(v) == 4 && (v[0] != 1 || v[3] != 1) {
		return errors.Errorf("invalid %s %v: batch and channel entries must be 1", what, v)
	}
	return nil
}

// windowedOutput computes the output shape of a windowed op over an NHWC
// input, plus the padding [top bottom left right] the padding mode implies.
//
// "SAME" ceil-divides each spatial dimension by the stride and pads just
// enough to exactly cover the input, splitting floor/ceil between the two
// sides. "VALID" adds no padding: output = ceil((input - kernel + 1) / stride).
func windowedOutput(input shapes.Shape, cout, kernelH, kernelW, strideH, strideW int, padding string) (shapes.Shape, []int, error) {
	if input.Rank() != 4 {
		return shapes.Invalid(), nil, errors.Errorf("windowed ops need an NHWC rank-4 input, got %s", input)
	}
	if strideH < 1 || strideW < 1 {
		return shapes.Invalid(), nil, errors.Errorf("strides (%d, %d) must be >= 1", strideH, strideW)
	}
	inH, inW := input.Dim(1), input.Dim(2)

	var outH, outW int
	var pads []int
	switch padding {
	case "SAME":
		outH = ceilDiv(inH, strideH)
		outW = ceilDiv(inW, strideW)
		padH := max((outH-1)*strideH+kernelH-inH, 0)
		padW := max((outW-1)*strideW+kernelW-inW, 0)
		pads = []int{padH / 2, padH - padH/2, padW / 2, padW - padW/2}
	case "VALID":
		outH = ceilDiv(inH-kernelH+1, strideH)
		outW = ceilDiv(inW-kernelW+1, strideW)
		pads = []int{0, 0, 0, 0}
	default:
		return shapes.Invalid(), nil, errors.Errorf("unexpected padding mode %q", padding)
	}

	return shapes.Make(input.DType, input.Dim(0), outH, outW, cout), pads, nil
}

// ceilDiv is ceil(a / b) for b >= 1; a non-positive numerator yields 0.
func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

func convRule(g *graphir.Graph, n *graphir.Node) ([]shapes.Shape, []shapes.Shape, error) {
	return convLike(g, n, false)
}

func depthwiseConvRule(g *graphir.Graph, n *graphir.Node) ([]shapes.Shape, []shapes.Shape, error) {
	return convLike(g, n, true)
}

// convLike shapes regular and depthwise 2D convolutions. The output channel
// count comes from the weight tensor: its trailing dimension for a regular
// convolution, its input-channel dimension for a depthwise one.
func convLike(g *graphir.Graph, n *graphir.Node, depthwise bool) ([]shapes.Shape, []shapes.Shape, error) {
	weight, weightShape, err := g.WeightRoot(n)
	if err != nil {
		return nil, nil, err
	}
	if len(weightShape) != 4 {
		return nil, nil, errors.Errorf("weight tensor shape %v must be rank-4", weightShape)
	}
	data, err := g.DataRoot(n, weight)
	if err != nil {
		return nil, nil, err
	}
	if len(data.OutputShapes) == 0 {
		return nil, nil, errors.Errorf("data predecessor %q has no output shape yet", data.Name)
	}
	input := data.OutputShapes[0].Clone()

	if err := checkUnitAxes(n.Attr.Strides, "strides"); err != nil {
		return nil, nil, err
	}
	if err := checkUnitAxes(n.Attr.Dilations, "dilations"); err != nil {
		return nil, nil, err
	}
	strideH, strideW, err := spatial(n.Attr.Strides)
	if err != nil {
		return nil, nil, err
	}
	dilationH, dilationW, err := spatial(n.Attr.Dilations)
	if err != nil {
		return nil, nil, err
	}
	if dilationH < 1 || dilationW < 1 {
		return nil, nil, errors.Errorf("dilations (%d, %d) must be >= 1", dilationH, dilationW)
	}

	cout := weightShape[3]
	if depthwise {
		cout = weightShape[2]
	}

	// Effective kernel extent under dilation.
	kernelH := (weightShape[0]-1)*dilationH + 1
	kernelW := (weightShape[1]-1)*dilationW + 1

	output, pads, err := windowedOutput(input, cout, kernelH, kernelW, strideH, strideW, n.Attr.Padding)
	if err != nil {
		return nil, nil, err
	}

	// Downstream feature extraction reads the derived forms.
	n.Attr.KernelShape = []int{weightShape[0], weightShape[1]}
	n.Attr.WeightShape = append([]int(nil), weightShape...)
	n.Attr.Strides = []int{strideH, strideW}
	n.Attr.Dilations = []int{dilationH, dilationW}
	n.Attr.Pads = pads

	return []shapes.Shape{input}, []shapes.Shape{output}, nil
}

// poolRule shapes AvgPool/MaxPool: the window comes from the ksize attribute
// and the channel count is unchanged.
func poolRule(g *graphir.Graph, n *graphir.Node) ([]shapes.Shape, []shapes.Shape, error) {
	if len(n.Inbounds) != 1 {
		return nil, nil, errors.Errorf("pooling needs exactly one predecessor, got %d", len(n.Inbounds))
	}
	input, err := producerShape(g, n, 0)
	if err != nil {
		return nil, nil, err
	}
	if input.Rank() != 4 {
		return nil, nil, errors.Errorf("pooling needs an NHWC rank-4 input, got %s", input)
	}
	if err := checkUnitAxes(n.Attr.Strides, "strides"); err != nil {
		return nil, nil, err
	}
	kernelH, kernelW, err := spatial(n.Attr.KSize)
	if err != nil {
		return nil, nil, err
	}
	strideH, strideW, err := spatial(n.Attr.Strides)
	if err != nil {
		return nil, nil, err
	}

	output, pads, err := windowedOutput(input, input.Dim(3), kernelH, kernelW, strideH, strideW, n.Attr.Padding)
	if err != nil {
		return nil, nil, err
	}

	n.Attr.KSize = []int{kernelH, kernelW}
	n.Attr.Strides = []int{strideH, strideW}
	n.Attr.Pads = pads

	return []shapes.Shape{input}, []shapes.Shape{output}, nil
}
