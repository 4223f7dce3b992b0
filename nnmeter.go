// Package nnmeter analyzes a neural-network computation graph to infer the
// shape of every tensor produced in it and to partition it into kernels --
// maximal groups of operators an inference runtime executes as one fused
// unit. The kernel partition is the unit downstream latency prediction
// operates on.
//
// Among its features:
//
//   - Graph IR annotation: per-op-type shape rules over a deterministic
//     traversal, with a corrective second pass for operators whose shape can
//     only be borrowed from a node that topologically follows them.
//   - Rule-driven segmentation: subgraph-template pre-fusion followed by a
//     pairwise greedy fusion loop with backtracking, steered by a declarative
//     fusion policy.
//
// Model parsing is not part of this module: a converter must hand over the
// structural form consumed by graphir.FromRecords. Per-node problems never
// abort a run -- they are logged, aggregated into the returned error, and the
// affected nodes are left with unset shapes.
package nnmeter

import (
	"github.com/Andyyoung0507/nn-Meter/graphir"
	"github.com/Andyyoung0507/nn-Meter/kerneldetect"
	"github.com/Andyyoung0507/nn-Meter/shapeinference"
)

// AnnotateShapes fills in the input/output shapes of every reachable node of
// the graph, in place. The returned error aggregates per-node conditions and
// is diagnostic only.
func AnnotateShapes(g *graphir.Graph) error {
	return shapeinference.Infer(g)
}

// DetectKernels partitions the graph into basic blocks under the given fusion
// policy. The graph is mutated in place by the pre-fusion pass; run
// AnnotateShapes first if the shape annotations are also needed downstream.
func DetectKernels(g *graphir.Graph, policy *kerneldetect.Policy) ([]kerneldetect.BasicBlock, error) {
	return kerneldetect.NewSplitter(policy).Split(g)
}
