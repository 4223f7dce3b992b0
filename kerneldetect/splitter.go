package kerneldetect

import (
	"k8s.io/klog/v2"

	"github.com/Andyyoung0507/nn-Meter/graphir"
	"github.com/Andyyoung0507/nn-Meter/internal/utils"
)

// Splitter applies a fusion Policy to a graph: template pre-fusion first,
// then the single-pass, rule-checked, backtracking pairwise loop.
type Splitter struct {
	policy *Policy
}

// NewSplitter creates a Splitter over the given policy. The same Splitter can
// process any number of graphs; each Split call must own its graph.
func NewSplitter(policy *Policy) *Splitter {
	return &Splitter{policy: policy}
}

// Preprocess collapses every non-overlapping occurrence of each fusion-unit
// template into a single node labeled with the template name. Matched nodes
// are consumed across templates, so no node joins two templates in one pass.
func (s *Splitter) Preprocess(g *graphir.Graph) error {
	consumed := utils.MakeSet[string]()
	for _, unit := range s.policy.Units() {
		occurrences := g.FindSubgraphs(unit, graphir.OpTypeMatcher, consumed)
		if len(occurrences) > 0 {
			klog.V(1).Infof("fusion unit %q matched %d times", unit.Name, len(occurrences))
		}
		for _, occurrence := range occurrences {
			names := make([]string, 0, len(occurrence))
			for _, name := range occurrence {
				names = append(names, name)
			}
			if err := g.Fuse(names, unit.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

// Split partitions the graph into basic blocks.
//
// A cursor walks the traversal order once. Each un-fused node is marked ready
// and then tries to absorb its consumers, subject to the fusibility table and
// the rule flags. A successful fusion rewinds the cursor one step so the
// grown block can keep absorbing a chain of fusible consumers in the same
// round.
func (s *Splitter) Split(g *graphir.Graph) ([]BasicBlock, error) {
	if err := s.Preprocess(g); err != nil {
		return nil, err
	}
	fag := NewFusionAwareGraph(g)
	flags := s.policy.Flags()

	i := -1
	for i < fag.Len()-1 {
		i++
		if fag.IsFused(i) {
			continue
		}
		fag.MarkReady(i)
		outbounds := fag.Outbounds(i)
		if len(outbounds) == 0 {
			continue
		}
		if flags.MultiOut == MultiOutNever && len(outbounds) > 1 {
			continue
		}
		fused := false
		for _, j := range outbounds {
			if fag.IsFused(j) {
				continue
			}
			if !s.policy.Fusible(fag.Type(i), fag.Type(j)) {
				continue
			}
			if flags.RequireReady && !fag.IsReady(j) {
				continue
			}
			fag.Fuse(i, j, flags.MultiOut != MultiOutNever)
			fag.MarkReady(j)
			fused = true
			if flags.MultiOut == MultiOutFirst {
				break
			}
		}
		if fused {
			// Re-examine the grown block so a whole fusible chain is
			// absorbed in this round.
			i--
		}
	}
	return fag.BasicBlocks(), nil
}
