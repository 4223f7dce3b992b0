// Package kerneldetect partitions a shape-annotated operator graph into
// kernels: maximal groups of operators an inference runtime executes as one
// fused unit.
//
// The partition is driven by a declarative, empirically-derived Policy: named
// multi-op fusion units collapsed before the main loop, a pairwise
// fusibility table, and rule flags steering the greedy loop's edge cases.
// A Policy is immutable after construction and may be shared across
// concurrent split runs; each run must own its Graph exclusively.
package kerneldetect

import (
	"github.com/pkg/errors"

	"github.com/Andyyoung0507/nn-Meter/graphir"
)

// MultiOutPolicy governs whether a node with more than one consumer may still
// be fused forward, and into how many of its consumers.
type MultiOutPolicy int

const (
	// MultiOutNever forbids fusing any node that has multiple consumers.
	MultiOutNever MultiOutPolicy = iota
	// MultiOutFirst fuses a multi-consumer node into its first fusible
	// consumer only.
	MultiOutFirst
	// MultiOutAll fuses a multi-consumer node into every fusible consumer.
	MultiOutAll
)

// RuleFlags are the named policy switches of one split run. They are read
// once per run and never change during it.
type RuleFlags struct {
	// MultiOut is the multiplicity switch.
	MultiOut MultiOutPolicy

	// RequireReady only allows absorbing a consumer that has already been
	// visited as a fusion source itself.
	RequireReady bool
}

type pair struct {
	producer, consumer string
}

// Policy is the full fusion configuration: pre-fusion templates, the pairwise
// fusibility table, and the rule flags.
type Policy struct {
	units   []graphir.FusionUnit
	fusible map[pair]bool
	flags   RuleFlags
}

// NewPolicy builds an immutable Policy. Each fusible entry is an ordered
// (producer type, consumer type) pair; unlisted pairs are not fusible.
func NewPolicy(units []graphir.FusionUnit, fusiblePairs [][2]string, flags RuleFlags) *Policy {
	p := &Policy{
		units:   append([]graphir.FusionUnit(nil), units...),
		fusible: make(map[pair]bool, len(fusiblePairs)),
		flags:   flags,
	}
	for _, fp := range fusiblePairs {
		p.fusible[pair{producer: fp[0], consumer: fp[1]}] = true
	}
	return p
}

// Units returns the pre-fusion templates in declaration order.
func (p *Policy) Units() []graphir.FusionUnit { return p.units }

// Fusible reports whether the producer op type may fuse into the consumer op
// type. The lookup is order-sensitive and closed-world: unlisted pairs are
// not fusible, never an error.
func (p *Policy) Fusible(producer, consumer string) bool {
	return p.fusible[pair{producer: producer, consumer: consumer}]
}

// Flags returns the rule switches.
func (p *Policy) Flags() RuleFlags { return p.flags }

// MultiOutPolicyFromString parses the multiplicity switch's configuration
// spelling.
func MultiOutPolicyFromString(s string) (MultiOutPolicy, error) {
	switch s {
	case "", "never":
		return MultiOutNever, nil
	case "first":
		return MultiOutFirst, nil
	case "all":
		return MultiOutAll, nil
	}
	return MultiOutNever, errors.Errorf("unknown multi-out policy %q (want never, first, or all)", s)
}
