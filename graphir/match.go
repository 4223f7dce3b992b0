package graphir

import (
	"github.com/Andyyoung0507/nn-Meter/internal/utils"
)

// UnitNode is one constraint of a fusion-unit template: the alias names the
// position, Types lists the accepted op type tags.
type UnitNode struct {
	Alias string
	Types []string
}

// UnitEdge is a required producer→consumer relation between two aliases.
type UnitEdge struct {
	From, To string
}

// FusionUnit is a named micro-graph template matched against the graph before
// the pairwise fusion loop.
type FusionUnit struct {
	Name  string
	Nodes []UnitNode
	Edges []UnitEdge
}

// TypeMatcher decides whether a concrete node type satisfies an alias constraint.
type TypeMatcher func(nodeType string, accepted []string) bool

// OpTypeMatcher is the default matcher: exact equality with any accepted tag.
func OpTypeMatcher(nodeType string, accepted []string) bool {
	for _, t := range accepted {
		if nodeType == t {
			return true
		}
	}
	return false
}

// FindSubgraphs returns the non-overlapping occurrences of the template in
// the graph, each a mapping from alias to concrete node name. Matched nodes
// are inserted into consumed so later calls (for the same or other templates)
// cannot reuse them; pass a shared set to enforce non-overlap across an
// entire pre-fusion pass, or nil for a fresh one.
//
// Occurrences are collected first-fit, anchoring the template's first alias
// on each arena position in order.
func (g *Graph) FindSubgraphs(unit FusionUnit, matches TypeMatcher, consumed utils.Set[string]) []map[string]string {
	if len(unit.Nodes) == 0 {
		return nil
	}
	if consumed == nil {
		consumed = utils.MakeSet[string]()
	}
	var occurrences []map[string]string
	for _, anchor := range g.nodes {
		assignment := make(map[string]string, len(unit.Nodes))
		if !g.assignAlias(unit, 0, anchor, matches, consumed, assignment) {
			continue
		}
		for _, name := range assignment {
			consumed.Insert(name)
		}
		occurrences = append(occurrences, assignment)
	}
	return occurrences
}

// assignAlias tries to bind unit.Nodes[i] to the candidate node and then
// recursively bind the remaining aliases, backtracking on failure.
func (g *Graph) assignAlias(unit FusionUnit, i int, candidate *Node, matches TypeMatcher,
	consumed utils.Set[string], assignment map[string]string) bool {
	alias := unit.Nodes[i]
	if consumed.Has(candidate.Name) || !matches(candidate.Type, alias.Types) {
		return false
	}
	for _, bound := range assignment {
		if bound == candidate.Name {
			return false
		}
	}
	assignment[alias.Alias] = candidate.Name
	if g.edgesSatisfied(unit, assignment) {
		if i == len(unit.Nodes)-1 {
			return true
		}
		for _, next := range g.nodes {
			if g.assignAlias(unit, i+1, next, matches, consumed, assignment) {
				return true
			}
		}
	}
	delete(assignment, alias.Alias)
	return false
}

// edgesSatisfied checks every template edge whose endpoints are both bound.
func (g *Graph) edgesSatisfied(unit FusionUnit, assignment map[string]string) bool {
	for _, edge := range unit.Edges {
		from, okFrom := assignment[edge.From]
		to, okTo := assignment[edge.To]
		if !okFrom || !okTo {
			continue
		}
		found := false
		for _, consumer := range g.Node(from).Outbounds {
			if consumer == to {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
