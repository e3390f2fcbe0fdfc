// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package runtime

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrCyclicRequirements = errors.New("cyclic decision requirements")
	ErrDuplicateDecision  = errors.New("duplicate decision key")
)

// DecisionRequirementsGraph is a set of decisions loaded from one resource.
type DecisionRequirementsGraph struct {
	Key          string
	Name         string
	ResourceName string
	Checksum     [16]byte // internal checksum to identify different versions
	Decisions    map[string]*Decision
}

// NewDecisionRequirementsGraph validates the decisions and indexes them by
// key. Every required decision must be part of the graph and no decision may
// require itself, directly or transitively.
func NewDecisionRequirementsGraph(key, name string, decisions []*Decision) (*DecisionRequirementsGraph, error) {
	graph := &DecisionRequirementsGraph{
		Key:       key,
		Name:      name,
		Decisions: make(map[string]*Decision, len(decisions)),
	}
	var errJoin error
	for _, decision := range decisions {
		if _, found := graph.Decisions[decision.Key]; found {
			errJoin = errors.Join(errJoin, fmt.Errorf("%w: %s", ErrDuplicateDecision, decision.Key))
			continue
		}
		graph.Decisions[decision.Key] = decision
	}
	for _, decision := range decisions {
		for _, required := range decision.RequiredDecisions {
			if graph.Decisions[required.Key] != required {
				errJoin = errors.Join(errJoin, fmt.Errorf("decision %s requires decision %s which is not part of the graph", decision.Key, required.Key))
			}
		}
	}
	if errJoin != nil {
		return nil, errJoin
	}
	if err := checkCycles(decisions); err != nil {
		return nil, err
	}
	return graph, nil
}

// Decision returns the decision with the given key.
func (g *DecisionRequirementsGraph) Decision(key string) (*Decision, bool) {
	decision, ok := g.Decisions[key]
	return decision, ok
}

// DecisionKeys returns all decision keys in sorted order.
func (g *DecisionRequirementsGraph) DecisionKeys() []string {
	keys := make([]string, 0, len(g.Decisions))
	for key := range g.Decisions {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

func checkCycles(decisions []*Decision) error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[*Decision]int, len(decisions))
	var visit func(decision *Decision, path []string) error
	visit = func(decision *Decision, path []string) error {
		switch state[decision] {
		case visiting:
			return fmt.Errorf("%w: %s", ErrCyclicRequirements, strings.Join(append(path, decision.Key), " -> "))
		case done:
			return nil
		}
		state[decision] = visiting
		for _, required := range decision.RequiredDecisions {
			if err := visit(required, append(path, decision.Key)); err != nil {
				return err
			}
		}
		state[decision] = done
		return nil
	}
	for _, decision := range decisions {
		if err := visit(decision, nil); err != nil {
			return err
		}
	}
	return nil
}
