// SPDX-License-Identifier: MIT

// Package matrix computes the set of job combinations declared by a
// workflow's strategy block: the cross-product of every axis's candidate
// values, minus any combination matched by an exclusion rule.
//
// Expansion is deterministic. Axes keep their declaration order and the
// product is row-major, so later axes vary fastest. Re-expanding the same
// spec always yields the same combinations in the same order, which is what
// makes re-runs of an unchanged workflow reproducible.
package matrix

import (
	"fmt"
	"strings"
)

// Axis is a named dimension with an ordered sequence of candidate values.
type Axis struct {
	Name   string
	Values []string
}

// Exclusion removes every combination that matches all of its constraints.
// A constraint key must name a declared axis.
type Exclusion map[string]string

// Spec is the full matrix declaration of a single job.
type Spec struct {
	Axes     []Axis
	Excludes []Exclusion
}

// Combination is one fully-assigned pick of one value per axis.
type Combination struct {
	// Names holds the axis names in declaration order.
	Names []string
	// Values maps each axis name to the picked value.
	Values map[string]string
}

// Label renders the combination as "v1, v2, ..." in axis order. Job instance
// IDs are built from this, so it must stay stable across runs.
func (c Combination) Label() string {
	parts := make([]string, 0, len(c.Names))
	for _, name := range c.Names {
		parts = append(parts, c.Values[name])
	}
	return strings.Join(parts, ", ")
}

// Validate checks the structural integrity of the spec before expansion.
func (s *Spec) Validate() error {
	seen := make(map[string]struct{}, len(s.Axes))
	for _, axis := range s.Axes {
		if axis.Name == "" {
			return fmt.Errorf("matrix axis with empty name")
		}
		if _, dup := seen[axis.Name]; dup {
			return fmt.Errorf("matrix axis %q declared more than once", axis.Name)
		}
		seen[axis.Name] = struct{}{}
		if len(axis.Values) == 0 {
			return fmt.Errorf("matrix axis %q has no values", axis.Name)
		}
	}
	for _, excl := range s.Excludes {
		if len(excl) == 0 {
			return fmt.Errorf("matrix exclude rule with no constraints")
		}
		for key := range excl {
			if _, ok := seen[key]; !ok {
				return fmt.Errorf("matrix exclude rule references unknown axis %q", key)
			}
		}
	}
	return nil
}

// Expand returns every surviving combination of the spec.
//
// A spec with no axes expands to exactly one empty combination, so a job
// without a matrix still materializes as a single instance.
func (s *Spec) Expand() []Combination {
	names := make([]string, len(s.Axes))
	for i, axis := range s.Axes {
		names[i] = axis.Name
	}

	combos := []Combination{{Names: names, Values: map[string]string{}}}
	for _, axis := range s.Axes {
		next := make([]Combination, 0, len(combos)*len(axis.Values))
		for _, base := range combos {
			for _, value := range axis.Values {
				picked := make(map[string]string, len(base.Values)+1)
				for k, v := range base.Values {
					picked[k] = v
				}
				picked[axis.Name] = value
				next = append(next, Combination{Names: names, Values: picked})
			}
		}
		combos = next
	}

	if len(s.Excludes) == 0 {
		return combos
	}

	kept := combos[:0]
	for _, combo := range combos {
		if !s.excluded(combo) {
			kept = append(kept, combo)
		}
	}
	return kept
}

// excluded reports whether any exclusion rule matches the combination. A
// rule matches only when every one of its constraints holds.
func (s *Spec) excluded(combo Combination) bool {
	for _, excl := range s.Excludes {
		matched := true
		for key, want := range excl {
			if combo.Values[key] != want {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}
