// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package workflow

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Validate checks that every transition names an existing state and every
// resource, condition and join is registered.
func Validate[T any](g *Graph, reg *Registry[T]) error {
	var errs *multierror.Error
	validateGraph(g, reg, "", &errs)
	return errs.ErrorOrNil()
}

func validateGraph[T any](g *Graph, reg *Registry[T], path string, errs **multierror.Error) {
	fail := func(format string, args ...any) {
		*errs = multierror.Append(*errs, fmt.Errorf("%s%s", path, fmt.Sprintf(format, args...)))
	}
	if g == nil {
		fail("graph is nil")
		return
	}
	if _, ok := g.States[g.StartAt]; !ok {
		fail("startAt %q is not a state", g.StartAt)
	}
	target := func(from, kind, to string) {
		if _, ok := g.States[to]; !ok {
			fail("state %s: %s %q is not a state", from, kind, to)
		}
	}

	for name, s := range g.States {
		if s == nil {
			fail("state %s is nil", name)
			continue
		}
		if len(s.Catch) > 0 && s.Type != TypeParallel {
			fail("state %s: only Parallel states may catch", name)
		}
		switch s.Type {
		case TypeTask, TypeWait, TypeParallel:
			if s.End == (s.Next != "") {
				fail("state %s: exactly one of next or end is required", name)
			} else if s.Next != "" {
				target(name, "next", s.Next)
			}
		}
		switch s.Type {
		case TypeTask:
			if _, ok := reg.tasks[s.Resource]; !ok {
				fail("state %s: resource %q is not registered", name, s.Resource)
			}
		case TypeChoice:
			if len(s.Choices) == 0 {
				fail("state %s: choice without rules", name)
			}
			for _, rule := range s.Choices {
				if _, ok := reg.conditions[rule.Condition]; !ok {
					fail("state %s: condition %q is not registered", name, rule.Condition)
				}
				target(name, "choice", rule.Next)
			}
			if s.Default != "" {
				target(name, "default", s.Default)
			}
		case TypeWait:
			if s.Seconds < 0 {
				fail("state %s: negative wait", name)
			}
		case TypeParallel:
			if len(s.Branches) == 0 {
				fail("state %s: parallel without branches", name)
			}
			if s.Join != "" {
				if _, ok := reg.joins[s.Join]; !ok {
					fail("state %s: join %q is not registered", name, s.Join)
				}
			} else if len(s.Branches) > 1 {
				fail("state %s: %d branches need a join", name, len(s.Branches))
			}
			for i, b := range s.Branches {
				validateGraph(b, reg, fmt.Sprintf("%s%s[%d]: ", path, name, i), errs)
			}
			for _, c := range s.Catch {
				if len(c.ErrorEquals) == 0 {
					fail("state %s: catcher without errorEquals", name)
				}
				target(name, "catch", c.Next)
			}
		case TypeSucceed:
		case TypeFail:
			if s.Error == "" {
				fail("state %s: fail state without error name", name)
			}
		default:
			fail("state %s: unknown type %q", name, s.Type)
		}
	}
}
