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

// Package workflow interprets a serializable state graph. States are
// typed (Task, Choice, Wait, Parallel, Succeed, Fail) and transitions
// are plain state names, so a graph can be built as data, printed,
// validated and run against a Registry of named functions.
package workflow

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

type StateType string

const (
	TypeTask     StateType = "Task"
	TypeChoice   StateType = "Choice"
	TypeWait     StateType = "Wait"
	TypeParallel StateType = "Parallel"
	TypeSucceed  StateType = "Succeed"
	TypeFail     StateType = "Fail"
)

// Graph is a start state plus the states reachable from it. Branches of
// a Parallel state are Graphs themselves.
type Graph struct {
	Comment        string            `yaml:"comment,omitempty" json:"comment,omitempty"`
	StartAt        string            `yaml:"startAt" json:"startAt"`
	TimeoutSeconds int               `yaml:"timeoutSeconds,omitempty" json:"timeoutSeconds,omitempty"`
	States         map[string]*State `yaml:"states" json:"states"`
}

type State struct {
	Type    StateType `yaml:"type" json:"type"`
	Comment string    `yaml:"comment,omitempty" json:"comment,omitempty"`

	// Task
	Resource       string `yaml:"resource,omitempty" json:"resource,omitempty"`
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty" json:"timeoutSeconds,omitempty"`

	Next string `yaml:"next,omitempty" json:"next,omitempty"`
	End  bool   `yaml:"end,omitempty" json:"end,omitempty"`

	// Choice
	Choices []ChoiceRule `yaml:"choices,omitempty" json:"choices,omitempty"`
	Default string       `yaml:"default,omitempty" json:"default,omitempty"`

	// Wait
	Seconds int `yaml:"seconds,omitempty" json:"seconds,omitempty"`

	// Parallel
	Branches []*Graph  `yaml:"branches,omitempty" json:"branches,omitempty"`
	Join     string    `yaml:"join,omitempty" json:"join,omitempty"`
	Catch    []Catcher `yaml:"catch,omitempty" json:"catch,omitempty"`

	// Fail
	Error string `yaml:"error,omitempty" json:"error,omitempty"`
	Cause string `yaml:"cause,omitempty" json:"cause,omitempty"`
}

// ChoiceRule routes to Next when the named condition holds.
type ChoiceRule struct {
	Condition string `yaml:"condition" json:"condition"`
	Next      string `yaml:"next" json:"next"`
}

// Catcher routes a failed Parallel state to Next when the error name is
// listed in ErrorEquals. ErrorAll matches every name.
type Catcher struct {
	ErrorEquals []string `yaml:"errorEquals" json:"errorEquals"`
	Next        string   `yaml:"next" json:"next"`
}

func (c Catcher) matches(name string) bool {
	for _, e := range c.ErrorEquals {
		if e == ErrorAll || e == name {
			return true
		}
	}
	return false
}

// YAML renders the graph for operators.
func (g *Graph) YAML() ([]byte, error) {
	b, err := yaml.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("marshal graph: %w", err)
	}
	return b, nil
}

// ParseGraph reads a graph previously rendered with YAML.
func ParseGraph(b []byte) (*Graph, error) {
	var g Graph
	if err := yaml.Unmarshal(b, &g); err != nil {
		return nil, fmt.Errorf("unmarshal graph: %w", err)
	}
	return &g, nil
}
