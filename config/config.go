// Copyright 2026 The jtmake Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads a declarative YAML rule-graph description into a
// jtmake.Graph. It is the front-end "group/rule construction DSL" spec.md
// calls out as an external collaborator to the core engine: it only ever
// builds jtmake.Rule values from a file on disk, and never participates in
// a staleness decision. Modeled on the YAML-driven configuration loading
// in obsidian-cli and mutagen.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/marcelocantos/jtmake"
)

// FileSpec declares one input file entry. Outputs are plain path strings
// in RuleSpec.Outputs.
type FileSpec struct {
	Key   []any  `yaml:"key"`
	Path  string `yaml:"path"`
	Value bool   `yaml:"value"`
}

// RuleSpec declares one rule in the YAML document.
type RuleSpec struct {
	Name    string          `yaml:"name"`
	Outputs []string        `yaml:"outputs"`
	Inputs  []FileSpec      `yaml:"inputs"`
	Method  string          `yaml:"method"`
	Args    []any           `yaml:"args"`
	Kwargs  map[string]any  `yaml:"kwargs"`
}

// Document is the top-level YAML shape.
type Document struct {
	MemoKind  string     `yaml:"memo_kind"`
	PickleKey string     `yaml:"pickle_key"`
	Dirname   string     `yaml:"dirname"`
	Prefix    string     `yaml:"prefix"`
	Rules     []RuleSpec `yaml:"rules"`
}

// Methods maps a method name referenced by RuleSpec.Method to the Go
// function that implements it. The YAML document cannot encode callables
// directly, so the front end supplies this registry.
type Methods map[string]jtmake.Method

// Load parses path as a Document and builds the corresponding jtmake.Graph,
// resolving each rule's method from methods.
func Load(path string, methods Methods) (*jtmake.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return Build(&doc, methods)
}

// Build constructs a jtmake.Graph from an already-parsed Document.
func Build(doc *Document, methods Methods) (*jtmake.Graph, error) {
	opts := jtmake.EngineOptions{Dirname: doc.Dirname, Prefix: doc.Prefix}
	if doc.MemoKind == "keyed" {
		key, err := jtmake.DecodeKey(doc.PickleKey)
		if err != nil {
			return nil, err
		}
		opts.MemoKind = jtmake.KeyedKind
		opts.PickleKey = key
	}

	engine, err := jtmake.NewEngine(opts)
	if err != nil {
		return nil, err
	}

	rules := make([]*jtmake.Rule, 0, len(doc.Rules))
	for _, rs := range doc.Rules {
		method, ok := methods[rs.Method]
		if !ok {
			return nil, fmt.Errorf("rule %q references unknown method %q", rs.Name, rs.Method)
		}

		outputs := make([]jtmake.File, 0, len(rs.Outputs))
		for _, p := range rs.Outputs {
			outputs = append(outputs, jtmake.NewPlainFile(engine.ResolvePath(p)))
		}

		inputs := make([]jtmake.Input, 0, len(rs.Inputs))
		for _, fs := range rs.Inputs {
			var f jtmake.File
			resolved := engine.ResolvePath(fs.Path)
			if fs.Value {
				f = jtmake.NewValueFile(resolved)
			} else {
				f = jtmake.NewPlainFile(resolved)
			}
			inputs = append(inputs, jtmake.Input{Key: jtmake.NestKey(fs.Key), File: f})
		}

		r, err := engine.NewRule(rs.Name, outputs, inputs, method, rs.Args, rs.Kwargs)
		if err != nil {
			return nil, fmt.Errorf("building rule %q: %w", rs.Name, err)
		}
		rules = append(rules, r)
	}

	return jtmake.NewGraph(rules)
}
