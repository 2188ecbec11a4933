// Copyright 2026 The jtmake Authors
// SPDX-License-Identifier: Apache-2.0

package jtmake

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Observer receives telemetry for a Make run. Implementations must be safe
// for concurrent use, since rules may be observed from multiple goroutines
// under njobs>1. The jtmake/metrics package provides a Prometheus-backed
// implementation; Options.Observer is nil by default, at which point no
// telemetry is recorded beyond the structured log lines.
type Observer interface {
	ObserveRule(ruleName, outcome string)
	ObserveStaleCheck(ruleName string, d time.Duration)
	ObserveBuild(d time.Duration)
}

// Graph is an immutable arena of rule records plus integer dependency
// indices (spec §9 — "do not embed back-pointers; the scheduler walks by
// index").
type Graph struct {
	rules       []*Rule
	outputIndex map[string]int
}

// NewGraph builds a Graph from rules, deriving each rule's DepRules from
// its inputs: every input whose path matches another rule's output
// contributes that rule's index, in declared input order. Two rules
// claiming the same output path fail construction with KindDuplicateOutput.
func NewGraph(rules []*Rule) (*Graph, error) {
	outputIndex := make(map[string]int, len(rules))
	for i, r := range rules {
		for _, out := range r.Outputs {
			if j, dup := outputIndex[out.Path]; dup {
				return nil, newErr(KindDuplicateOutput, out.Path, fmt.Errorf("rules %d and %d both produce %q", j, i, out.Path))
			}
			outputIndex[out.Path] = i
		}
	}

	for _, r := range rules {
		r.DepRules = r.DepRules[:0]
		seen := make(map[int]bool)
		for _, in := range r.Inputs {
			if j, ok := outputIndex[in.File.Path]; ok && !seen[j] {
				r.DepRules = append(r.DepRules, j)
				seen[j] = true
			}
		}
	}

	return &Graph{rules: rules, outputIndex: outputIndex}, nil
}

// Rules returns the graph's rules in construction order.
func (g *Graph) Rules() []*Rule { return g.rules }

// Resolve returns the index of the rule producing the given output path.
func (g *Graph) Resolve(outputPath string) (int, bool) {
	idx, ok := g.outputIndex[outputPath]
	return idx, ok
}

// Options configures a Make invocation.
type Options struct {
	DryRun    bool
	KeepGoing bool
	// Njobs is the maximum number of concurrent user methods; values < 1
	// are treated as 1 (strictly sequential).
	Njobs int
	// Logger receives structured debug/error telemetry for rule state
	// transitions. Defaults to slog.Default() when nil.
	Logger *slog.Logger
	// Observer, if set, receives per-rule and per-run metrics.
	Observer Observer
}

// Summary reports the outcome of a Make invocation.
type Summary struct {
	Total   int
	Updated int
	Skipped int
	Failed  int
}

type ruleOutcome int

const (
	outcomePending ruleOutcome = iota
	outcomeDoneUpdated
	outcomeDoneSkipped
	outcomeFailed
	outcomeBlocked
)

type buildResult struct {
	done    chan struct{}
	outcome ruleOutcome
}

type scheduler struct {
	g       *Graph
	cache   *HashCache
	opts    Options
	logger  *slog.Logger
	runID   string
	sem     chan struct{}
	aborted int32

	mu      sync.Mutex
	results map[int]*buildResult
	errs    map[int]error
}

// Make runs staleCheck/method over the transitive closure of deps of
// targetPaths, in dependency order, honoring opts.DryRun, opts.KeepGoing
// and opts.Njobs (spec §4.5, §5).
func (g *Graph) Make(ctx context.Context, targetPaths []string, opts Options) (Summary, error) {
	targetIdx := make([]int, 0, len(targetPaths))
	for _, p := range targetPaths {
		idx, ok := g.Resolve(p)
		if !ok {
			return Summary{}, fmt.Errorf("no rule produces %q", p)
		}
		targetIdx = append(targetIdx, idx)
	}
	return g.MakeRules(ctx, targetIdx, opts)
}

// MakeRules is Make, addressing targets by rule index instead of output
// path.
func (g *Graph) MakeRules(ctx context.Context, targetIdx []int, opts Options) (Summary, error) {
	njobs := opts.Njobs
	if njobs < 1 {
		njobs = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &scheduler{
		g:       g,
		cache:   NewHashCache(),
		opts:    opts,
		logger:  logger,
		runID:   uuid.NewString(),
		results: make(map[int]*buildResult),
		errs:    make(map[int]error),
	}
	if njobs > 1 {
		s.sem = make(chan struct{}, njobs)
	}

	closure, err := closureOf(g, targetIdx)
	if err != nil {
		return Summary{}, err
	}

	logger.Debug("jtmake: starting run", "run_id", s.runID, "targets", len(targetIdx), "closure", len(closure), "njobs", njobs)

	start := time.Now()
	for _, idx := range targetIdx {
		s.build(ctx, idx)
	}
	if opts.Observer != nil {
		opts.Observer.ObserveBuild(time.Since(start))
	}

	sum := Summary{Total: len(closure)}
	for idx := range closure {
		s.mu.Lock()
		res := s.results[idx]
		s.mu.Unlock()
		if res == nil {
			continue
		}
		switch res.outcome {
		case outcomeDoneUpdated:
			sum.Updated++
		case outcomeDoneSkipped:
			sum.Skipped++
		case outcomeFailed:
			sum.Failed++
		}
	}

	var retErr error
	if sum.Failed > 0 {
		s.mu.Lock()
		for idx, e := range s.errs {
			retErr = fmt.Errorf("rule %q: %w", g.rules[idx].Name, e)
			break
		}
		s.mu.Unlock()
	}

	logger.Debug("jtmake: run complete", "run_id", s.runID, "total", sum.Total, "updated", sum.Updated, "skipped", sum.Skipped, "failed", sum.Failed)
	return sum, retErr
}

// closureOf computes the transitive closure of dependencies of roots and
// detects cycles (spec §4.5 steps 1-2).
func closureOf(g *Graph, roots []int) (map[int]bool, error) {
	const (
		white = iota
		gray
		black
	)
	color := make(map[int]int)
	closure := make(map[int]bool)

	var visit func(idx int) error
	visit = func(idx int) error {
		switch color[idx] {
		case gray:
			return newErr(KindCycleDetected, g.rules[idx].Name, fmt.Errorf("cycle through rule %q", g.rules[idx].Name))
		case black:
			return nil
		}
		color[idx] = gray
		for _, d := range g.rules[idx].DepRules {
			if err := visit(d); err != nil {
				return err
			}
		}
		color[idx] = black
		closure[idx] = true
		return nil
	}

	for _, r := range roots {
		if err := visit(r); err != nil {
			return nil, err
		}
	}
	return closure, nil
}

// build runs idx's dependencies then idx itself, memoizing the outcome so
// that a rule shared by multiple targets (or reachable via multiple paths)
// runs exactly once. At njobs=1 dependencies are walked strictly
// sequentially in declared input order, giving the deterministic ordering
// spec §4.5 requires; at njobs>1 dependencies fan out concurrently and only
// the reported outcome is guaranteed.
func (s *scheduler) build(ctx context.Context, idx int) ruleOutcome {
	s.mu.Lock()
	if res, ok := s.results[idx]; ok {
		s.mu.Unlock()
		<-res.done
		return res.outcome
	}
	res := &buildResult{done: make(chan struct{})}
	s.results[idx] = res
	s.mu.Unlock()

	outcome := s.runOne(ctx, idx)
	res.outcome = outcome
	close(res.done)
	return outcome
}

func (s *scheduler) runOne(ctx context.Context, idx int) ruleOutcome {
	rule := s.g.rules[idx]

	depOutcomes := make([]ruleOutcome, len(rule.DepRules))
	if s.opts.Njobs > 1 {
		var wg sync.WaitGroup
		for i, d := range rule.DepRules {
			wg.Add(1)
			go func(i, d int) {
				defer wg.Done()
				depOutcomes[i] = s.build(ctx, d)
			}(i, d)
		}
		wg.Wait()
	} else {
		for i, d := range rule.DepRules {
			depOutcomes[i] = s.build(ctx, d)
		}
	}

	parUpdated := false
	blocked := false
	for _, o := range depOutcomes {
		switch o {
		case outcomeDoneUpdated:
			parUpdated = true
		case outcomeFailed, outcomeBlocked:
			blocked = true
		}
	}
	if blocked {
		s.logger.Debug("jtmake: rule blocked by failed dependency", "run_id", s.runID, "rule", rule.Name)
		s.observeRule(rule.Name, outcomeBlocked)
		return outcomeBlocked
	}

	if atomic.LoadInt32(&s.aborted) == 1 {
		s.observeRule(rule.Name, outcomeBlocked)
		return outcomeBlocked
	}

	if s.sem != nil {
		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			return outcomeBlocked
		}
		defer func() { <-s.sem }()
	}

	if atomic.LoadInt32(&s.aborted) == 1 {
		s.observeRule(rule.Name, outcomeBlocked)
		return outcomeBlocked
	}

	staleStart := time.Now()
	status, err := staleCheck(rule, parUpdated, s.opts.DryRun, s.cache)
	if s.opts.Observer != nil {
		s.opts.Observer.ObserveStaleCheck(rule.Name, time.Since(staleStart))
	}
	if err != nil {
		s.fail(idx, rule, err)
		return outcomeFailed
	}
	if status == UpToDate {
		s.logger.Debug("jtmake: up to date", "run_id", s.runID, "rule", rule.Name)
		s.observeRule(rule.Name, outcomeDoneSkipped)
		return outcomeDoneSkipped
	}

	preprocess(rule)

	if s.opts.DryRun {
		s.logger.Debug("jtmake: would update (dry run)", "run_id", s.runID, "rule", rule.Name)
		s.observeRule(rule.Name, outcomeDoneUpdated)
		return outcomeDoneUpdated
	}

	s.logger.Debug("jtmake: running", "run_id", s.runID, "rule", rule.Name, "call", rule.DescribeCall())
	methodErr := rule.method(rule)
	success := methodErr == nil
	postprocess(rule, success, s.cache)

	if !success {
		s.fail(idx, rule, newErr(KindRuleMethodFailed, rule.MetadataPath(), methodErr))
		return outcomeFailed
	}
	s.observeRule(rule.Name, outcomeDoneUpdated)
	return outcomeDoneUpdated
}

func (s *scheduler) fail(idx int, rule *Rule, err error) {
	s.mu.Lock()
	s.errs[idx] = err
	s.mu.Unlock()
	s.logger.Error("jtmake: rule failed", "run_id", s.runID, "rule", rule.Name, "error", err)
	s.observeRule(rule.Name, outcomeFailed)
	if !s.opts.KeepGoing {
		atomic.StoreInt32(&s.aborted, 1)
	}
}

func (s *scheduler) observeRule(ruleName string, outcome ruleOutcome) {
	if s.opts.Observer == nil {
		return
	}
	var label string
	switch outcome {
	case outcomeDoneUpdated:
		label = "updated"
	case outcomeDoneSkipped:
		label = "skipped"
	case outcomeFailed:
		label = "failed"
	case outcomeBlocked:
		label = "blocked"
	default:
		return
	}
	s.opts.Observer.ObserveRule(ruleName, label)
}
