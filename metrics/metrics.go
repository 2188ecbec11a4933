// Copyright 2026 The jtmake Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes Prometheus counters and histograms for a
// jtmake build run: rule outcomes and staleness-check latency. Modeled on
// shoal-provision's internal/provisioner/metrics package (package-level
// registry guarded by a mutex, a Reset for tests, label sanitization).
package metrics

import (
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marcelocantos/jtmake"
)

// Adapter implements jtmake.Observer against this package's process-wide
// registry, so a caller only needs jtmake.Options{Observer: metrics.Adapter{}}
// to wire a running build into Handler's /metrics endpoint.
type Adapter struct{}

var _ jtmake.Observer = Adapter{}

func (Adapter) ObserveRule(ruleName, outcome string)        { ObserveRule(ruleName, outcome) }
func (Adapter) ObserveStaleCheck(ruleName string, d time.Duration) { ObserveStaleCheck(ruleName, d) }
func (Adapter) ObserveBuild(d time.Duration)                { ObserveBuild(d) }

var (
	mu  sync.RWMutex
	reg *prometheus.Registry

	rulesTotal    *prometheus.CounterVec
	staleDuration *prometheus.HistogramVec
	buildDuration prometheus.Histogram
)

// Outcome labels used by ObserveRule.
const (
	OutcomeUpdated = "updated"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
	OutcomeBlocked = "blocked"
)

func init() {
	resetLocked()
}

// Reset clears and reinitializes all metrics collectors. Primarily used by
// tests to ensure clean state between runs.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	resetLocked()
}

// Handler returns an HTTP handler that exposes metrics in Prometheus format.
func Handler() http.Handler {
	mu.RLock()
	registry := reg
	mu.RUnlock()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ObserveRule records the terminal outcome of one rule's scheduling attempt.
func ObserveRule(ruleName, outcome string) {
	label := sanitizeLabel(ruleName, "unknown")

	mu.RLock()
	defer mu.RUnlock()
	if rulesTotal != nil {
		rulesTotal.WithLabelValues(label, outcome).Inc()
	}
}

// ObserveStaleCheck records how long a rule's staleness decision took.
func ObserveStaleCheck(ruleName string, d time.Duration) {
	label := sanitizeLabel(ruleName, "unknown")

	mu.RLock()
	defer mu.RUnlock()
	if staleDuration != nil {
		staleDuration.WithLabelValues(label).Observe(durationSeconds(d))
	}
}

// ObserveBuild records the wall-clock duration of a whole Graph.Make call.
func ObserveBuild(d time.Duration) {
	mu.RLock()
	defer mu.RUnlock()
	if buildDuration != nil {
		buildDuration.Observe(durationSeconds(d))
	}
}

func resetLocked() {
	registry := prometheus.NewRegistry()

	rules := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jtmake",
		Name:      "rules_total",
		Help:      "Total rules scheduled, grouped by rule name and terminal outcome.",
	}, []string{"rule", "outcome"})

	stale := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "jtmake",
		Name:      "stale_check_duration_seconds",
		Help:      "Duration of a rule's staleness decision.",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"rule"})

	build := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "jtmake",
		Name:      "build_duration_seconds",
		Help:      "Duration of a full Graph.Make invocation.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
	})

	registry.MustRegister(rules, stale, build)

	reg = registry
	rulesTotal = rules
	staleDuration = stale
	buildDuration = build
}

func sanitizeLabel(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	var b strings.Builder
	for _, r := range v {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ':' || r == '.' || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func durationSeconds(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return d.Seconds()
}
