// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config holds the external-interface presets for the directive-
// parallel thread pool (spec.md §5, §1 "out of scope, interfaces only").
package config

import "fmt"

// PoolConfig configures the Hybrid Executor's scheduling pool.
type PoolConfig struct {
	// MaxWorkers bounds concurrent directive-batch evaluation. 0 means
	// "scale with GOMAXPROCS", resolved by the caller at pool construction.
	MaxWorkers int
	// WarmThreshold/HotThreshold are the tier-promotion execution counts
	// (spec.md §3: WARM=10, HOT=100).
	WarmThreshold uint64
	HotThreshold  uint64
	// JITEnabled allows disabling tiers 2/3 entirely, forcing every chunk
	// to run on the VM — useful for debugging tier-equivalence failures.
	JITEnabled bool
}

// Default matches the spec's stated thresholds and leaves worker count to
// scale with core count.
func Default() PoolConfig {
	return PoolConfig{
		MaxWorkers:    0,
		WarmThreshold: 10,
		HotThreshold:  100,
		JITEnabled:    true,
	}
}

// presets maps every name Preset accepts to its configuration.
var presets = map[string]PoolConfig{
	"default": Default(),
	"single-threaded": {
		MaxWorkers:    1,
		WarmThreshold: 10,
		HotThreshold:  100,
		JITEnabled:    true,
	},
	"interpreter-only": {
		MaxWorkers:    0,
		WarmThreshold: 10,
		HotThreshold:  100,
		JITEnabled:    false,
	},
	"low-latency": {
		MaxWorkers:    4,
		WarmThreshold: 4,
		HotThreshold:  20,
		JITEnabled:    true,
	},
}

// Preset looks up a named configuration, for CLI/host-bridge consumption.
func Preset(name string) (PoolConfig, error) {
	cfg, ok := presets[name]
	if !ok {
		return PoolConfig{}, fmt.Errorf("config: unknown preset %q", name)
	}
	return cfg, nil
}

// PresetNames lists every valid Preset argument, for CLI help text.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	return names
}
