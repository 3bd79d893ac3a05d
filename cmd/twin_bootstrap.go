package cmd

import (
	"github.com/sirupsen/logrus"

	"github.com/dtwin/dtwin/twin"
	"github.com/dtwin/dtwin/twin/cluster"
	"github.com/dtwin/dtwin/twin/config"
	"github.com/dtwin/dtwin/twin/engine"
	"github.com/dtwin/dtwin/twin/policy"
	"github.com/dtwin/dtwin/twin/seed"
)

// bootstrapEngine builds a seeded Engine from a loaded Config, the shape
// every twin subcommand starts from. It never fails on a missing latency
// matrix: per spec.md §4.2 a missing matrix degrades to single-cluster
// mode rather than aborting.
func bootstrapEngine(cfg config.Config) (*engine.Engine, error) {
	state := twin.NewStateStore(cfg.AutoStartWatchers)
	if err := seed.Into(state); err != nil {
		return nil, err
	}

	var clusters policy.LatencyLookup
	if cfg.LatencyMatrixPath != "" {
		mgr, err := cluster.NewManager(cfg.LatencyMatrixPath)
		if err != nil {
			logrus.WithError(err).Warn("twin: latency matrix load failed, falling back to degraded single-cluster mode")
		} else {
			clusters = mgr
		}
	}

	key := twin.NewSimulationKey(int64(hashString(cfg.HTTPBindAddr)))
	return engine.New(state, clusters, nil, key, cfg.CVaR), nil
}

// hashString gives bootstrapEngine a stable, non-crypto seed derived from
// config rather than wall-clock time, keeping a given config's CVaR policy
// reproducible across restarts.
func hashString(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}
