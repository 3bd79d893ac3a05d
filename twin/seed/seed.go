// Package seed loads the canned demo topology used by every cmd subcommand
// (via bootstrapEngine) and by the HTTP adaptor's safety-net re-seed path,
// paralleling
// original_source/app.py's seed_state call.
package seed

import (
	"bytes"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/dtwin/dtwin/twin"
)

//go:embed fixture.yaml
var fixtureYAML []byte

type fixtureNode struct {
	Name      string             `yaml:"name"`
	Available bool               `yaml:"available"`
	Hardware  twin.Hardware      `yaml:"hardware"`
	K8s       twin.K8sAllocatable `yaml:"k8s"`
	Tel       twin.Telemetry     `yaml:"tel"`
	Power     twin.PowerProfile  `yaml:"power"`
}

type fixtureCluster struct {
	ID    string        `yaml:"id"`
	Nodes []fixtureNode `yaml:"nodes"`
}

type fixture struct {
	Clusters []fixtureCluster `yaml:"clusters"`
}

// Into populates state with the embedded two-cluster, mixed GPU/CPU/ARM
// demo topology. Safe to call repeatedly; PutNode overwrites by name.
func Into(state *twin.StateStore) error {
	var f fixture
	dec := yaml.NewDecoder(bytes.NewReader(fixtureYAML))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return fmt.Errorf("seed: decode embedded fixture: %w", err)
	}

	for _, c := range f.Clusters {
		for _, n := range c.Nodes {
			node := twin.Node{
				Name:      n.Name,
				Available: n.Available,
				Hardware:  n.Hardware,
				K8s:       n.K8s,
				Tel:       n.Tel,
				Power:     n.Power,
			}
			state.PutNode(node, c.ID)
		}
	}
	return nil
}
