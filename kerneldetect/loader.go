package kerneldetect

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/Andyyoung0507/nn-Meter/graphir"
)

// policyFile is the on-disk form of a fusion-rule configuration, produced by
// the rule-detection tooling.
type policyFile struct {
	FusionUnits []struct {
		Name  string `yaml:"name"`
		Nodes []struct {
			Alias string   `yaml:"alias"`
			Types []string `yaml:"types"`
		} `yaml:"nodes"`
		Edges [][]string `yaml:"edges"`
	} `yaml:"fusion_units"`
	Fusible [][]string `yaml:"fusible"`
	Rules   struct {
		MultiOut     string `yaml:"multi_out"`
		RequireReady bool   `yaml:"require_ready"`
	} `yaml:"rules"`
}

// LoadPolicy reads a YAML fusion-rule configuration.
func LoadPolicy(r io.Reader) (*Policy, error) {
	var file policyFile
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, errors.WithMessage(err, "parsing fusion policy")
	}

	units := make([]graphir.FusionUnit, 0, len(file.FusionUnits))
	for _, u := range file.FusionUnits {
		if u.Name == "" {
			return nil, errors.Errorf("fusion unit without a name")
		}
		unit := graphir.FusionUnit{Name: u.Name}
		aliases := make(map[string]bool, len(u.Nodes))
		for _, n := range u.Nodes {
			if n.Alias == "" || len(n.Types) == 0 {
				return nil, errors.Errorf("fusion unit %q has a node without alias or accepted types", u.Name)
			}
			if aliases[n.Alias] {
				return nil, errors.Errorf("fusion unit %q repeats alias %q", u.Name, n.Alias)
			}
			aliases[n.Alias] = true
			unit.Nodes = append(unit.Nodes, graphir.UnitNode{Alias: n.Alias, Types: n.Types})
		}
		for _, e := range u.Edges {
			if len(e) != 2 {
				return nil, errors.Errorf("fusion unit %q has a malformed edge %v", u.Name, e)
			}
			if !aliases[e[0]] || !aliases[e[1]] {
				return nil, errors.Errorf("fusion unit %q edge %v references an unknown alias", u.Name, e)
			}
			unit.Edges = append(unit.Edges, graphir.UnitEdge{From: e[0], To: e[1]})
		}
		units = append(units, unit)
	}

	fusiblePairs := make([][2]string, 0, len(file.Fusible))
	for _, fp := range file.Fusible {
		if len(fp) != 2 {
			return nil, errors.Errorf("fusible entry %v must be a (producer, consumer) pair", fp)
		}
		fusiblePairs = append(fusiblePairs, [2]string{fp[0], fp[1]})
	}

	multiOut, err := MultiOutPolicyFromString(file.Rules.MultiOut)
	if err != nil {
		return nil, err
	}
	flags := RuleFlags{MultiOut: multiOut, RequireReady: file.Rules.RequireReady}
	return NewPolicy(units, fusiblePairs, flags), nil
}

// LoadPolicyFile reads a YAML fusion-rule configuration from a path.
func LoadPolicyFile(path string) (*Policy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithMessagef(err, "opening fusion policy %q", path)
	}
	defer f.Close()
	return LoadPolicy(f)
}
