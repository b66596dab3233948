package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	govModels "knomee/internal/governance/models"
)

// LoadGovernanceParams reads initial protocol parameters from a TOML file.
// Keys absent from the file keep their defaults; unknown keys are rejected.
// An empty path returns the defaults.
func LoadGovernanceParams(path string) (govModels.Params, error) {
	params := govModels.DefaultParams()
	if path == "" {
		return params, nil
	}
	md, err := toml.DecodeFile(path, &params)
	if err != nil {
		return govModels.Params{}, fmt.Errorf("decode governance file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return govModels.Params{}, fmt.Errorf("governance file %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if err := params.Validate(); err != nil {
		return govModels.Params{}, fmt.Errorf("governance file %s: %w", path, err)
	}
	return params, nil
}
