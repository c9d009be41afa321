package probe

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// overrideDoc is the on-disk YAML shape for SPEC_FULL.md §2.1's catalog
// override file: a map of probe id to a partial {ttl, timeout_seconds}
// patch. Grounded on the teacher's internal/config/loader.go use of
// gopkg.in/yaml.v3 for structured config documents.
type overrideDoc struct {
	Probes map[string]struct {
		TTL            string `yaml:"ttl"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"probes"`
}

// LoadOverrides reads a catalog override YAML file and applies it via
// ApplyOverrides. A missing path is not an error (the feature is optional).
func LoadOverrides(path string) error {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("probe: read catalog overrides: %w", err)
	}

	var doc overrideDoc
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("probe: parse catalog overrides: %w", err)
	}

	out := make(map[ID]Override, len(doc.Probes))
	for idStr, patch := range doc.Probes {
		id := ID(idStr)
		if !InCatalog(id) {
			return fmt.Errorf("probe: catalog override refers to unknown probe %q", idStr)
		}
		var o Override
		if patch.TTL != "" {
			ttl, err := parseTTLClass(patch.TTL)
			if err != nil {
				return fmt.Errorf("probe: override for %q: %w", idStr, err)
			}
			o.TTL = &ttl
		}
		if patch.TimeoutSeconds > 0 {
			d := time.Duration(patch.TimeoutSeconds) * time.Second
			o.Timeout = &d
		}
		out[id] = o
	}
	ApplyOverrides(out)
	return nil
}

func parseTTLClass(s string) (TTLClass, error) {
	switch s {
	case "static":
		return Static, nil
	case "slow":
		return Slow, nil
	case "fast":
		return Fast, nil
	default:
		return 0, fmt.Errorf("unknown ttl class %q (want static|slow|fast)", s)
	}
}
