package etl

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Dictionary maps raw SIVEP-Gripe column names to the analytic schema. It
// is maintained as a YAML file so new dataset revisions can be absorbed
// without code changes.
type Dictionary struct {
	// Columns maps a raw CSV header (e.g. DT_SIN_PRI) to an analytic
	// column name (e.g. onset_date) or to the intermediate birth_date
	// used for age derivation.
	Columns map[string]string `yaml:"columns"`
}

// LoadDictionary reads the data dictionary from path.
func LoadDictionary(path string) (*Dictionary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read data dictionary: %w", err)
	}
	var d Dictionary
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("parse data dictionary: %w", err)
	}
	if len(d.Columns) == 0 {
		return nil, fmt.Errorf("data dictionary %s has no column mappings", path)
	}
	return &d, nil
}
