package align

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// paramsFile is the on-disk YAML document: one parameter set per wavelength,
// in wavelength order.
type paramsFile struct {
	Wavelengths []Params `yaml:"wavelengths"`
}

// SaveParams writes parameter sets to a YAML file, one entry per wavelength.
func SaveParams(path string, params []Params) error {
	raw, err := yaml.Marshal(paramsFile{Wavelengths: params})
	if err != nil {
		return fmt.Errorf("encoding alignment parameters: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("writing alignment parameters: %w", err)
	}
	return nil
}

// LoadParams reads parameter sets from a YAML file written by SaveParams.
// Entries that omit zoom load as zoom 1 rather than a singular zero.
func LoadParams(path string) ([]Params, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading alignment parameters: %w", err)
	}
	var doc struct {
		Wavelengths []yaml.Node `yaml:"wavelengths"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing alignment parameters %s: %w", path, err)
	}
	params := make([]Params, len(doc.Wavelengths))
	for i, node := range doc.Wavelengths {
		params[i] = Identity()
		if err := node.Decode(&params[i]); err != nil {
			return nil, fmt.Errorf("parsing alignment parameters %s, wavelength %d: %w", path, i, err)
		}
	}
	return params, nil
}
