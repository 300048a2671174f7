// Package dictionary loads phrase dictionaries from YAML files, validates
// them, and reloads them when the file changes on disk.
//
// Example file:
//
//	dictionaries:
//	  - id: 1
//	    name: Greetings
//	    applies_to: operator
//	    color: "#00ff00"
//	    phrases:
//	      - здравствуйте
//	      - добрый день
package dictionary

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/callmark/pkg/types"
)

// File is the top-level structure of a dictionary YAML file.
type File struct {
	Dictionaries []types.Dictionary `yaml:"dictionaries"`
}

// Load reads, parses and validates the dictionary file at path.
func Load(path string) ([]types.Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dictionary: open %q: %w", path, err)
	}
	defer f.Close()

	dicts, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("dictionary: load %q: %w", path, err)
	}
	return dicts, nil
}

// LoadFromReader parses dictionary YAML from r, applies defaults and
// validates the result. Unknown keys are rejected.
func LoadFromReader(r io.Reader) ([]types.Dictionary, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("dictionary: decode yaml: %w", err)
	}

	ApplyDefaults(f.Dictionaries)
	if err := Validate(f.Dictionaries); err != nil {
		return nil, err
	}
	return f.Dictionaries, nil
}

// ApplyDefaults fills in the scope and colour of dictionaries that don't set
// them.
func ApplyDefaults(dicts []types.Dictionary) {
	for i := range dicts {
		if dicts[i].AppliesTo == "" {
			dicts[i].AppliesTo = types.ScopeBoth
		}
		if dicts[i].Color == "" {
			dicts[i].Color = types.DefaultColor
		}
	}
}
