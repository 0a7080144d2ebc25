package resolver

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	goserde "github.com/reoring/goserde"
)

type yamlSchema struct {
	Classes map[string]yamlClass `yaml:"classes"`
}

type yamlClass struct {
	Properties []yamlProperty `yaml:"properties"`
}

type yamlProperty struct {
	Name string `yaml:"name"`
	Wire string `yaml:"wire"`
	Type string `yaml:"type"`
}

// LoadYAML reads class definitions into a Static table:
//
//	classes:
//	  User:
//	    properties:
//	      - {name: id, type: int}
//	      - {name: displayName, wire: display_name, type: "?string"}
//	      - {name: friends, type: "list<User>"}
//
// Instances are map[string]any keyed by property name.
func LoadYAML(r io.Reader) (*Static, error) {
	var doc yamlSchema
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "resolver: decode schema")
	}
	s := NewStatic()
	for class, def := range doc.Classes {
		props := make([]goserde.Property, 0, len(def.Properties))
		for i, p := range def.Properties {
			if p.Name == "" {
				return nil, errors.Newf("resolver: %s property %d has no name", class, i)
			}
			t, err := goserde.ParseType(p.Type)
			if err != nil {
				return nil, errors.Wrapf(err, "resolver: %s.%s", class, p.Name)
			}
			props = append(props, PropAs(p.Name, p.Wire, t))
		}
		s.Define(class, props...)
	}
	return s, nil
}

// LoadYAMLFile is LoadYAML over the file at path.
func LoadYAMLFile(path string) (*Static, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "resolver: open schema")
	}
	defer f.Close()
	return LoadYAML(f)
}
