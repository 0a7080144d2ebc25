package goserde

import (
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

type yamlConfig struct {
	MaxDepth            int               `yaml:"maxDepth"`
	Flags               []string          `yaml:"flags"`
	Hooks               map[string]string `yaml:"hooks"`
	Normalizers         map[string]string `yaml:"normalizers"`
	OnUnknownProperty   string            `yaml:"onUnknownProperty"`
	RejectDuplicateKeys bool              `yaml:"rejectDuplicateKeys"`
}

// LoadConfig reads a YAML config document:
//
//	maxDepth: 8
//	flags: [pretty_print, unescaped_slashes]
//	hooks: {User: user_hook}
//	normalizers: {time.Time: rfc3339}
//	onUnknownProperty: error
//	rejectDuplicateKeys: true
//
// Hook and normalizer keys are type signatures. Services are not part of the
// document; attach them with WithServices.
func LoadConfig(r io.Reader) (Config, error) {
	var doc yamlConfig
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrap(err, "goserde: decode config")
	}
	cfg := NewConfig().WithMaxDepth(doc.MaxDepth).WithRejectDuplicateKeys(doc.RejectDuplicateKeys)
	var flags Flags
	for _, name := range doc.Flags {
		f, ok := flagNames[strings.ToLower(name)]
		if !ok {
			return Config{}, errors.Newf("goserde: unknown flag %q", name)
		}
		flags |= f
	}
	cfg = cfg.WithFlags(flags)
	switch strings.ToLower(doc.OnUnknownProperty) {
	case "", "ignore":
	case "error":
		cfg = cfg.WithUnknownProperty(UnknownError)
	default:
		return Config{}, errors.Newf("goserde: unknown onUnknownProperty %q", doc.OnUnknownProperty)
	}
	for sig, ref := range doc.Hooks {
		t, err := ParseType(sig)
		if err != nil {
			return Config{}, errors.Wrapf(err, "goserde: hook %q", ref)
		}
		cfg = cfg.WithHook(t, ref)
	}
	for sig, ref := range doc.Normalizers {
		t, err := ParseType(sig)
		if err != nil {
			return Config{}, errors.Wrapf(err, "goserde: normalizer %q", ref)
		}
		cfg = cfg.WithNormalizer(t, ref)
	}
	return cfg, nil
}
