package segtool

import (
	"errors"
	"fmt"
	"strings"
)

// Model selects either a pretrained network shipped with the tool or a
// custom model file on disk.
type Model struct {
	name   string
	path   string
	custom bool
}

// Pretrained returns a model referring to a network bundled with the tool.
func Pretrained(name string) Model {
	return Model{name: strings.TrimSpace(name)}
}

// Custom returns a model referring to a user-trained model file.
func Custom(path string) Model {
	return Model{path: strings.TrimSpace(path), custom: true}
}

// IsCustom reports whether the model is a model file.
func (m Model) IsCustom() bool { return m.custom }

// Arg returns the value passed to --pretrained_model.
func (m Model) Arg() string {
	if m.custom {
		return m.path
	}
	return m.name
}

func (m Model) String() string {
	if m.custom {
		return "custom:" + m.path
	}
	return m.name
}

// Validate checks the model against the profile's pretrained list.
func (m Model) Validate(p Profile) error {
	if m.custom {
		if m.path == "" {
			return errors.New("custom model path is empty")
		}
		return nil
	}
	if m.name == "" {
		return errors.New("pretrained model name is empty")
	}
	for _, known := range p.PretrainedModels {
		if known == m.name {
			return nil
		}
	}
	return fmt.Errorf("unknown %s model %q (known: %s)", p.Name, m.name, strings.Join(p.PretrainedModels, ", "))
}

// ParseModel interprets a configuration value: "custom" selects the custom
// path, anything else names a pretrained model.
func ParseModel(name, customPath string) Model {
	if strings.EqualFold(strings.TrimSpace(name), "custom") {
		return Custom(customPath)
	}
	return Pretrained(name)
}
