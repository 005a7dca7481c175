// pkg/manifest/types.go
package manifest

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// AnchorKey is the top-level key holding the package table
const AnchorKey = "install_files"

// DefaultSource is the dependency document published with the Roman notebooks
const DefaultSource = "https://raw.githubusercontent.com/spacetelescope/roman_notebooks/refs/heads/main/refdata_dependencies.yaml"

// DependencySpec describes one package's reference data
type DependencySpec struct {
	Package     string  `yaml:"-" toml:"-" json:"package"`
	Variable    string  `yaml:"environment_variable" toml:"environment_variable" json:"environment_variable"`
	URLs        URLList `yaml:"data_url" toml:"data_url" json:"data_url"`
	InstallPath string  `yaml:"install_path" toml:"install_path" json:"install_path"`
	DataPath    string  `yaml:"data_path" toml:"data_path" json:"data_path"`
	Version     Version `yaml:"version" toml:"version" json:"version,omitempty"`
}

// Document is a decoded dependency document. Specs keep document order.
type Document struct {
	Source string
	Specs  []DependencySpec
}

// Lookup returns the spec for a package id
func (d *Document) Lookup(pkg string) (DependencySpec, bool) {
	for _, s := range d.Specs {
		if s.Package == pkg {
			return s, true
		}
	}
	return DependencySpec{}, false
}

// URLList accepts either a single URL or a list of URLs
type URLList []string

func (u *URLList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" || node.Value == "" {
			*u = nil
			return nil
		}
		*u = URLList{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*u = list
		return nil
	default:
		return fmt.Errorf("line %d: data_url must be a string or a list of strings", node.Line)
	}
}

func (u *URLList) UnmarshalTOML(data any) error {
	switch v := data.(type) {
	case string:
		*u = URLList{v}
	case []any:
		list := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("data_url entries must be strings, got %T", item)
			}
			list = append(list, s)
		}
		*u = list
	default:
		return fmt.Errorf("data_url must be a string or an array of strings, got %T", data)
	}
	return nil
}

// Version is informational. Documents write it as a string or a bare number.
type Version string

func (v *Version) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: version must be a scalar", node.Line)
	}
	if node.Tag == "!!null" {
		*v = ""
		return nil
	}
	*v = Version(strings.TrimSpace(node.Value))
	return nil
}

func (v *Version) UnmarshalTOML(data any) error {
	*v = Version(fmt.Sprint(data))
	return nil
}

func (v Version) String() string {
	return string(v)
}
