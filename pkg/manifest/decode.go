// pkg/manifest/decode.go
package manifest

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format is the authoring format of a dependency document
type Format int

const (
	FormatYAML Format = iota
	FormatTOML
)

func (f Format) String() string {
	if f == FormatTOML {
		return "toml"
	}
	return "yaml"
}

// FormatFor picks the format from a file name or URL. Anything that is not
// .toml is read as YAML.
func FormatFor(name string) Format {
	if u, err := url.Parse(name); err == nil && u.Scheme != "" && u.Path != "" {
		name = u.Path
	}
	if strings.EqualFold(path.Ext(name), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Decode parses and validates a dependency document
func Decode(data []byte, format Format) (*Document, error) {
	var (
		specs []DependencySpec
		err   error
	)
	switch format {
	case FormatTOML:
		specs, err = decodeTOML(data)
	default:
		specs, err = decodeYAML(data)
	}
	if err != nil {
		return nil, err
	}

	doc := &Document{Specs: specs}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

func decodeYAML(data []byte) ([]DependencySpec, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: parsing yaml: %v", ErrInvalid, err)
	}

	if len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return nil, &Error{Reason: fmt.Sprintf("missing %q section", AnchorKey)}
	}
	top := root.Content[0]

	var table *yaml.Node
	for i := 0; i+1 < len(top.Content); i += 2 {
		if top.Content[i].Value == AnchorKey {
			table = top.Content[i+1]
			break
		}
	}
	if table == nil {
		return nil, &Error{Reason: fmt.Sprintf("missing %q section", AnchorKey)}
	}
	if table.Kind == yaml.ScalarNode && table.Tag == "!!null" {
		return nil, nil
	}
	if table.Kind != yaml.MappingNode {
		return nil, &Error{Reason: fmt.Sprintf("%q must be a mapping of packages", AnchorKey)}
	}

	specs := make([]DependencySpec, 0, len(table.Content)/2)
	for i := 0; i+1 < len(table.Content); i += 2 {
		name := table.Content[i].Value
		body := table.Content[i+1]
		if body.Kind != yaml.MappingNode {
			return nil, &Error{Package: name, Reason: "entry must be a mapping"}
		}

		if !hasKey(body, "data_path") {
			return nil, &Error{Package: name, Field: "data_path", Reason: "required"}
		}

		var spec DependencySpec
		if err := body.Decode(&spec); err != nil {
			return nil, &Error{Package: name, Reason: err.Error()}
		}
		spec.Package = name
		specs = append(specs, spec)
	}
	return specs, nil
}

func decodeTOML(data []byte) ([]DependencySpec, error) {
	var raw struct {
		InstallFiles map[string]DependencySpec `toml:"install_files"`
	}
	md, err := toml.Decode(string(data), &raw)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing toml: %v", ErrInvalid, err)
	}
	if !md.IsDefined(AnchorKey) {
		return nil, &Error{Reason: fmt.Sprintf("missing %q section", AnchorKey)}
	}

	// Keys come back in document order; package tables sit one level down.
	specs := make([]DependencySpec, 0, len(raw.InstallFiles))
	seen := make(map[string]bool, len(raw.InstallFiles))
	for _, key := range md.Keys() {
		if len(key) < 2 || key[0] != AnchorKey || seen[key[1]] {
			continue
		}
		name := key[1]
		spec, ok := raw.InstallFiles[name]
		if !ok {
			continue
		}
		if !md.IsDefined(AnchorKey, name, "data_path") {
			return nil, &Error{Package: name, Field: "data_path", Reason: "required"}
		}
		seen[name] = true
		spec.Package = name
		specs = append(specs, spec)
	}
	return specs, nil
}

// Validate checks that every spec has the fields an install needs. An empty
// data_path is allowed and means the install path itself.
func (d *Document) Validate() error {
	for _, s := range d.Specs {
		switch {
		case strings.TrimSpace(s.Variable) == "":
			return &Error{Package: s.Package, Field: "environment_variable", Reason: "required"}
		case !variableName.MatchString(s.Variable):
			return &Error{Package: s.Package, Field: "environment_variable", Reason: fmt.Sprintf("%q is not a valid variable name", s.Variable)}
		case s.URLs == nil:
			return &Error{Package: s.Package, Field: "data_url", Reason: "required"}
		case strings.TrimSpace(s.InstallPath) == "":
			return &Error{Package: s.Package, Field: "install_path", Reason: "required"}
		}
		for _, u := range s.URLs {
			if strings.TrimSpace(u) == "" {
				return &Error{Package: s.Package, Field: "data_url", Reason: "empty URL"}
			}
		}
	}
	return nil
}

// variableName is the portable shell variable syntax
var variableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func hasKey(m *yaml.Node, key string) bool {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return true
		}
	}
	return false
}
