package deploy

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// RootDocument is the server's entry point: a named set of link templates
// describing every collection and action the server exposes.
type RootDocument struct {
	Application    string `json:"Application,omitempty"    yaml:"Application,omitempty"`
	Version        string `json:"Version,omitempty"        yaml:"Version,omitempty"`
	APIVersion     string `json:"ApiVersion,omitempty"     yaml:"ApiVersion,omitempty"`
	InstallationID string `json:"InstallationId,omitempty" yaml:"InstallationId,omitempty"`
	Links          Links  `json:"Links"                    yaml:"Links"`
}

// Link returns the template registered for rel.
func (d *RootDocument) Link(rel string) (string, bool) {
	if d == nil {
		return "", false
	}

	return d.Links.Href(rel)
}

// UnmarshalJSON accepts both the enveloped form ({"Links": {...}}) and a flat
// object mapping relation names to templates.
func (d *RootDocument) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRootDocument, err)
	}

	return d.fromMap(raw)
}

// ParseRootDocumentYAML parses a root document from YAML (or JSON, which is
// a YAML subset), in either the enveloped or the flat form.
func ParseRootDocumentYAML(data []byte) (*RootDocument, error) {
	var raw map[string]interface{}

	err := yaml.Unmarshal(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRootDocument, err)
	}

	doc := &RootDocument{}

	err = doc.fromMap(raw)
	if err != nil {
		return nil, err
	}

	return doc, nil
}

// MarshalYAML writes the enveloped form.
func (d *RootDocument) MarshalYAML() (interface{}, error) {
	out := map[string]interface{}{"Links": map[string]string(d.Links)}

	for key, value := range d.meta() {
		if value != "" {
			out[key] = value
		}
	}

	return out, nil
}

func (d *RootDocument) meta() map[string]string {
	return map[string]string{
		"Application":    d.Application,
		"Version":        d.Version,
		"ApiVersion":     d.APIVersion,
		"InstallationId": d.InstallationID,
	}
}

func (d *RootDocument) fromMap(raw map[string]interface{}) error {
	if raw == nil {
		return fmt.Errorf("%w: empty document", ErrInvalidRootDocument)
	}

	d.Links = Links{}

	if nested, ok := raw["Links"]; ok {
		linkMap, ok := nested.(map[string]interface{})
		if !ok {
			return fmt.Errorf("%w: Links is not an object", ErrInvalidRootDocument)
		}

		for rel, value := range linkMap {
			href, ok := value.(string)
			if !ok {
				return fmt.Errorf("%w: link %q is not a string", ErrInvalidRootDocument, rel)
			}

			d.Links[rel] = href
		}

		d.Application, _ = raw["Application"].(string)
		d.Version, _ = raw["Version"].(string)
		d.APIVersion, _ = raw["ApiVersion"].(string)
		d.InstallationID, _ = raw["InstallationId"].(string)

		return nil
	}

	// Flat form: every string-valued member is a relation.
	for rel, value := range raw {
		if href, ok := value.(string); ok {
			d.Links[rel] = href
		}
	}

	return nil
}
