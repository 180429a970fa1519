package export

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/iammorganparry/clive/apps/sessions/internal/models"
)

// Document is the YAML export layout.
type Document struct {
	Root     string       `yaml:"root"`
	Sessions []RecordDump `yaml:"sessions"`
}

// RecordDump is one exported record.
type RecordDump struct {
	Name       string                          `yaml:"name"`
	Display    string                          `yaml:"display"`
	Attributes map[string]models.AttributeView `yaml:"attributes"`
}

// YAMLExporter writes records as a single YAML document.
type YAMLExporter struct {
	src Source
}

func NewYAMLExporter(src Source) *YAMLExporter {
	return &YAMLExporter{src: src}
}

func (*YAMLExporter) FileTypeDescription() string { return "YAML Session File" }

func (*YAMLExporter) FileTypeExtension() string { return "yaml" }

func (e *YAMLExporter) Export(w io.Writer, sessions []*models.Session) (int, error) {
	doc := Document{Root: e.src.Root, Sessions: []RecordDump{}}
	for _, s := range sessions {
		_, attrs, ok, err := e.src.record(s.Name)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		dump := RecordDump{
			Name:       s.Name,
			Display:    s.DisplayText,
			Attributes: make(map[string]models.AttributeView, len(attrs)),
		}
		for n, v := range attrs {
			dump.Attributes[n] = v.View()
		}
		doc.Sessions = append(doc.Sessions, dump)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return 0, fmt.Errorf("encode yaml export: %w", err)
	}
	if err := enc.Close(); err != nil {
		return 0, fmt.Errorf("encode yaml export: %w", err)
	}
	return len(doc.Sessions), nil
}

// ReadDocument parses a YAML export back into typed attributes per record key.
func ReadDocument(r io.Reader) (string, map[string]models.Attributes, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return "", nil, fmt.Errorf("decode yaml export: %w", err)
	}
	out := make(map[string]models.Attributes, len(doc.Sessions))
	for _, rec := range doc.Sessions {
		attrs := make(models.Attributes, len(rec.Attributes))
		for n, view := range rec.Attributes {
			v, err := models.ParseValue(view.Kind, view.Value)
			if err != nil {
				return "", nil, fmt.Errorf("record %s attribute %s: %w", rec.Name, n, err)
			}
			attrs[n] = v
		}
		out[rec.Name] = attrs
	}
	return doc.Root, out, nil
}
