package domain

import (
	"encoding/json"
	"fmt"
)

// Template is the extraction-config template loaded once at process start.
// It is read-only after ParseTemplate; the builder derives an independent
// SnapshotConfig per project and never writes back into the template.
//
// Top-level and dataset keys the pipeline does not interpret are preserved
// verbatim in Extra so the submitted document stays byte-compatible with
// whatever the operator configured.
type Template struct {
	Dataset    Dataset
	Categories []Category
	Extra      map[string]json.RawMessage
}

// Dataset is the template's dataset section. DatasetPrefix and DatasetTitle
// are rewritten per project; everything else passes through.
type Dataset struct {
	DatasetPrefix string
	DatasetTitle  string
	Extra         map[string]json.RawMessage
}

// Category is one entry of the template's categories list: a single-key
// mapping from canonical category name to that category's sub-configuration.
type Category struct {
	Name   string
	Config json.RawMessage
}

// SnapshotConfig is the per-project request document derived from a Template:
// dataset identifiers rewritten, categories filtered, geometry attached.
// Ephemeral; it exists only for the duration of one submission.
type SnapshotConfig struct {
	Dataset    Dataset
	Categories []Category
	Geometry   json.RawMessage
	Extra      map[string]json.RawMessage
}

// ParseTemplate parses and validates an extraction-config template document.
func ParseTemplate(data []byte) (*Template, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("invalid template JSON: %w", err)
	}

	tmpl := &Template{Extra: make(map[string]json.RawMessage)}

	rawDataset, ok := top["dataset"]
	if !ok {
		return nil, fmt.Errorf("template is missing the dataset section")
	}
	ds, err := parseDataset(rawDataset)
	if err != nil {
		return nil, err
	}
	tmpl.Dataset = *ds

	if rawCategories, ok := top["categories"]; ok {
		cats, err := parseCategories(rawCategories)
		if err != nil {
			return nil, err
		}
		tmpl.Categories = cats
	}

	for key, value := range top {
		if key == "dataset" || key == "categories" {
			continue
		}
		tmpl.Extra[key] = value
	}

	return tmpl, nil
}

func parseDataset(raw json.RawMessage) (*Dataset, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("template dataset section must be an object: %w", err)
	}

	ds := &Dataset{Extra: make(map[string]json.RawMessage)}
	for key, value := range fields {
		switch key {
		case "dataset_prefix":
			if err := json.Unmarshal(value, &ds.DatasetPrefix); err != nil {
				return nil, fmt.Errorf("dataset_prefix must be a string: %w", err)
			}
		case "dataset_title":
			if err := json.Unmarshal(value, &ds.DatasetTitle); err != nil {
				return nil, fmt.Errorf("dataset_title must be a string: %w", err)
			}
		default:
			ds.Extra[key] = value
		}
	}
	return ds, nil
}

func parseCategories(raw json.RawMessage) ([]Category, error) {
	var entries []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("template categories must be a list of objects: %w", err)
	}

	categories := make([]Category, 0, len(entries))
	for i, entry := range entries {
		if len(entry) != 1 {
			return nil, fmt.Errorf("template category %d must contain exactly one key, got %d", i, len(entry))
		}
		for name, cfg := range entry {
			categories = append(categories, Category{Name: name, Config: cfg})
		}
	}
	return categories, nil
}

// MarshalJSON renders the derived config in the wire shape the raw-data API
// expects: extras at top level plus dataset, categories and geometry.
func (c *SnapshotConfig) MarshalJSON() ([]byte, error) {
	top := make(map[string]json.RawMessage, len(c.Extra)+3)
	for key, value := range c.Extra {
		top[key] = value
	}

	dataset, err := marshalDataset(&c.Dataset)
	if err != nil {
		return nil, err
	}
	top["dataset"] = dataset

	categories := make([]map[string]json.RawMessage, 0, len(c.Categories))
	for _, cat := range c.Categories {
		categories = append(categories, map[string]json.RawMessage{cat.Name: cat.Config})
	}
	rawCategories, err := json.Marshal(categories)
	if err != nil {
		return nil, err
	}
	top["categories"] = rawCategories

	if len(c.Geometry) > 0 {
		top["geometry"] = c.Geometry
	}

	return json.Marshal(top)
}

func marshalDataset(ds *Dataset) (json.RawMessage, error) {
	fields := make(map[string]json.RawMessage, len(ds.Extra)+2)
	for key, value := range ds.Extra {
		fields[key] = value
	}

	prefix, err := json.Marshal(ds.DatasetPrefix)
	if err != nil {
		return nil, err
	}
	fields["dataset_prefix"] = prefix

	title, err := json.Marshal(ds.DatasetTitle)
	if err != nil {
		return nil, err
	}
	fields["dataset_title"] = title

	return json.Marshal(fields)
}
