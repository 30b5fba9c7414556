package registry

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// Schema returns JSON schemas for registry.json and sources.json, keyed by
// file name.
func Schema() ([]byte, error) {
	r := &jsonschema.Reflector{}

	recordsSchema := r.Reflect(map[string]Record{})
	recordsSchema.Title = "forks registry"
	recordsSchema.Description = "Installed skill name to provenance record"

	sourcesSchema := r.Reflect([]string{})
	sourcesSchema.Title = "forks tracked sources"
	sourcesSchema.Description = "Sources added without installing a skill"

	out, err := json.MarshalIndent(map[string]*jsonschema.Schema{
		RegistryFileName: recordsSchema,
		SourcesFileName:  sourcesSchema,
	}, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal registry schema")
	}
	return out, nil
}
