package catalog

import "github.com/invopop/jsonschema"

// Schema describes the catalog file format for editor tooling.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(new(Document))
	schema.Title = "Hexclash Catalog"
	schema.Description = "Designer-authored templates, styles, equipment and status effects overlaid on the built-in catalog."
	return schema
}
