package diagnosis

import (
	"github.com/getkin/kin-openapi/openapi3"
)

var (
	requiredKeys = []string{"diagnosis", "confidence", "root_causes"}
	resultSchema = newResultSchema()
)

// newResultSchema leaves confidence and probability untyped: an unrecognized level,
// including a number, decodes to Unknown instead of rejecting the reply.
func newResultSchema() *openapi3.Schema {
	rootCause := openapi3.NewObjectSchema().
		WithProperty("cause", openapi3.NewStringSchema().WithMinLength(1)).
		WithProperty("probability", openapi3.NewSchema().WithNullable())
	rootCause.Required = []string{"cause"}

	schema := openapi3.NewObjectSchema().
		WithProperty("diagnosis", openapi3.NewStringSchema().WithMinLength(1)).
		WithProperty("confidence", openapi3.NewSchema().WithNullable()).
		WithProperty("root_causes", openapi3.NewArraySchema().WithItems(rootCause)).
		WithProperty("resolution_plan", openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema())).
		WithProperty("preventative_actions", openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema())).
		WithProperty("disclaimer", openapi3.NewStringSchema())
	schema.Required = requiredKeys
	schema.AdditionalProperties = openapi3.AdditionalProperties{Has: openapi3.BoolPtr(false)}
	return schema
}

// validateResult checks a decoded generation against the result schema.
// Top-level nulls count as omitted keys.
func validateResult(doc map[string]any) error {
	for key, value := range doc {
		if value == nil {
			delete(doc, key)
		}
	}
	return resultSchema.VisitJSON(doc)
}
