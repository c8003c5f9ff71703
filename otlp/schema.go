package otlp

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// envelope shapes are loose by design: OTLP's JSON encoding omits
// empty arrays/objects freely, so the schema only pins down the
// top-level discriminator the bridge actually branches on.
const logsSchemaJSON = `{
	"type": "object",
	"properties": {
		"resourceLogs": {"type": "array", "items": {"type": "object"}}
	},
	"required": ["resourceLogs"]
}`

const metricsSchemaJSON = `{
	"type": "object",
	"properties": {
		"resourceMetrics": {"type": "array", "items": {"type": "object"}}
	},
	"required": ["resourceMetrics"]
}`

var (
	logsSchema    = gojsonschema.NewStringLoader(logsSchemaJSON)
	metricsSchema = gojsonschema.NewStringLoader(metricsSchemaJSON)
)

// ValidateLogsEnvelope structurally checks a raw logs payload before
// attribute decoding. It augments, rather than replaces, JSON decode
// errors — both map to the same "malformed input" taxonomy entry.
func ValidateLogsEnvelope(body []byte) error {
	return validate(logsSchema, body)
}

// ValidateMetricsEnvelope structurally checks a raw metrics payload.
func ValidateMetricsEnvelope(body []byte) error {
	return validate(metricsSchema, body)
}

func validate(schema gojsonschema.JSONLoader, body []byte) error {
	doc := gojsonschema.NewBytesLoader(body)
	result, err := gojsonschema.Validate(schema, doc)
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if !result.Valid() {
		if len(result.Errors()) > 0 {
			return fmt.Errorf("envelope does not match expected shape: %s", result.Errors()[0])
		}
		return fmt.Errorf("envelope does not match expected shape")
	}
	return nil
}
