package parser

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// recordSchema is the shape the prompt asks for. Items that fail it are
// still mined for fields, and counted as coerced.
const recordSchema = `{
  "type": "object",
  "properties": {
    "especie_cientifica":    {"type": "string", "minLength": 1},
    "nombre_comun":          {"type": "string"},
    "uso_precolombino":      {"type": "string"},
    "justificacion_del_uso": {"type": "string"}
  },
  "required": ["especie_cientifica", "nombre_comun", "uso_precolombino"],
  "additionalProperties": false
}`

type itemValidator struct {
	schema *jsonschema.Schema
}

func newItemValidator() *itemValidator {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("record.json", strings.NewReader(recordSchema)); err != nil {
		panic("parser: add record schema: " + err.Error())
	}
	return &itemValidator{schema: compiler.MustCompile("record.json")}
}

func (v *itemValidator) valid(item map[string]any) bool {
	return v.schema.Validate(item) == nil
}
