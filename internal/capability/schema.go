package capability

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// 配置接口返回的载荷先过一遍 JSON Schema，再做反序列化和业务校验。
// schema 只约束结构，defaultModel ∈ models 这类不变量由 validateTable 检查。
const configSchema = `{
  "type": "object",
  "required": ["success"],
  "properties": {
    "success": {"type": "boolean"},
    "error": {"type": "string"},
    "config": {
      "type": "object",
      "required": ["providers"],
      "properties": {
        "defaultProvider": {"type": "string"},
        "defaultTemperature": {
          "type": "object",
          "properties": {
            "edit": {"type": "number"},
            "generate": {"type": "number"}
          }
        },
        "providers": {
          "type": "object",
          "minProperties": 1,
          "additionalProperties": {
            "type": "object",
            "required": ["defaultModel", "models"],
            "properties": {
              "name": {"type": "string"},
              "apiKeyPrefix": {"type": "string"},
              "apiKeyLabel": {"type": "string"},
              "apiKeyPlaceholder": {"type": "string"},
              "defaultModel": {"type": "string"},
              "models": {
                "type": "array",
                "minItems": 1,
                "items": {
                  "type": "object",
                  "required": ["value"],
                  "properties": {
                    "value": {"type": "string"},
                    "text": {"type": "string"}
                  }
                }
              },
              "imageOptions": {"type": "object"}
            }
          }
        }
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func payloadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("config.json", strings.NewReader(configSchema)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile("config.json")
	})
	return compiledSchema, schemaErr
}

// validatePayload 对原始响应做结构校验。
func validatePayload(raw []byte) error {
	schema, err := payloadSchema()
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	return schema.Validate(doc)
}
