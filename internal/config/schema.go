package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

const schemaURL = "https://github.com/Kargones/nwrfc/config.schema.json"

//go:embed schema.json
var schemaJSON []byte

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("разбор схемы конфигурации: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("регистрация схемы конфигурации: %w", err)
	}
	return c.Compile(schemaURL)
})

// validateDocument проверяет YAML-документ по встроенной схеме до того,
// как cleanenv заполнит структуру: опечатки в ключах и строковые поля,
// записанные числом (sysnr: 00), иначе молча теряются.
func validateDocument(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("разбор YAML: %w", err)
	}
	if doc == nil {
		return nil
	}
	schema, err := compileSchema()
	if err != nil {
		return err
	}
	return schema.Validate(doc)
}
