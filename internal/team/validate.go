package team

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/kaptinlin/jsonschema"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

//go:embed team_schema.json
var teamSchema []byte

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiledSchema, schemaErr = compiler.Compile(teamSchema)
	})
	return compiledSchema, schemaErr
}

// validateSchema checks a decoded YAML document against the embedded
// schema. The document is normalized through JSON so numbers and maps have
// the shapes the validator expects.
func validateSchema(doc any) error {
	schema, err := loadSchema()
	if err != nil {
		return fmt.Errorf("compile team schema: %w", err)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return domain.NewDomainError("team.validateSchema", domain.ErrInvalidInput, err.Error())
	}
	var normalized any
	if err := json.Unmarshal(data, &normalized); err != nil {
		return domain.NewDomainError("team.validateSchema", domain.ErrInvalidInput, err.Error())
	}

	result := schema.Validate(normalized)
	if !result.IsValid() {
		return domain.NewDomainError("team.validateSchema", domain.ErrInvalidInput, fmt.Sprint(result.Error()))
	}
	return nil
}
