package harness

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
)

//go:embed schema.cue
var schemaSource []byte

var (
	schemaOnce sync.Once
	schemaCtx  *cue.Context
	schemaDef  cue.Value
	schemaErr  error
)

// SchemaError lists every structural problem CUE found in a scenario file.
type SchemaError struct {
	File    string
	Details string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("scenario %s does not match schema:\n%s", e.File, e.Details)
}

func loadSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile scenario schema: %w", err)
			return
		}
		schemaDef = v.LookupPath(cue.ParsePath("#Scenario"))
		if !schemaDef.Exists() {
			schemaErr = fmt.Errorf("scenario schema has no #Scenario definition")
		}
	})
	return schemaCtx, schemaDef, schemaErr
}

// ValidateSchema checks raw scenario YAML against the embedded CUE schema.
// filename is only used in error positions.
func ValidateSchema(filename string, data []byte) error {
	ctx, def, err := loadSchema()
	if err != nil {
		return err
	}

	file, err := cueyaml.Extract(filename, data)
	if err != nil {
		return fmt.Errorf("parse YAML: %w", err)
	}
	doc := ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return fmt.Errorf("build YAML value: %w", err)
	}

	unified := def.Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return &SchemaError{File: filename, Details: cueerrors.Details(err, nil)}
	}
	return nil
}
