package schema

import (
	_ "embed"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed report.schema.json
var reportSchema []byte

// ReportSchema returns the embedded load-test report schema.
func ReportSchema() []byte {
	out := make([]byte, len(reportSchema))
	copy(out, reportSchema)
	return out
}

// Validate checks doc against the schema file at schemaPath.
func Validate(schemaPath string, doc any) ([]string, error) {
	return validate(schemaPath, gojsonschema.NewReferenceLoader("file://"+schemaPath), doc)
}

// ValidateReport checks doc against the embedded report schema.
func ValidateReport(doc any) ([]string, error) {
	return validate("report.schema.json", gojsonschema.NewBytesLoader(reportSchema), doc)
}

func validate(name string, schemaLoader gojsonschema.JSONLoader, doc any) ([]string, error) {
	docLoader := gojsonschema.NewGoLoader(doc)
	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return nil, fmt.Errorf("validate %s: %w", name, err)
	}
	if result.Valid() {
		return nil, nil
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		errs = append(errs, e.String())
	}
	return errs, nil
}
