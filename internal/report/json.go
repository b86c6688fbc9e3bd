package report

import (
	"encoding/json"

	"github.com/ogulcanaydogan/perfreport/pkg/types"
)

func BuildJSON(doc types.Document) ([]byte, error) {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(raw, '\n'), nil
}
