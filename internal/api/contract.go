package api

import (
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var openapiSpec []byte

// Contract loads the embedded OpenAPI document describing the REST contract
// this client consumes. Contract tests validate the client's outgoing
// requests against it.
func Contract() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openapiSpec)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded OpenAPI document: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("embedded OpenAPI document is invalid: %w", err)
	}
	return doc, nil
}
