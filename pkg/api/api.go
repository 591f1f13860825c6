// Package api embeds the OpenAPI document served at GET /openapi.yaml.
package api

import _ "embed"

//go:embed openapi.yaml
var OpenAPISpec []byte
