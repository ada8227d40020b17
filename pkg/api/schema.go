package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const maxBodyBytes = 1 << 20

const issueRequestSchema = `{
  "type": "object",
  "required": ["farm_id", "crop"],
  "additionalProperties": false,
  "properties": {
    "farm_id": {"type": "string", "minLength": 1, "maxLength": 128},
    "crop":    {"type": "string", "minLength": 1, "maxLength": 128}
  }
}`

const verifyRequestSchema = `{
  "type": "object",
  "required": ["token"],
  "additionalProperties": false,
  "properties": {
    "token": {"type": "string", "minLength": 1, "maxLength": 8192}
  }
}`

var (
	issueSchema  = mustCompile("issue", issueRequestSchema)
	verifySchema = mustCompile("verify", verifyRequestSchema)
)

func mustCompile(name, schema string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := fmt.Sprintf("https://trustmesh.schemas.local/api/%s.schema.json", name)
	if err := c.AddResource(url, strings.NewReader(schema)); err != nil {
		panic(fmt.Sprintf("api schema %s: %v", name, err))
	}
	return c.MustCompile(url)
}

// decodeBody reads a size-limited JSON body, validates it against schema and
// decodes it into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, schema *jsonschema.Schema, dst any) error {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", err)
	}

	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("request does not match schema: %w", err)
	}
	return json.Unmarshal(raw, dst)
}
