package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const schemaBaseURL = "https://door-simulator.local/schemas/"

// Schema names under schemas/.
const (
	SchemaParamsUpdate = "params_update.schema.json"
	SchemaParams       = "params.schema.json"
	SchemaError        = "error.schema.json"
	SchemaSubscribe    = "subscribe.schema.json"
	SchemaTick         = "tick.schema.json"
	SchemaBootstrap    = "bootstrap.schema.json"
)

// ErrInvalidMessage wraps every schema or decode failure.
var ErrInvalidMessage = errors.New("invalid message")

var (
	schemaMu    sync.Mutex
	schemaCache = map[string]*jsonschema.Schema{}
)

// Schema compiles (once) and returns the embedded schema with the given name.
func Schema(name string) (*jsonschema.Schema, error) {
	schemaMu.Lock()
	defer schemaMu.Unlock()
	if s := schemaCache[name]; s != nil {
		return s, nil
	}
	raw, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	c := jsonschema.NewCompiler()
	url := schemaBaseURL + name
	if err := c.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	s, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}
	schemaCache[name] = s
	return s, nil
}

// Validate checks raw JSON against the named schema.
func Validate(name string, raw []byte) error {
	s, err := Schema(name)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return nil
}

// DecodeParamsUpdate validates and decodes a PARAMS_UPDATE message.
func DecodeParamsUpdate(raw []byte) (ParamsUpdateMsg, error) {
	var m ParamsUpdateMsg
	if err := Validate(SchemaParamsUpdate, raw); err != nil {
		return m, err
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return m, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return m, nil
}
