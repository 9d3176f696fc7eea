// Package validation rejects malformed payloads before they reach the todo service.
package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mdouchement/podote/internal/model"
	"github.com/mdouchement/podote/internal/pderror"
	"github.com/pkg/errors"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

const ranksSchemaURL = "podote://ranks.schema.json"

const ranksSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "orderKey"],
    "additionalProperties": false,
    "properties": {
      "id": {"type": "string", "minLength": 1},
      "orderKey": {"type": "integer"}
    }
  }
}`

// A Validator checks the payloads given by callers.
type Validator struct {
	ranks   *jsonschema.Schema
	content *jsonschema.Schema
}

// New returns a Validator. When contentSchema is not empty, todo contents
// must also match the JSON Schema stored at this path or URL.
func New(contentSchema string) (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(ranksSchemaURL, strings.NewReader(ranksSchema)); err != nil {
		return nil, errors.Wrap(err, "could not load ranks schema")
	}

	v := &Validator{}
	var err error
	if v.ranks, err = compiler.Compile(ranksSchemaURL); err != nil {
		return nil, errors.Wrap(err, "could not compile ranks schema")
	}

	if contentSchema != "" {
		if v.content, err = compiler.Compile(contentSchema); err != nil {
			return nil, errors.Wrap(err, "could not compile content schema")
		}
	}
	return v, nil
}

// UserID checks the acting user id.
func (v *Validator) UserID(id string) error {
	if strings.TrimSpace(id) == "" {
		return pderror.Malformed("invalid-user", "user id must not be empty")
	}
	return nil
}

// Content decodes a todo content.
func (v *Validator) Content(data []byte) (any, error) {
	document, err := decode(data)
	if err != nil {
		return nil, pderror.Malformed("invalid-content", err.Error())
	}

	if v.content != nil {
		if err := v.content.Validate(document); err != nil {
			return nil, pderror.Malformed("invalid-content", message(err))
		}
	}

	return model.NormalizeNumbers(document), nil
}

// Ranks decodes a list of ranks.
func (v *Validator) Ranks(data []byte) ([]model.Rank, error) {
	document, err := decode(data)
	if err != nil {
		return nil, pderror.Malformed("invalid-ranks", err.Error())
	}

	if err := v.ranks.Validate(document); err != nil {
		return nil, pderror.Malformed("invalid-ranks", message(err))
	}

	// The schema accepts integers written as 1.0 or 1e30 that do not fit an int.
	var ranks []model.Rank
	if err = json.Unmarshal(data, &ranks); err != nil {
		return nil, pderror.Malformed("invalid-ranks", err.Error())
	}
	return ranks, nil
}

func decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var document any
	if err := dec.Decode(&document); err != nil {
		return nil, errors.Wrap(err, "not a JSON document")
	}
	if dec.More() {
		return nil, errors.New("trailing data after JSON document")
	}
	return document, nil
}

// message flattens the leaves of a schema validation error.
func message(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}

	var messages []string
	var collect func(*jsonschema.ValidationError)
	collect = func(ve *jsonschema.ValidationError) {
		if len(ve.Causes) == 0 {
			messages = append(messages, fmt.Sprintf("%s: %s", location(ve.InstanceLocation), ve.Message))
			return
		}
		for _, cause := range ve.Causes {
			collect(cause)
		}
	}
	collect(ve)

	return strings.Join(messages, "; ")
}

func location(pointer string) string {
	if pointer == "" {
		return "/"
	}
	return pointer
}
