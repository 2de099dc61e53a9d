// Package schema provides the per-item JSON array validation contract
// described in the design notes: every element of an array response is
// validated independently so a single malformed record never fails an
// entire API call.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// FailureItem records a single element that failed schema or decode
// validation, keeping the raw payload for diagnostics.
type FailureItem struct {
	Index int             `json:"index"`
	Raw   json.RawMessage `json:"raw"`
	Error string          `json:"error"`
}

// ParseManyResult is the outcome of validating a JSON array payload.
type ParseManyResult[T any] struct {
	Success []T
	Failure []FailureItem
}

// ParseMany validates each element of the given raw JSON array against
// schemaJSON, decoding valid elements into T. A single bad element is
// recorded in Failure and does not affect the others. A top-level decode
// failure of body itself (not a valid JSON array) is returned as an error,
// since at that point there are no elements to partition.
func ParseMany[T any](schemaJSON string, body []byte) (ParseManyResult[T], error) {
	var result ParseManyResult[T]

	var rawItems []json.RawMessage
	if err := json.Unmarshal(body, &rawItems); err != nil {
		return result, fmt.Errorf("top-level array decode failure: %w", err)
	}

	schemaLoader := gojsonschema.NewStringLoader(schemaJSON)

	for i, raw := range rawItems {
		docLoader := gojsonschema.NewBytesLoader(raw)
		validationResult, err := gojsonschema.Validate(schemaLoader, docLoader)
		if err != nil {
			result.Failure = append(result.Failure, FailureItem{Index: i, Raw: raw, Error: err.Error()})
			continue
		}
		if !validationResult.Valid() {
			result.Failure = append(result.Failure, FailureItem{Index: i, Raw: raw, Error: joinErrors(validationResult.Errors())})
			continue
		}

		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			result.Failure = append(result.Failure, FailureItem{Index: i, Raw: raw, Error: err.Error()})
			continue
		}
		result.Success = append(result.Success, item)
	}

	return result, nil
}

func joinErrors(errs []gojsonschema.ResultError) string {
	msg := ""
	for i, e := range errs {
		if i > 0 {
			msg += "; "
		}
		msg += e.String()
	}
	return msg
}

// ValidateOne validates a single JSON document against schemaJSON and
// decodes it into T. Used for non-array endpoint responses (e.g. a single
// PlatformUser or the token response).
func ValidateOne[T any](schemaJSON string, body []byte) (T, error) {
	var item T
	schemaLoader := gojsonschema.NewStringLoader(schemaJSON)
	docLoader := gojsonschema.NewBytesLoader(body)

	validationResult, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return item, fmt.Errorf("schema validation error: %w", err)
	}
	if !validationResult.Valid() {
		return item, fmt.Errorf("schema validation failed: %s", joinErrors(validationResult.Errors()))
	}
	if err := json.Unmarshal(body, &item); err != nil {
		return item, fmt.Errorf("decode failure: %w", err)
	}
	return item, nil
}
