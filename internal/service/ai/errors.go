package ai

import (
	"encoding/json"
	"errors"

	arkmodel "github.com/volcengine/volcengine-go-sdk/service/arkruntime/model"

	"github.com/zhouzirui/beacon/pkg/provider/groq"
)

// normalizeError maps provider status errors onto *groq.CompletionError so
// every backend renders as "Error <code>: <body>".
//
// Ark decodes the error body before returning, so the body is re-encoded
// from the decoded object. Ark failures without a decodable error object
// (transport errors, non-JSON bodies) are returned unchanged.
func normalizeError(err error) error {
	var apiErr *arkmodel.APIError
	if !errors.As(err, &apiErr) || apiErr.HTTPStatusCode == 0 {
		return err
	}

	body, marshalErr := json.Marshal(arkmodel.ErrorResponse{Error: apiErr})
	if marshalErr != nil {
		body = []byte(apiErr.Message)
	}
	return &groq.CompletionError{StatusCode: apiErr.HTTPStatusCode, Body: string(body)}
}
