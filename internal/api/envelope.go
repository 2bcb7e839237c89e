package api

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/chartbagapp/chartbag-server/internal/http/response"
)

// EnvelopeTransformer wraps every typed API response in the versioned
// envelope clients consume. Success bodies become {v, success, data};
// coded errors become {v, success, code, message, details}; errors
// without a code keep the simple {v, success, error} shape. Registered
// on the huma config at server construction.
func EnvelopeTransformer(_ huma.Context, _ string, v any) (any, error) {
	if apiErr, ok := v.(*APIError); ok {
		if apiErr.Code != "" {
			return &response.CodedEnvelope{
				V:       response.EnvelopeVersion,
				Success: false,
				Code:    apiErr.Code,
				Message: apiErr.Message,
				Details: apiErr.Details,
			}, nil
		}
		return &response.Envelope{
			V:       response.EnvelopeVersion,
			Success: false,
			Error:   apiErr.Message,
		}, nil
	}

	return &response.Envelope{
		V:       response.EnvelopeVersion,
		Success: true,
		Data:    v,
	}, nil
}
