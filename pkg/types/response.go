// Package types holds the wire envelopes shared by every API response.
package types

// SuccessEnvelope wraps every 2xx body under a single data key.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the machine-readable error body; Code matches pkg/errors codes.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
