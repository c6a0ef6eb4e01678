package models

// DeleteResponse reports a cascade delete
type DeleteResponse struct {
	ID           string `json:"id" yaml:"id"`
	DeletedCount int    `json:"deletedCount" yaml:"deletedCount"`
	Message      string `json:"message" yaml:"message"`
}

// CloneResponse reports a subtree clone
type CloneResponse struct {
	Message string `json:"message" yaml:"message"`
	Count   int    `json:"count" yaml:"count"`
	RootID  string `json:"rootId,omitempty" yaml:"rootId,omitempty"`
}

// APIError is the JSON error body returned by the HTTP layer
type APIError struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Error      string `json:"error"`
	Code       string `json:"code,omitempty"`
}
