package gamedto

import "encoding/json"

// Success is the body of every 2xx response.
type Success[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
}

type ErrorDetails struct {
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
}

// Failure is the body of every non-2xx response.
type Failure struct {
	Success bool         `json:"success"`
	Error   ErrorDetails `json:"error"`
}

// Envelope decodes either shape; Data stays raw until the caller knows its type.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message,omitempty"`
	Error   *ErrorDetails   `json:"error,omitempty"`
}

func OK[T any](data T, message string) Success[T] {
	return Success[T]{Success: true, Data: data, Message: message}
}

func Fail(status int, message string) Failure {
	return Failure{Error: ErrorDetails{Message: message, StatusCode: status}}
}
