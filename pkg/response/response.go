package response

// Response is the standard API envelope
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorData `json:"error,omitempty"`
}

// ErrorData carries a stable machine-readable code plus a human message.
// Retryable marks outcomes the client may retry (sold-out races, trip
// conflicts) as distinct from terminal failures.
type ErrorData struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// Success builds a success envelope
func Success(data any) Response {
	return Response{Success: true, Data: data}
}

// Error builds an error envelope
func Error(code, message string) Response {
	return Response{Success: false, Error: &ErrorData{Code: code, Message: message}}
}

// RetryableError builds an error envelope for user-retryable outcomes
func RetryableError(code, message string) Response {
	return Response{Success: false, Error: &ErrorData{Code: code, Message: message, Retryable: true}}
}

// ErrorWithDetails builds an error envelope with structured details
func ErrorWithDetails(code, message string, details any) Response {
	return Response{Success: false, Error: &ErrorData{Code: code, Message: message, Details: details}}
}
