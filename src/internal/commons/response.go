package commons

type Response[T any] struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Data    *T       `json:"data,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

func SuccessResponse[T any](message string, data T) Response[T] {
	return Response[T]{
		Success: true,
		Message: message,
		Data:    &data,
	}
}

// DeclinedResponse carries a business-rule decline. Unlike ErrorResponse
// it still returns the outcome object, so a caller can render why the
// operation did not go through.
func DeclinedResponse[T any](message string, data T) Response[T] {
	return Response[T]{
		Success: false,
		Message: message,
		Data:    &data,
	}
}

func ErrorResponse[T any](message string, errors ...string) Response[T] {
	return Response[T]{
		Success: false,
		Message: message,
		Errors:  errors,
	}
}
