package types

// Response is the JSON envelope of every HTTP and websocket route response.
type Response struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Message   string `json:"message,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
}

// OK wraps data in a successful response.
func OK(data any) Response {
	return Response{Success: true, Data: data}
}

// Failure describes err as an unsuccessful response. Errors of kind
// [KindOther] are reported with a generic message.
func Failure(err error) Response {
	kind := KindOf(err)

	message := "internal server error"
	if kind != KindOther {
		message = err.Error()
	}

	return Response{Success: false, Message: message, ErrorCode: kind.String()}
}
