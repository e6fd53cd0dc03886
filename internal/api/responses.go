package api

// Response is the envelope every endpoint returns.
type Response struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(message string, data interface{}) Response {
	return Response{Status: true, Message: message, Data: data}
}

func Fail(message string) Response {
	return Response{Status: false, Message: message}
}

type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}
