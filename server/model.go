package server

// ResponseModel is the JSON envelope every endpoint responds with.
type ResponseModel struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}
