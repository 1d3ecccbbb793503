package dto

// RegisterRequest is the JSON form of an employee registration.
// Photos are base64 images, optionally with a data: URL prefix.
type RegisterRequest struct {
	EmployeeID string   `json:"employee_id"`
	Name       string   `json:"name"`
	Photos     []string `json:"photos"`
}

type EmployeeResponse struct {
	EmployeeID   string `json:"employee_id"`
	Name         string `json:"name"`
	RegisteredAt string `json:"registered_at"`
	EncodingDim  int    `json:"encoding_dim,omitempty"`
	PhotoURL     string `json:"photo_url,omitempty"`
}

type RegisterResponse struct {
	Success  bool             `json:"success"`
	Message  string           `json:"message"`
	Employee EmployeeResponse `json:"employee"`
}

type EmployeeListResponse struct {
	Employees []EmployeeResponse `json:"employees"`
	Total     int                `json:"total"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}
