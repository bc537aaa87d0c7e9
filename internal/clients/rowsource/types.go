package rowsource

// CountResponse is the answer of the count endpoint
type CountResponse struct {
	Count int `json:"count"`
}

// RowsResponse is one page of pre-formatted rows
type RowsResponse struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Meta    Metadata   `json:"meta"`
}

// Metadata represents pagination metadata
type Metadata struct {
	Count  int `json:"count"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ErrorResponse represents an error response from the API
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
