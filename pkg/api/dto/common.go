package dto

// PaginationMeta tells the client where a page sits in the full result.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
	TotalCount int64 `json:"total_count"`
}

// NewPaginationMeta derives the page count from the total. pageSize is
// validated to be at least 1 before this is called.
func NewPaginationMeta(page, pageSize int, totalCount int64) PaginationMeta {
	return PaginationMeta{
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int((totalCount + int64(pageSize) - 1) / int64(pageSize)),
		TotalCount: totalCount,
	}
}

// ErrorResponse is the error envelope every endpoint returns.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message,omitempty"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SuccessResponse acknowledges an action with no resource to return.
type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// HealthResponse reports overall and per-dependency health.
type HealthResponse struct {
	Status   string            `json:"status"`
	Version  string            `json:"version"`
	Services map[string]string `json:"services"`
}

// ListQueryParams are the query parameters of the import list endpoint.
type ListQueryParams struct {
	Page     int    `form:"page,default=1" validate:"min=1"`
	PageSize int    `form:"page_size,default=20" validate:"min=1,max=100"`
	Status   string `form:"status" validate:"omitempty,oneof=received queued parsing computing persisting completed failed canceled"`
	Source   string `form:"source" validate:"omitempty,oneof=api watch"`
}
