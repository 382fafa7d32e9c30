package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/ujenga-aus/JengaIQ-sub003/pkg/api/dto"
	"github.com/ujenga-aus/JengaIQ-sub003/pkg/api/middleware"
)

type listParams struct {
	Page     int    `form:"page,default=1" validate:"min=1"`
	PageSize int    `form:"page_size,default=20" validate:"min=1,max=100"`
	Status   string `form:"status" validate:"omitempty,oneof=queued completed failed"`
}

func TestBindQueryAndValidate_ErrorDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/test?page=0&page_size=500&status=bogus", nil)

	var params listParams
	if middleware.BindQueryAndValidate(c, &params) {
		t.Fatal("BindQueryAndValidate() = true, want false")
	}

	var resp dto.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v (body %s)", err, w.Body.String())
	}
	if resp.Code != "VALIDATION_ERROR" {
		t.Errorf("Code = %q, want VALIDATION_ERROR", resp.Code)
	}
	for _, field := range []string{"Page", "PageSize", "Status"} {
		if _, ok := resp.Details[field]; !ok {
			t.Errorf("Details = %v, want a %s entry", resp.Details, field)
		}
	}
}

func TestBindQueryAndValidate(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("applies defaults", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)

		var params listParams
		if !middleware.BindQueryAndValidate(c, &params) {
			t.Fatalf("BindQueryAndValidate() = false (body %s)", w.Body.String())
		}
		if params.Page != 1 || params.PageSize != 20 {
			t.Errorf("params = %d/%d, want 1/20", params.Page, params.PageSize)
		}
	})

	t.Run("binds provided values", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/test?page=3&page_size=50&status=failed", nil)

		var params listParams
		if !middleware.BindQueryAndValidate(c, &params) {
			t.Fatalf("BindQueryAndValidate() = false (body %s)", w.Body.String())
		}
		if params.Page != 3 || params.PageSize != 50 || params.Status != "failed" {
			t.Errorf("params = %+v, want page 3, page_size 50, status failed", params)
		}
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/test?page=0", nil)

		var params listParams
		if middleware.BindQueryAndValidate(c, &params) {
			t.Fatal("BindQueryAndValidate() = true, want false")
		}
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("rejects unparseable values", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/test?page=abc", nil)

		var params listParams
		if middleware.BindQueryAndValidate(c, &params) {
			t.Fatal("BindQueryAndValidate() = true, want false")
		}
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}
