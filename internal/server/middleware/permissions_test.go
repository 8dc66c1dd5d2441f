package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestRequirePermission(t *testing.T) {
	tests := []struct {
		name     string
		user     *AppUser
		required []string
		want     int
	}{
		{"no user", nil, []string{PermDocumentView}, http.StatusUnauthorized},
		{"missing", &AppUser{Permissions: []string{PermDocumentView}}, []string{PermAmbiguityResolve}, http.StatusForbidden},
		{"held", &AppUser{Permissions: []string{PermDocumentView}}, []string{PermDocumentView}, http.StatusOK},
		{"any of", &AppUser{Permissions: []string{PermAmbiguityResolve}}, []string{PermAmbiguityView, PermAmbiguityResolve}, http.StatusOK},
		{"all", &AppUser{Permissions: allPermissions}, []string{PermDocumentConvert}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := &AppContext{Context: e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec), User: tt.user}
			h := RequirePermission(tt.required...)(func(c echo.Context) error {
				return c.NoContent(http.StatusOK)
			})
			if err := h(c); err != nil {
				t.Fatalf("handler: %v", err)
			}
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
