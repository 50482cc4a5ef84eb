package patient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hubassist/clinic-api/internal/platform/auth"
)

// newScopedServer mounts the patient routes behind middleware that injects
// the given clinic scope and role, the way the auth chain does in serve.
func newScopedServer(svc *Service, clinicID, userID uuid.UUID, role string) *echo.Echo {
	e := echo.New()
	g := e.Group("", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := context.WithValue(c.Request().Context(), auth.ClinicIDKey, clinicID.String())
			ctx = context.WithValue(ctx, auth.UserIDKey, userID.String())
			ctx = context.WithValue(ctx, auth.RoleKey, role)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})
	NewHandler(svc).RegisterRoutes(g)
	return e
}

func TestDeleteRoute_ForbiddenForProfessional(t *testing.T) {
	repo := newMockRepo()
	svc, _ := newTestService(repo)
	clinicID := uuid.New()
	userID := uuid.New()

	p, err := svc.Create(scopedContext(clinicID, userID), Input{Name: "Ana Souza"}, nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	e := newScopedServer(svc, clinicID, userID, auth.RoleProfessional)
	req := httptest.NewRequest(http.MethodDelete, "/patients/"+p.ID.String(), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	if _, err := repo.GetByID(context.Background(), clinicID, p.ID); err != nil {
		t.Error("patient must survive a forbidden delete")
	}
}

func TestDeleteRoute_AllowedForClinicAdmin(t *testing.T) {
	repo := newMockRepo()
	svc, _ := newTestService(repo)
	clinicID := uuid.New()
	userID := uuid.New()

	p, err := svc.Create(scopedContext(clinicID, userID), Input{Name: "Ana Souza"}, nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	e := newScopedServer(svc, clinicID, userID, auth.RoleClinicAdmin)
	req := httptest.NewRequest(http.MethodDelete, "/patients/"+p.ID.String(), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if _, err := repo.GetByID(context.Background(), clinicID, p.ID); err == nil {
		t.Error("patient row should be gone after an admin delete")
	}
}
