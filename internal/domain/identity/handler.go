package identity

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hubassist/clinic-api/internal/platform/auth"
	"github.com/hubassist/clinic-api/internal/platform/session"
)

// Handler serves the auth endpoints: sign-up, sign-in, sign-out and the
// current-session view.
type Handler struct {
	sessions *session.Store
	resolver *Resolver
}

func NewHandler(sessions *session.Store, resolver *Resolver) *Handler {
	return &Handler{sessions: sessions, resolver: resolver}
}

// RegisterPublicRoutes mounts the unauthenticated auth routes.
func (h *Handler) RegisterPublicRoutes(g *echo.Group) {
	g.POST("/auth/signup", h.handleSignUp)
	g.POST("/auth/signin", h.handleSignIn)
}

// RegisterProtectedRoutes mounts the routes that require a valid session.
func (h *Handler) RegisterProtectedRoutes(g *echo.Group) {
	g.POST("/auth/signout", h.handleSignOut)
	g.GET("/auth/session", h.handleSession)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token   string           `json:"token"`
	Session *session.Session `json:"session"`
	Profile *Profile         `json:"profile,omitempty"`
}

func (h *Handler) handleSignUp(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	sess, token, err := h.sessions.SignUp(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return echo.NewHTTPError(http.StatusConflict, "email already registered")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "sign-up failed")
	}

	// Kick off profile provisioning; the response does not wait for it.
	// The first clinic-scoped request resolves against the same task.
	h.resolver.Resolve(c.Request().Context(), sess.UserID, sess.Email)

	return c.JSON(http.StatusCreated, sessionResponse{Token: token, Session: sess})
}

func (h *Handler) handleSignIn(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	sess, token, err := h.sessions.SignIn(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "sign-in failed")
	}

	h.resolver.Resolve(c.Request().Context(), sess.UserID, sess.Email)

	return c.JSON(http.StatusOK, sessionResponse{Token: token, Session: sess})
}

func (h *Handler) handleSignOut(c echo.Context) error {
	ctx := c.Request().Context()

	sessionID, err := uuid.Parse(auth.SessionIDFromContext(ctx))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	if err := h.sessions.SignOut(ctx, sessionID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "sign-out failed")
	}

	if userID, err := uuid.Parse(auth.UserIDFromContext(ctx)); err == nil {
		h.resolver.Invalidate(userID)
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) handleSession(c echo.Context) error {
	ctx := c.Request().Context()

	sessionID, err := uuid.Parse(auth.SessionIDFromContext(ctx))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	sess, err := h.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return echo.NewHTTPError(http.StatusUnauthorized, "session not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "session lookup failed")
	}

	resp := sessionResponse{Session: sess}
	if userID, err := uuid.Parse(auth.UserIDFromContext(ctx)); err == nil {
		if profile, err := h.resolver.Resolve(ctx, userID, sess.Email).Wait(ctx); err == nil {
			resp.Profile = profile
		}
	}

	return c.JSON(http.StatusOK, resp)
}
