package handlers

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"media_pipeline/internal/auth/app"
	"media_pipeline/internal/auth/domain"
	"media_pipeline/pkg/logger"
	"media_pipeline/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const basicRealm = `Basic realm="Login required!"`

// AuthHandler register / login / validate http handler
type AuthHandler struct {
	Usecase app.AuthUseCase
}

// NewAuthHandler create auth handler
func NewAuthHandler(uc app.AuthUseCase) *AuthHandler {
	return &AuthHandler{Usecase: uc}
}

// MessageResponse body of a successful register
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse body of a failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// ClaimsResponse body of a successful validate
type ClaimsResponse struct {
	Username string `json:"username"`
	Admin    bool   `json:"admin"`
	Exp      int64  `json:"exp"`
	Iat      int64  `json:"iat"`
}

// Register godoc
// @Summary Register a user
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body domain.RegisterReq true "email and password"
// @Success 201 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /register [post]
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req domain.RegisterReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Error: "Email and password are required"})
	}

	err := h.Usecase.Register(c.UserContext(), req)
	switch {
	case err == nil:
		return c.Status(http.StatusCreated).JSON(MessageResponse{Message: "User registered successfully"})
	case errors.Is(err, domain.ErrInvalidRequest):
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrUserExists):
		return c.Status(http.StatusConflict).JSON(ErrorResponse{Error: "User already exists"})
	}
	logger.Log.Error("register failed", zap.Error(err))
	return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{Error: "Registration failed"})
}

// Login godoc
// @Summary Log in with HTTP Basic credentials
// @Tags Auth
// @Produce plain
// @Security BasicAuth
// @Success 200 {string} string "signed JWT"
// @Failure 401 {string} string "Could not verify"
// @Router /login [post]
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	email, password, ok := basicAuth(c.Get(fiber.HeaderAuthorization))
	if !ok {
		return unauthorized(c, "Could not verify")
	}

	tok, err := h.Usecase.Login(c.UserContext(), email, password)
	if errors.Is(err, domain.ErrInvalidCredentials) {
		return unauthorized(c, "Invalid credentials")
	}
	if err != nil {
		logger.Log.Error("login failed", zap.Error(err))
		return c.Status(http.StatusInternalServerError).SendString("Login error")
	}
	return c.SendString(tok)
}

// Validate godoc
// @Summary Validate a bearer token
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ClaimsResponse
// @Failure 401 {string} string "Unauthorized"
// @Router /validate [post]
func (h *AuthHandler) Validate(c *fiber.Ctx) error {
	tok := middlewares.BearerToken(c)
	if tok == "" {
		return unauthorized(c, "Unauthorized")
	}

	claims, err := h.Usecase.Validate(c.UserContext(), tok)
	if err != nil {
		return unauthorized(c, "Invalid token")
	}

	res := ClaimsResponse{Username: claims.Username, Admin: claims.Admin}
	if claims.ExpiresAt != nil {
		res.Exp = claims.ExpiresAt.Unix()
	}
	if claims.IssuedAt != nil {
		res.Iat = claims.IssuedAt.Unix()
	}
	return c.JSON(res)
}

func unauthorized(c *fiber.Ctx, msg string) error {
	c.Set(fiber.HeaderWWWAuthenticate, basicRealm)
	return c.Status(http.StatusUnauthorized).SendString(msg)
}

// basicAuth parse an "Authorization: Basic" header
func basicAuth(h string) (string, string, bool) {
	const prefix = "Basic "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", "", false
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(h[len(prefix):]))
	if err != nil {
		return "", "", false
	}
	user, pass, ok := strings.Cut(string(raw), ":")
	if !ok || user == "" || pass == "" {
		return "", "", false
	}
	return user, pass, true
}
