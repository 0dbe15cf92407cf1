package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/Ericatici/video-service/internal/controller/api/middleware"
	"github.com/Ericatici/video-service/internal/core/user"
)

type AuthHandler struct {
	users     *user.Store
	jwtSecret string
	jwtExpiry time.Duration
}

func NewAuthHandler(users *user.Store, jwtSecret string, jwtExpiry time.Duration) *AuthHandler {
	return &AuthHandler{
		users:     users,
		jwtSecret: jwtSecret,
		jwtExpiry: jwtExpiry,
	}
}

type RegisterInput struct {
	Body struct {
		Username string `json:"username" minLength:"3" maxLength:"64" doc:"Username"`
		Password string `json:"password" minLength:"8" doc:"Password"`
	}
}

type LoginInput struct {
	Body struct {
		Username string `json:"username" minLength:"1" doc:"Username"`
		Password string `json:"password" minLength:"1" doc:"Password"`
	}
}

type RegisterDTO struct {
	ID       string `json:"id" doc:"User ID"`
	Username string `json:"username" doc:"Username"`
}

type LoginDTO struct {
	Token     string `json:"token" doc:"JWT token"`
	ExpiresIn int    `json:"expires_in" doc:"Token lifetime in seconds"`
}

func (h *AuthHandler) Register(ctx context.Context, input *RegisterInput) (*DataOutput[RegisterDTO], error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Body.Password), 12)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to hash password")
	}

	u, err := h.users.Create(ctx, input.Body.Username, string(hash))
	if err != nil {
		if errors.Is(err, user.ErrUsernameTaken) {
			return nil, huma.Error409Conflict("username already taken")
		}
		return nil, huma.Error500InternalServerError("failed to create user")
	}

	return OK(RegisterDTO{
		ID:       u.ID.String(),
		Username: u.Username,
	}), nil
}

func (h *AuthHandler) Login(ctx context.Context, input *LoginInput) (*DataOutput[LoginDTO], error) {
	u, err := h.users.GetByUsername(ctx, input.Body.Username)
	if err != nil {
		return nil, huma.Error401Unauthorized("invalid username or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(input.Body.Password)); err != nil {
		return nil, huma.Error401Unauthorized("invalid username or password")
	}

	token, err := middleware.GenerateJWT(u.ID.String(), u.Username, h.jwtSecret, h.jwtExpiry)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to generate token")
	}

	return OK(LoginDTO{
		Token:     token,
		ExpiresIn: int(h.jwtExpiry.Seconds()),
	}), nil
}
