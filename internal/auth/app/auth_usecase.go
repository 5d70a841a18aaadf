package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"media_pipeline/internal/auth/domain"
	"media_pipeline/internal/auth/repository"
	"media_pipeline/pkg/encrypt"
	errprocess "media_pipeline/pkg/err"
	"media_pipeline/pkg/logger"
	"media_pipeline/pkg/token"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// AuthUseCase 這裡封裝了對外提供的應用服務
type AuthUseCase interface {
	Register(ctx context.Context, req domain.RegisterReq) error
	Login(ctx context.Context, email, password string) (string, error)
	Validate(ctx context.Context, tok string) (*token.Claims, error)
}

type authUseCase struct {
	userRepo repository.UserRepository
	validate *validator.Validate
}

// NewAuthUseCase 建立一個新的 AuthUseCase
func NewAuthUseCase(userRepo repository.UserRepository) AuthUseCase {
	return &authUseCase{
		userRepo: userRepo,
		validate: validator.New(),
	}
}

// Register 建立使用者, 密碼存 bcrypt hash
func (a *authUseCase) Register(ctx context.Context, req domain.RegisterReq) error {
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if err := a.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}

	hashed, err := encrypt.HashPassword(req.Password)
	if errors.Is(err, encrypt.ErrWeakPassword) {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	if err != nil {
		return err
	}

	user := &domain.User{Email: req.Email, Password: hashed}
	if err := a.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			return err
		}
		return errprocess.Wrap("create user", err, zap.String("email", req.Email))
	}

	logger.Log.Info("user registered", zap.Int64("user_id", user.ID), zap.String("email", user.Email))
	return nil
}

// Login 驗證帳密並簽發 token, 找不到人和密碼錯都回 ErrInvalidCredentials
func (a *authUseCase) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return "", domain.ErrInvalidCredentials
	}

	user, err := a.userRepo.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		logger.Log.Info("login for unknown email", zap.String("email", email))
		return "", domain.ErrInvalidCredentials
	}
	if err != nil {
		return "", errprocess.Wrap("find user", err, zap.String("email", email))
	}

	if err := user.IsPasswordMatch(password); err != nil {
		logger.Log.Info("password can't match", zap.String("email", email))
		return "", domain.ErrInvalidCredentials
	}

	tok, err := token.IssueTokenFunc(user.Email, user.Admin)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return tok, nil
}

// Validate 解析 token 回傳 claims
func (a *authUseCase) Validate(ctx context.Context, tok string) (*token.Claims, error) {
	if tok == "" {
		return nil, token.ErrInvalidToken
	}
	return token.ValidateTokenFunc(tok)
}
