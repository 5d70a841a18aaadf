package domain

import (
	"errors"
	"time"

	"media_pipeline/pkg/encrypt"
)

var (
	// ErrUserExists email already registered
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound no user with that email
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials wrong email or password
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidRequest missing or malformed fields
	ErrInvalidRequest = errors.New("invalid request")
)

// User 用來表示可以上傳的使用者
type User struct {
	ID        int64
	Email     string
	Password  string // bcrypt hash
	Admin     bool
	CreatedAt time.Time
}

// IsPasswordMatch 密碼驗證
func (u *User) IsPasswordMatch(inputPwd string) error {
	return encrypt.CheckPassword(u.Password, inputPwd)
}

// RegisterReq body of POST /register
type RegisterReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
