package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/model"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// accesstokenの有効期限
const accessTokenTTL = 15 * time.Minute

// usecaseがValidatorInterfaceに依存する約束
type AuthValidator interface {
	ValidateRegister(email string, password string) map[string]string
	ValidateLogin(email string, password string) map[string]string
}

type UserDTO struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

type JwtAccessTokenDTO struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type AuthRegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthRegisterResponse struct {
	User UserDTO `json:"user"`
}

type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthLoginResponse struct {
	User  UserDTO           `json:"user"`
	Token JwtAccessTokenDTO `json:"token"`
}

type AuthUsecase struct {
	base
	users     repository.UserRepository
	validator AuthValidator
	jwtSecret []byte
}

func NewAuthUsecase(users repository.UserRepository, validator AuthValidator, jwtSecret string, opts ...Option) *AuthUsecase {
	return &AuthUsecase{
		base:      newBase(opts),
		users:     users,
		validator: validator,
		jwtSecret: []byte(jwtSecret),
	}
}

func (u *AuthUsecase) Register(ctx context.Context, req AuthRegisterRequest) (AuthRegisterResponse, error) {
	//入力検証（validatorに寄せる）
	if fields := u.validator.ValidateRegister(req.Email, req.Password); len(fields) > 0 {
		return AuthRegisterResponse{}, validationError(fields)
	}

	user, err := u.createUser(ctx, req.Email, req.Password, model.RoleUser)
	if err != nil {
		return AuthRegisterResponse{}, err
	}
	return AuthRegisterResponse{User: toUserDTO(user)}, nil
}

// EnsureAdmin は起動時に管理者ユーザーを用意する。既にいれば何もしない。
func (u *AuthUsecase) EnsureAdmin(ctx context.Context, email, password string) error {
	if fields := u.validator.ValidateRegister(email, password); len(fields) > 0 {
		return validationError(fields)
	}
	_, err := u.users.FindByEmail(ctx, normalizeEmail(email))
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return dbError(err)
	}
	_, err = u.createUser(ctx, email, password, model.RoleAdmin)
	return err
}

func (u *AuthUsecase) createUser(ctx context.Context, email, password string, role model.Role) (model.User, error) {
	//パスワードは必ずハッシュ化して保存（平文保存しない）
	pwHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return model.User{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "internal error").WithCause(err)
	}

	now := u.clock()
	user := model.User{
		ID:           uuid.NewString(),
		Email:        normalizeEmail(email),
		PasswordHash: string(pwHash),
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := u.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			e := NewHTTPError(http.StatusConflict, CodeConflict, "email already used")
			e.Errors = map[string]string{"email": "already used"}
			return model.User{}, e
		}
		return model.User{}, dbError(err)
	}

	u.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(role)))
	return user, nil
}

func (u *AuthUsecase) Login(ctx context.Context, req AuthLoginRequest) (AuthLoginResponse, error) {
	//入力検証
	if fields := u.validator.ValidateLogin(req.Email, req.Password); len(fields) > 0 {
		return AuthLoginResponse{}, validationError(fields)
	}

	//ユーザー取得（存在しない・パスワード違いは同じ 401）
	user, err := u.users.FindByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return AuthLoginResponse{}, unauthorized()
		}
		return AuthLoginResponse{}, dbError(err)
	}

	//パスワード照合（bcrypt）
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return AuthLoginResponse{}, unauthorized()
	}

	//停止ユーザーはログイン不可
	if !user.IsActive {
		return AuthLoginResponse{}, NewHTTPError(http.StatusForbidden, CodeUnauthorized, "user is inactive")
	}

	//last_login更新
	now := u.clock()
	user.LastLoginAt = &now
	user.UpdatedAt = now
	if err := u.users.Update(ctx, user); err != nil {
		u.logger.Warn("failed to update last login", zap.String("user_id", user.ID), zap.Error(err))
	}

	token, expiresIn, err := u.issueAccessToken(user, now)
	if err != nil {
		return AuthLoginResponse{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "internal error").WithCause(err)
	}

	return AuthLoginResponse{
		User: toUserDTO(user),
		Token: JwtAccessTokenDTO{
			AccessToken: token,
			TokenType:   "Bearer",
			ExpiresIn:   expiresIn,
		},
	}, nil
}

// issueAccessToken は HS256 のアクセストークンを発行する（sub=ユーザーID, role）。
func (u *AuthUsecase) issueAccessToken(user model.User, now time.Time) (string, int, error) {
	exp := now.Add(accessTokenTTL)
	claims := jwt.MapClaims{
		"sub":  user.ID,
		"role": string(user.Role),
		"iat":  now.Unix(),
		"exp":  exp.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(u.jwtSecret)
	if err != nil {
		return "", 0, err
	}
	return signed, int(accessTokenTTL / time.Second), nil
}

// model.UserをAPI返却用DTOに変換。
func toUserDTO(u model.User) UserDTO {
	return UserDTO{
		ID:       u.ID,
		Email:    u.Email,
		Role:     string(u.Role),
		IsActive: u.IsActive,
	}
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
