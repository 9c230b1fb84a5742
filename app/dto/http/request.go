package http

import (
	"errors"
	"io"
	"mime/multipart"
	stdhttp "net/http"
	"strconv"
	"strings"

	"github.com/vibast-solutions/ms-go-identity/app/dto"

	"github.com/labstack/echo/v4"
)

type RegisterRequest struct {
	FullName   string
	Email      string
	Username   string
	Password   string
	Avatar     *dto.Upload
	CoverImage *dto.Upload
}

type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"-"`
	Password string `json:"password"`
	// NewPassword is accepted when password is absent.
	NewPassword string `json:"newPassword"`
}

type UpdateAccountRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

type UpdateRoleRequest struct {
	UserID string `json:"-"`
	Role   string `json:"role"`
}

type ListUsersRequest struct {
	Page  int
	Limit int
}

func NewRegisterRequestFromContext(ctx echo.Context) (*RegisterRequest, error) {
	avatar, err := formUpload(ctx, "avatar")
	if err != nil {
		return nil, err
	}
	cover, err := formUpload(ctx, "coverImage")
	if err != nil {
		return nil, err
	}

	return &RegisterRequest{
		FullName:   ctx.FormValue("fullName"),
		Email:      ctx.FormValue("email"),
		Username:   ctx.FormValue("username"),
		Password:   ctx.FormValue("password"),
		Avatar:     avatar,
		CoverImage: cover,
	}, nil
}

func (r *RegisterRequest) Validate() error {
	for _, field := range []string{r.FullName, r.Email, r.Username, r.Password} {
		if strings.TrimSpace(field) == "" {
			return errors.New("all fields are required")
		}
	}
	if r.Avatar == nil {
		return errors.New("avatar file is required")
	}

	return nil
}

func (r *RegisterRequest) Input() *dto.RegisterInput {
	return &dto.RegisterInput{
		FullName:   r.FullName,
		Email:      r.Email,
		Username:   r.Username,
		Password:   r.Password,
		Avatar:     r.Avatar,
		CoverImage: r.CoverImage,
	}
}

func NewLoginRequestFromContext(ctx echo.Context) (*LoginRequest, error) {
	var body LoginRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *LoginRequest) Validate() error {
	if strings.TrimSpace(r.Identifier()) == "" {
		return errors.New("username or email is required")
	}
	if r.Password == "" {
		return errors.New("password is required")
	}

	return nil
}

// Identifier prefers the username when both are sent.
func (r *LoginRequest) Identifier() string {
	if strings.TrimSpace(r.Username) != "" {
		return r.Username
	}
	return r.Email
}

// NewRefreshTokenRequestFromContext takes the refresh token from the cookie
// and falls back to the JSON body.
func NewRefreshTokenRequestFromContext(ctx echo.Context, cookieName string) (*RefreshTokenRequest, error) {
	if cookie, err := ctx.Cookie(cookieName); err == nil && cookie.Value != "" {
		return &RefreshTokenRequest{RefreshToken: cookie.Value}, nil
	}

	var body RefreshTokenRequest
	if ctx.Request().ContentLength != 0 {
		if err := ctx.Bind(&body); err != nil {
			return nil, err
		}
	}

	return &body, nil
}

func NewChangePasswordRequestFromContext(ctx echo.Context) (*ChangePasswordRequest, error) {
	var body ChangePasswordRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *ChangePasswordRequest) Validate() error {
	if r.OldPassword == "" || r.NewPassword == "" {
		return errors.New("oldPassword and newPassword are required")
	}

	return nil
}

func NewForgotPasswordRequestFromContext(ctx echo.Context) (*ForgotPasswordRequest, error) {
	var body ForgotPasswordRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *ForgotPasswordRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" {
		return errors.New("email is required")
	}

	return nil
}

func NewResetPasswordRequestFromContext(ctx echo.Context) (*ResetPasswordRequest, error) {
	var body ResetPasswordRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Token = ctx.Param("token")
	if body.Password == "" {
		body.Password = body.NewPassword
	}

	return &body, nil
}

func (r *ResetPasswordRequest) Validate() error {
	if strings.TrimSpace(r.Token) == "" {
		return errors.New("reset token is required")
	}
	if r.Password == "" {
		return errors.New("password is required")
	}

	return nil
}

func NewUpdateAccountRequestFromContext(ctx echo.Context) (*UpdateAccountRequest, error) {
	var body UpdateAccountRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &body, nil
}

func (r *UpdateAccountRequest) Validate() error {
	if strings.TrimSpace(r.FullName) == "" || strings.TrimSpace(r.Email) == "" {
		return errors.New("fullName and email are required")
	}

	return nil
}

func NewUpdateRoleRequestFromContext(ctx echo.Context) (*UpdateRoleRequest, error) {
	var body UpdateRoleRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.UserID = ctx.Param("id")

	return &body, nil
}

func (r *UpdateRoleRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" || strings.TrimSpace(r.Role) == "" {
		return errors.New("user id and role are required")
	}

	return nil
}

func NewListUsersRequestFromContext(ctx echo.Context) (*ListUsersRequest, error) {
	page, err := queryInt(ctx, "page", 1)
	if err != nil {
		return nil, err
	}
	limit, err := queryInt(ctx, "limit", 10)
	if err != nil {
		return nil, err
	}

	return &ListUsersRequest{Page: page, Limit: limit}, nil
}

// NewUploadFromContext returns nil when the form carries no file under field.
func NewUploadFromContext(ctx echo.Context, field string) (*dto.Upload, error) {
	return formUpload(ctx, field)
}

func formUpload(ctx echo.Context, field string) (*dto.Upload, error) {
	header, err := ctx.FormFile(field)
	if err != nil {
		if errors.Is(err, stdhttp.ErrMissingFile) {
			return nil, nil
		}
		return nil, err
	}

	return uploadFromHeader(header), nil
}

func uploadFromHeader(header *multipart.FileHeader) *dto.Upload {
	return &dto.Upload{
		Filename: header.Filename,
		Size:     header.Size,
		Open: func() (io.ReadSeekCloser, error) {
			return header.Open()
		},
	}
}

func queryInt(ctx echo.Context, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(ctx.QueryParam(name))
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(name + " must be a number")
	}
	return value, nil
}
