package http

import (
	"time"

	"github.com/vibast-solutions/ms-go-identity/app/entity"
)

type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func NewResponse(message string, data interface{}) Response {
	return Response{Success: true, Message: message, Data: data}
}

func NewErrorResponse(message string) ErrorResponse {
	return ErrorResponse{Success: false, Message: message}
}

// UserResponse is the public view of a user. Credentials and session state
// never leave the service.
type UserResponse struct {
	ID           string    `json:"_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	Avatar       string    `json:"avatar"`
	CoverImage   string    `json:"coverImage"`
	Role         string    `json:"role"`
	WatchHistory []string  `json:"watchHistory"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func NewUserResponse(user *entity.User) *UserResponse {
	if user == nil {
		return nil
	}

	history := user.WatchHistory
	if history == nil {
		history = []string{}
	}

	return &UserResponse{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		FullName:     user.FullName,
		Avatar:       user.AvatarURL,
		CoverImage:   user.CoverImageURL,
		Role:         user.Role,
		WatchHistory: history,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

type LoginResponse struct {
	User         *UserResponse `json:"user"`
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
}

type RefreshTokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type UserPageResponse struct {
	Users      []*UserResponse `json:"users"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int64           `json:"totalPages"`
}

func NewUserPageResponse(page *entity.UserPage) *UserPageResponse {
	users := make([]*UserResponse, 0, len(page.Users))
	for _, user := range page.Users {
		users = append(users, NewUserResponse(user))
	}

	var totalPages int64
	if page.Limit > 0 {
		totalPages = (page.Total + int64(page.Limit) - 1) / int64(page.Limit)
	}

	return &UserPageResponse{
		Users:      users,
		Total:      page.Total,
		Page:       page.Page,
		Limit:      page.Limit,
		TotalPages: totalPages,
	}
}
