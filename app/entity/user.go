package entity

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID                     string     `bson:"_id"`
	Username               string     `bson:"username"`
	Email                  string     `bson:"email"`
	FullName               string     `bson:"fullName"`
	PasswordHash           string     `bson:"password"`
	AvatarURL              string     `bson:"avatar"`
	CoverImageURL          string     `bson:"coverImage,omitempty"`
	Role                   string     `bson:"role"`
	RefreshToken           string     `bson:"refreshToken,omitempty"`
	ResetPasswordToken     string     `bson:"resetPasswordToken,omitempty"`
	ResetPasswordExpiresAt *time.Time `bson:"resetPasswordExpires,omitempty"`
	WatchHistory           []string   `bson:"watchHistory"`
	CreatedAt              time.Time  `bson:"createdAt"`
	UpdatedAt              time.Time  `bson:"updatedAt"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// ResetTokenActive reports whether the stored reset token is still usable at now.
func (u *User) ResetTokenActive(now time.Time) bool {
	return u.ResetPasswordToken != "" && u.ResetPasswordExpiresAt != nil && u.ResetPasswordExpiresAt.After(now)
}

type UserPage struct {
	Users []*User
	Total int64
	Page  int
	Limit int
}
