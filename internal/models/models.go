package models

import "time"

// User represents an account within the VidTube platform.
type User struct {
	ID            string
	Username      string
	Email         string
	FullName      string
	Password      string
	AvatarURL     string
	CoverImageURL string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PublicUser is the user representation returned to clients. It carries no
// credential or token fields.
type PublicUser struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	AvatarURL     string    `json:"avatar"`
	CoverImageURL string    `json:"coverImage"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Public strips the password hash from the user.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FullName:      u.FullName,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// Video describes an uploaded video owned by a user.
type Video struct {
	ID           string    `validate:"required,uuid"`
	VideoFileURL string    `validate:"required,url"`
	ThumbnailURL string    `validate:"required,url"`
	Title        string    `validate:"required,max=200"`
	Description  string    `validate:"required"`
	Duration     float64   `validate:"gt=0"`
	Views        int64     `validate:"gte=0"`
	IsPublished  bool
	OwnerID      string    `validate:"required,uuid"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	SessionID        string    `json:"-"`
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessTokenExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshTokenExpiresAt"`
}
