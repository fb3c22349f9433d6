package handlers

import (
	"context"
	"mime/multipart"

	"github.com/vidtube/backend/internal/accounts"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/models"
)

// AccountService captures the account workflows exposed over HTTP.
type AccountService interface {
	Register(ctx context.Context, in accounts.RegisterInput) (models.PublicUser, error)
	Login(ctx context.Context, in accounts.LoginInput) (accounts.LoginResult, error)
	Logout(ctx context.Context, identity auth.Identity) error
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	CurrentUser(ctx context.Context, identity auth.Identity) (models.PublicUser, error)
}

// ImageSpool writes an uploaded image part to local disk and returns its path.
type ImageSpool interface {
	SaveImage(header *multipart.FileHeader) (string, error)
}
