package accounts

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/media"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/validation"
)

// SessionIssuer issues, rotates and revokes refresh-token sessions.
type SessionIssuer interface {
	Issue(ctx context.Context, user models.User) (models.SessionTokens, error)
	Verify(refreshToken string) (*auth.Claims, error)
	Rotate(ctx context.Context, claims *auth.Claims, refreshToken string, user models.User) (models.SessionTokens, error)
	Revoke(ctx context.Context, sessionID string) error
	RevokeAll(ctx context.Context, userID string) error
}

// MediaUploader pushes a local temp file to the media host and removes it.
type MediaUploader interface {
	Upload(ctx context.Context, localPath string) (media.Asset, error)
}

// Service implements registration, login, logout and token refresh.
type Service struct {
	users    repositories.UserRepository
	sessions SessionIssuer
	uploader MediaUploader
	hasher   auth.PasswordHasher
	now      func() time.Time
}

// NewService wires the account workflows to their collaborators.
func NewService(users repositories.UserRepository, sessions SessionIssuer, uploader MediaUploader, hasher auth.PasswordHasher) *Service {
	if hasher == nil {
		hasher = auth.BcryptHasher{}
	}
	return &Service{
		users:    users,
		sessions: sessions,
		uploader: uploader,
		hasher:   hasher,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RegisterInput carries the registration form. AvatarPath and CoverPath point
// at local temp files that are always removed before Register returns.
// UploadErr holds a failure from spooling those files; it is reported only
// after the account passes the conflict and field checks.
type RegisterInput struct {
	FullName   string `json:"fullName" validate:"required,max=100"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=6,max=72"`
	Username   string `json:"username" validate:"required,handle"`
	AvatarPath string `json:"-"`
	CoverPath  string `json:"-"`
	UploadErr  error  `json:"-"`
}

// LoginInput identifies the user by email or username.
type LoginInput struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResult is returned on successful login.
type LoginResult struct {
	User   models.PublicUser
	Tokens models.SessionTokens
}

// Register creates an account and uploads its avatar and optional cover image.
func (s *Service) Register(ctx context.Context, in RegisterInput) (models.PublicUser, error) {
	defer media.Remove(ctx, in.AvatarPath)
	defer media.Remove(ctx, in.CoverPath)

	ctx, span := logging.StartSpan(ctx, "accounts.register")
	defer span.End()
	logger := logging.FromContext(ctx)

	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.ToLower(strings.TrimSpace(in.Username))

	if blank := blankFields(in); len(blank) > 0 {
		return models.PublicUser{}, apperr.Validation("All fields are required", blank...)
	}

	exists, err := s.users.ExistsByEmailOrUsername(ctx, in.Email, in.Username)
	if err != nil {
		return models.PublicUser{}, apperr.Internal("Unable to verify existing accounts", err)
	}
	if exists {
		return models.PublicUser{}, apperr.Conflict("User with email or username already exists")
	}

	if err := validation.Struct(in); err != nil {
		return models.PublicUser{}, err
	}
	if in.UploadErr != nil {
		return models.PublicUser{}, in.UploadErr
	}
	if in.AvatarPath == "" {
		return models.PublicUser{}, apperr.Validation("Avatar file is required")
	}

	avatar, err := s.uploader.Upload(ctx, in.AvatarPath)
	if err != nil || avatar.URL == "" {
		span.Fail(err)
		return models.PublicUser{}, apperr.Internal("Failed to upload avatar", err)
	}

	var coverURL string
	if in.CoverPath != "" {
		cover, err := s.uploader.Upload(ctx, in.CoverPath)
		if err != nil {
			logger.Warn("cover image upload failed", slog.Any("error", err))
		} else {
			coverURL = cover.URL
		}
	}

	hashed, err := s.hasher.Hash(in.Password)
	if err != nil {
		return models.PublicUser{}, apperr.Internal("Failed to secure password", err)
	}

	now := s.now()
	user := models.User{
		ID:            uuid.NewString(),
		Username:      in.Username,
		Email:         in.Email,
		FullName:      in.FullName,
		Password:      hashed,
		AvatarURL:     avatar.URL,
		CoverImageURL: coverURL,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return models.PublicUser{}, apperr.Conflict("User with email or username already exists")
		}
		return models.PublicUser{}, apperr.Internal("Failed to create account", err)
	}

	created, err := s.users.FindByID(ctx, user.ID)
	if err != nil {
		return models.PublicUser{}, apperr.Internal("Something went wrong while registering the user", err)
	}

	logger.Info("user registered", slog.String("userId", created.ID))
	return created.Public(), nil
}

// Login verifies credentials and opens a new session.
func (s *Service) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	ctx, span := logging.StartSpan(ctx, "accounts.login")
	defer span.End()

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.ToLower(strings.TrimSpace(in.Username))
	if in.Email == "" && in.Username == "" {
		return LoginResult{}, apperr.Validation("Username or email is required")
	}
	if in.Password == "" {
		return LoginResult{}, apperr.Validation("Password is required")
	}

	user, err := s.users.FindByIdentifier(ctx, in.Email, in.Username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return LoginResult{}, apperr.NotFound("User does not exist")
		}
		return LoginResult{}, apperr.Internal("Unable to look up user", err)
	}

	if err := s.hasher.Compare(user.Password, in.Password); err != nil {
		logging.FromContext(ctx).Warn("login password mismatch", slog.String("userId", user.ID))
		return LoginResult{}, apperr.Auth("Invalid user credentials")
	}

	tokens, err := s.sessions.Issue(ctx, user)
	if err != nil {
		return LoginResult{}, apperr.Internal("Something went wrong while generating refresh and access token", err)
	}

	return LoginResult{User: user.Public(), Tokens: tokens}, nil
}

// Logout revokes the caller's session, or all of the user's sessions when the
// identity carries no session id.
func (s *Service) Logout(ctx context.Context, identity auth.Identity) error {
	ctx, span := logging.StartSpan(ctx, "accounts.logout")
	defer span.End()

	if identity.UserID == "" {
		return apperr.Auth("Unauthorized request")
	}

	var err error
	if identity.SessionID != "" {
		err = s.sessions.Revoke(ctx, identity.SessionID)
	} else {
		err = s.sessions.RevokeAll(ctx, identity.UserID)
	}
	if err != nil {
		return apperr.Internal("Failed to log out", err)
	}
	return nil
}

// Refresh exchanges a refresh token for a new pair. Only the token currently
// stored for its session is accepted.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error) {
	ctx, span := logging.StartSpan(ctx, "accounts.refresh")
	defer span.End()

	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return models.SessionTokens{}, apperr.Auth("Unauthorized request")
	}

	claims, err := s.sessions.Verify(refreshToken)
	if err != nil {
		return models.SessionTokens{}, apperr.Auth("Invalid refresh token").Wrap(err)
	}

	user, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.SessionTokens{}, apperr.Auth("Invalid refresh token")
		}
		return models.SessionTokens{}, apperr.Internal("Unable to look up user", err)
	}

	tokens, err := s.sessions.Rotate(ctx, claims, refreshToken, user)
	if err != nil {
		span.Fail(err)
		switch {
		case errors.Is(err, auth.ErrSessionNotFound),
			errors.Is(err, auth.ErrRefreshTokenExpired),
			errors.Is(err, auth.ErrRefreshTokenReused):
			return models.SessionTokens{}, apperr.Auth("Refresh token is expired or used").Wrap(err)
		default:
			return models.SessionTokens{}, apperr.Internal("Failed to refresh session", err)
		}
	}

	return tokens, nil
}

// CurrentUser returns the authenticated caller's profile.
func (s *Service) CurrentUser(ctx context.Context, identity auth.Identity) (models.PublicUser, error) {
	if identity.UserID == "" {
		return models.PublicUser{}, apperr.Auth("Unauthorized request")
	}
	user, err := s.users.FindByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.PublicUser{}, apperr.Auth("Invalid access token")
		}
		return models.PublicUser{}, apperr.Internal("Unable to look up user", err)
	}
	return user.Public(), nil
}

func blankFields(in RegisterInput) []string {
	var blank []string
	for _, f := range []struct{ name, value string }{
		{"fullName", in.FullName},
		{"email", in.Email},
		{"password", in.Password},
		{"username", in.Username},
	} {
		if strings.TrimSpace(f.value) == "" {
			blank = append(blank, f.name)
		}
	}
	return blank
}
