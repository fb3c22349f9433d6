package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/vidtube/backend/internal/accounts"
	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/media"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/respond"
)

const (
	defaultMaxBodyBytes = 16 << 20
	multipartMemory     = 4 << 20
)

// UserHandler exposes registration and session endpoints.
type UserHandler struct {
	Accounts     AccountService
	Uploads      ImageSpool
	Cookies      CookieSettings
	MaxBodyBytes int64
}

type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type loginResponse struct {
	User         models.PublicUser `json:"user"`
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Register handles POST /api/v1/users/register with a multipart form.
func (h UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes())
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Failure(ctx, w, http.StatusRequestEntityTooLarge, "Request body too large", nil)
			return
		}
		respond.Error(ctx, w, apperr.Validation("Invalid multipart form").Wrap(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	in := accounts.RegisterInput{
		FullName: r.FormValue("fullName"),
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
		Username: r.FormValue("username"),
	}

	in.AvatarPath, in.UploadErr = h.spool(r.MultipartForm, "avatar")
	if in.UploadErr == nil {
		in.CoverPath, in.UploadErr = h.spool(r.MultipartForm, "coverImage")
	}

	user, err := h.Accounts.Register(ctx, in)
	if err != nil {
		respond.Error(ctx, w, err)
		return
	}

	respond.Success(ctx, w, http.StatusCreated, user, "User registered successfully")
}

// Login handles POST /api/v1/users/login.
func (h UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	ctx := r.Context()

	var req loginRequest
	if err := h.decode(w, r, &req); err != nil {
		respond.Error(ctx, w, err)
		return
	}

	result, err := h.Accounts.Login(ctx, accounts.LoginInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		respond.Error(ctx, w, err)
		return
	}

	h.setTokenCookies(w, result.Tokens)
	respond.Success(ctx, w, http.StatusOK, loginResponse{
		User:         result.User,
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
	}, "User logged in successfully")
}

// Logout handles POST /api/v1/users/logout. It requires an authenticated
// caller.
func (h UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	ctx := r.Context()

	identity, _ := auth.IdentityFromContext(ctx)
	if err := h.Accounts.Logout(ctx, identity); err != nil {
		respond.Error(ctx, w, err)
		return
	}

	h.clearTokenCookies(w)
	respond.Success(ctx, w, http.StatusOK, struct{}{}, "User logged out")
}

// Refresh handles POST /api/v1/users/refresh-token. The refreshToken cookie
// takes precedence over a token sent in the JSON body.
func (h UserHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	ctx := r.Context()

	token := ""
	if cookie, err := r.Cookie(auth.RefreshTokenCookie); err == nil {
		token = strings.TrimSpace(cookie.Value)
	}
	if token == "" {
		var req refreshRequest
		if err := h.decode(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
			respond.Error(ctx, w, err)
			return
		}
		token = req.RefreshToken
	}

	tokens, err := h.Accounts.Refresh(ctx, token)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindAuth {
			h.clearTokenCookies(w)
		}
		respond.Error(ctx, w, err)
		return
	}

	h.setTokenCookies(w, tokens)
	respond.Success(ctx, w, http.StatusOK, tokenResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}, "Access token refreshed")
}

// CurrentUser handles GET /api/v1/users/current-user.
func (h UserHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	ctx := r.Context()

	identity, _ := auth.IdentityFromContext(ctx)
	user, err := h.Accounts.CurrentUser(ctx, identity)
	if err != nil {
		respond.Error(ctx, w, err)
		return
	}
	respond.Success(ctx, w, http.StatusOK, user, "User fetched successfully")
}

// spool writes the first file under field to local disk. A missing field
// yields an empty path.
func (h UserHandler) spool(form *multipart.Form, field string) (string, error) {
	if form == nil || len(form.File[field]) == 0 {
		return "", nil
	}
	path, err := h.Uploads.SaveImage(form.File[field][0])
	if err != nil {
		if errors.Is(err, media.ErrUnsupportedType) {
			return "", apperr.Validation("Unsupported image type", field).Wrap(err)
		}
		return "", apperr.Internal("Failed to store upload", err)
	}
	return path, nil
}

// decode reads a JSON body. io.EOF is returned unwrapped for an empty body.
func (h UserHandler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes())
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return apperr.Validation("Invalid request body").Wrap(err)
	}
	return nil
}

func (h UserHandler) maxBodyBytes() int64 {
	if h.MaxBodyBytes > 0 {
		return h.MaxBodyBytes
	}
	return defaultMaxBodyBytes
}

func (h UserHandler) setTokenCookies(w http.ResponseWriter, tokens models.SessionTokens) {
	http.SetCookie(w, h.cookie(auth.AccessTokenCookie, tokens.AccessToken, h.Cookies.AccessTTL))
	http.SetCookie(w, h.cookie(auth.RefreshTokenCookie, tokens.RefreshToken, h.Cookies.RefreshTTL))
}

func (h UserHandler) clearTokenCookies(w http.ResponseWriter) {
	for _, name := range []string{auth.AccessTokenCookie, auth.RefreshTokenCookie} {
		c := h.cookie(name, "", 0)
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
		http.SetCookie(w, c)
	}
}

func (h UserHandler) cookie(name, value string, ttl time.Duration) *http.Cookie {
	sameSite := h.Cookies.SameSite
	if sameSite == 0 {
		sameSite = http.SameSiteLaxMode
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   h.Cookies.Secure,
		SameSite: sameSite,
	}
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	logging.FromContext(r.Context()).Debug("method not allowed", slog.String("method", r.Method))
	w.Header().Set("Allow", method)
	respond.Failure(r.Context(), w, http.StatusMethodNotAllowed, "Method not allowed", nil)
	return false
}
