package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/trip-marketplace/internal/apperr"
	"github.com/iliyamo/trip-marketplace/internal/config"
	"github.com/iliyamo/trip-marketplace/internal/mailer"
	"github.com/iliyamo/trip-marketplace/internal/middleware"
	"github.com/iliyamo/trip-marketplace/internal/model"
	"github.com/iliyamo/trip-marketplace/internal/service"
	"github.com/iliyamo/trip-marketplace/internal/utils"
)

// OTPIssuer issues and verifies one-time codes.
type OTPIssuer interface {
	Create(ctx context.Context, email string) (string, error)
	Verify(ctx context.Context, email, code string) (bool, error)
	TTL() time.Duration
}

// Admitter is the OTP issuance rate limit.
type Admitter interface {
	TryAdmit(ctx context.Context, id string) (service.Decision, error)
}

// EmailSender delivers email synchronously.
type EmailSender interface {
	Send(ctx context.Context, e mailer.Email) error
}

// Users is the user directory used by the auth and profile endpoints.
type Users interface {
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	CreateUser(ctx context.Context, who model.Authenticated, in service.NewUser) (*model.User, error)
	UpdateUser(ctx context.Context, id string, p service.ProfileUpdate) (*model.User, error)
	VerifyUserEmail(ctx context.Context, id string) error
	IsEmailOrganiser(ctx context.Context, email string) (bool, error)
}

// AuthHandler bundles dependencies for the OTP and profile endpoints.
type AuthHandler struct {
	Cfg     config.AuthConfig
	OTP     OTPIssuer
	Limiter Admitter
	Mail    EmailSender
	Users   Users
	Now     func() time.Time
}

func NewAuthHandler(cfg config.AuthConfig, otp OTPIssuer, limiter Admitter, mail EmailSender, users Users) *AuthHandler {
	return &AuthHandler{Cfg: cfg, OTP: otp, Limiter: limiter, Mail: mail, Users: users, Now: time.Now}
}

// ----- DTOs -----

type sendOTPReq struct {
	Email string `json:"email" validate:"required,email"`
}

func (r *sendOTPReq) trim() { r.Email = strings.TrimSpace(r.Email) }

type verifyOTPReq struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,numeric"`
}

func (r *verifyOTPReq) trim() {
	r.Email = strings.TrimSpace(r.Email)
	r.Code = strings.TrimSpace(r.Code)
}

type signupReq struct {
	Name  string `json:"name" validate:"required"`
	Role  string `json:"role" validate:"omitempty,oneof=customer trip-organizer organiser"`
	Phone string `json:"phone"`
}

func (r *signupReq) trim() {
	r.Name = strings.TrimSpace(r.Name)
	r.Role = strings.TrimSpace(r.Role)
}

type profileReq struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
	Role  *string `json:"role"`
}

type loginResp struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      *model.User `json:"user"`
}

// SendOTP issues a code for the email and mails it.  Issuance is limited per
// email; a denied request gets 429 with the minutes until the window resets.
func (h *AuthHandler) SendOTP(c echo.Context) error {
	var req sendOTPReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	email := model.NormalizeEmail(req.Email)

	ctx, cancel := reqCtx(c)
	defer cancel()

	d, err := h.Limiter.TryAdmit(ctx, email)
	if err != nil {
		return respondError(c, err)
	}
	if !d.Allowed {
		return respondError(c, apperr.RateLimited(d.ResetAt))
	}

	code, err := h.OTP.Create(ctx, email)
	if err != nil {
		return respondError(c, err)
	}
	// The code only reaches the user by email, so a failed send fails the request.
	if err := h.Mail.Send(ctx, mailer.OTPCode(email, code, h.OTP.TTL())); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":           "verification code sent",
		"expiresInMinutes":  int(h.OTP.TTL() / time.Minute),
		"remainingRequests": d.Remaining,
	})
}

// VerifyOTP consumes a code and marks the account's email verified.  When a
// bearer token is present, it must belong to the same email.
func (h *AuthHandler) VerifyOTP(c echo.Context) error {
	var req verifyOTPReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	email := model.NormalizeEmail(req.Email)
	who, authed := middleware.IdentityFrom(c).(model.Authenticated)
	if authed && who.Email != "" && who.Email != email {
		return respondError(c, apperr.Forbidden("code email does not match the signed in account"))
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	ok, err := h.OTP.Verify(ctx, email, req.Code)
	if err != nil {
		return respondError(c, err)
	}
	if !ok {
		return respondError(c, apperr.Field("code", "is invalid or expired"))
	}

	userID := ""
	if authed {
		userID = who.UserID
	} else if u, err := h.Users.GetUserByEmail(ctx, email); err != nil {
		return respondError(c, err)
	} else if u != nil {
		userID = u.ID
	}
	if userID != "" {
		if err := h.Users.VerifyUserEmail(ctx, userID); err != nil && apperr.KindOf(err) != apperr.KindNotFound {
			return respondError(c, err)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"verified": true})
}

// VerifyOTPLogin consumes a code and returns a new session token for the
// account that owns the email.
func (h *AuthHandler) VerifyOTPLogin(c echo.Context) error {
	var req verifyOTPReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	email := model.NormalizeEmail(req.Email)

	ctx, cancel := reqCtx(c)
	defer cancel()

	ok, err := h.OTP.Verify(ctx, email, req.Code)
	if err != nil {
		return respondError(c, err)
	}
	if !ok {
		return respondError(c, apperr.Field("code", "is invalid or expired"))
	}
	u, err := h.Users.GetUserByEmail(ctx, email)
	if err != nil {
		return respondError(c, err)
	}
	if u == nil {
		return respondError(c, apperr.NotFound("account"))
	}
	if !u.EmailVerified {
		if err := h.Users.VerifyUserEmail(ctx, u.ID); err != nil {
			return respondError(c, err)
		}
		u.EmailVerified = true
	}

	tok, err := utils.NewSessionToken(h.Cfg.SessionSecret, h.Cfg.SessionIssuer, u.ID, u.Email, h.Cfg.SessionTTLMin, h.Now())
	if err != nil {
		return respondError(c, apperr.Upstream("issue session token", err))
	}
	return c.JSON(http.StatusOK, loginResp{Token: tok.Token, ExpiresAt: tok.Exp, User: u})
}

// Signup creates the profile for the identity in the bearer token.
func (h *AuthHandler) Signup(c echo.Context) error {
	who, ok := middleware.IdentityFrom(c).(model.Authenticated)
	if !ok {
		return respondError(c, apperr.Unauthenticated("missing bearer token"))
	}
	var req signupReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.CreateUser(ctx, who, service.NewUser{Name: req.Name, Role: req.Role, Phone: req.Phone})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, u)
}

// Me returns the caller's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetUserByID(ctx, middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	if u == nil {
		return respondError(c, apperr.NotFound("user"))
	}
	return c.JSON(http.StatusOK, u)
}

// UpdateMe applies a partial profile update.  The role cannot change.
func (h *AuthHandler) UpdateMe(c echo.Context) error {
	var req profileReq
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.UpdateUser(ctx, middleware.UserID(c), service.ProfileUpdate{Name: req.Name, Phone: req.Phone, Role: req.Role})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

// IsOrganiser answers whether an email belongs to an organizer account.
func (h *AuthHandler) IsOrganiser(c echo.Context) error {
	email := strings.TrimSpace(c.QueryParam("email"))
	if email == "" {
		return respondError(c, apperr.Field("email", "is required"))
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	ok, err := h.Users.IsEmailOrganiser(ctx, email)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"isOrganiser": ok})
}
