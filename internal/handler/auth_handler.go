package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/love-timeline-api/internal/models"
	"github.com/noah-isme/love-timeline-api/internal/service"
	appErrors "github.com/noah-isme/love-timeline-api/pkg/errors"
	"github.com/noah-isme/love-timeline-api/pkg/response"
)

type authService interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	Profile(ctx context.Context, userID string) (*models.UserInfo, error)
	Partners(ctx context.Context) ([]models.User, error)
	UpdateProfile(ctx context.Context, actor *models.JWTClaims, in service.UpdateProfileInput) (*models.LoginResponse, error)
}

const defaultMaxAvatarBytes = 5 << 20

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service        authService
	maxAvatarBytes int64
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService) *AuthHandler {
	return &AuthHandler{service: svc, maxAvatarBytes: defaultMaxAvatarBytes}
}

// Login godoc
// @Summary Authenticate user
// @Description Authenticate a partner by email and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}

	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Me godoc
// @Summary Get current user
// @Description Returns the authenticated user's profile
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}

	info, err := h.service.Profile(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, info, nil)
}

// UpdateMe godoc
// @Summary Update current user
// @Description Changes the display name and optionally uploads a new avatar; returns a fresh token
// @Tags Authentication
// @Accept multipart/form-data
// @Produce json
// @Param display_name formData string true "Display name"
// @Param avatar formData file false "Avatar image"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /auth/me [patch]
func (h *AuthHandler) UpdateMe(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}

	in := service.UpdateProfileInput{DisplayName: c.PostForm("display_name")}
	fh, err := c.FormFile("avatar")
	switch {
	case err == nil:
		if h.maxAvatarBytes > 0 && fh.Size > h.maxAvatarBytes {
			response.Error(c, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("avatar exceeds %d bytes", h.maxAvatarBytes)))
			return
		}
		if in.Avatar, err = readHeader(fh); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable avatar"))
			return
		}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid profile form"))
		return
	}

	res, err := h.service.UpdateProfile(c.Request.Context(), claims, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Partners godoc
// @Summary List partners
// @Description Accounts that contribute to the timeline with their contribution counts
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /partners [get]
func (h *AuthHandler) Partners(c *gin.Context) {
	users, err := h.service.Partners(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, nil)
}
