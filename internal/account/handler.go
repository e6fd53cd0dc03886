package account

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/rohitwebstep/synco-sub000/internal/api"
	"github.com/rohitwebstep/synco-sub000/internal/auth"
)

type Handler struct {
	repo      *Repository
	jwtSecret string
}

func NewHandler(db *sqlx.DB, jwtSecret, parentDefaultPassword string) *Handler {
	return &Handler{
		repo:      NewRepository(db, parentDefaultPassword),
		jwtSecret: jwtSecret,
	}
}

// Register godoc
// @Summary      Register staff account
// @Description  Creates a new admin/staff account. Admin only.
// @Tags         auth
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      RegisterRequest  true  "Account data"
// @Success      201      {object}  api.Response
// @Failure      400      {object}  api.Response
// @Failure      409      {object}  api.Response
// @Router       /admin/accounts [post]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.Fail(err.Error()))
		return
	}

	exists, err := h.repo.EmailExists(c.Request.Context(), h.repo.db, req.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.Fail("Database error"))
		return
	}
	if exists {
		c.JSON(http.StatusConflict, api.Fail("Email already registered"))
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.Fail("Failed to hash password"))
		return
	}

	a, err := h.repo.Create(c.Request.Context(), req.FirstName, req.LastName, req.Email, req.Phone, passwordHash, req.RoleID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.Fail("Failed to create account"))
		return
	}

	c.JSON(http.StatusCreated, api.OK("Account created successfully", a))
}

// Login godoc
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      LoginRequest  true  "Credentials"
// @Success      200      {object}  api.Response
// @Failure      401      {object}  api.Response
// @Router       /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.Fail(err.Error()))
		return
	}

	a, err := h.repo.FindByEmail(c.Request.Context(), req.Email)
	if err != nil {
		c.JSON(http.StatusUnauthorized, api.Fail("Invalid email or password"))
		return
	}

	if !auth.CheckPassword(a.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, api.Fail("Invalid email or password"))
		return
	}

	accessToken, refreshToken, err := auth.GenerateTokens(a.ID, a.Email, a.RoleName(), h.jwtSecret, h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.Fail("Failed to generate tokens"))
		return
	}

	c.JSON(http.StatusOK, api.OK("Logged in successfully", LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Account:      *a,
	}))
}

// RefreshToken godoc
// @Summary      Refresh access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      map[string]string  true  "Refresh token payload"
// @Success      200      {object}  api.Response
// @Failure      401      {object}  api.Response
// @Router       /auth/refresh [post]
func (h *Handler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.JSON(http.StatusBadRequest, api.Fail("refresh_token is required"))
		return
	}

	_, claims, err := auth.RefreshAccessToken(req.RefreshToken, h.jwtSecret, h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, api.Fail("invalid or expired refresh token"))
		return
	}

	a, err := h.repo.FindByID(c.Request.Context(), claims.AccountID)
	if err != nil {
		c.JSON(http.StatusNotFound, api.Fail("account not found"))
		return
	}

	newAccessToken, err := auth.GenerateAccessToken(a.ID, a.Email, a.RoleName(), h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.Fail("failed to generate access token"))
		return
	}

	c.JSON(http.StatusOK, api.OK("Token refreshed", gin.H{
		"access_token": newAccessToken,
		"account":      a,
	}))
}

// GetMe godoc
// @Summary      Get current account
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  api.Response
// @Failure      401  {object}  api.Response
// @Router       /me [get]
func (h *Handler) GetMe(c *gin.Context) {
	accountID, exists := auth.GetAccountID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, api.Fail("Not authenticated"))
		return
	}

	a, err := h.repo.FindByID(c.Request.Context(), accountID)
	if err != nil {
		c.JSON(http.StatusNotFound, api.Fail("Account not found"))
		return
	}

	c.JSON(http.StatusOK, api.OK("Account fetched successfully", a))
}
