package venue

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/rohitwebstep/synco-sub000/internal/api"
)

type Handler struct {
	repo *Repository
}

func NewHandler(db *sqlx.DB) *Handler {
	return &Handler{repo: NewRepository(db)}
}

// CreateVenue godoc
// @Summary      Create venue
// @Tags         venues
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      CreateVenueRequest  true  "Venue data"
// @Success      201      {object}  api.Response
// @Failure      400      {object}  api.Response
// @Router       /admin/venues [post]
func (h *Handler) CreateVenue(c *gin.Context) {
	var req CreateVenueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.Fail(err.Error()))
		return
	}

	v, err := h.repo.Create(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.Fail("Failed to create venue"))
		return
	}

	c.JSON(http.StatusCreated, api.OK("Venue created successfully", v))
}

// ListVenues godoc
// @Summary      List venues
// @Tags         venues
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  api.Response
// @Router       /venues [get]
func (h *Handler) ListVenues(c *gin.Context) {
	venues, err := h.repo.GetAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.Fail("Failed to fetch venues"))
		return
	}

	c.JSON(http.StatusOK, api.OK("Venues fetched successfully", venues))
}

// GetVenue godoc
// @Summary      Get venue by id
// @Tags         venues
// @Security     BearerAuth
// @Produce      json
// @Param        venueID  path      int  true  "Venue ID"
// @Success      200      {object}  api.Response
// @Failure      404      {object}  api.Response
// @Router       /venues/{venueID} [get]
func (h *Handler) GetVenue(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("venueID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.Fail("Invalid venue ID"))
		return
	}

	v, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, api.Fail("Venue not found"))
		return
	}

	c.JSON(http.StatusOK, api.OK("Venue fetched successfully", v))
}
