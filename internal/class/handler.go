package class

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

// CreateSchedule godoc
// @Summary      Create class schedule
// @Tags         classes
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      CreateScheduleRequest  true  "Schedule data"
// @Success      201      {object}  api.Response
// @Failure      400      {object}  api.Response
// @Router       /admin/classes [post]
func (h *Handler) CreateSchedule(c *gin.Context) {
	var req CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.Fail(err.Error()))
		return
	}

	s, err := h.repo.Create(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.Fail("Failed to create class schedule"))
		return
	}

	c.JSON(http.StatusCreated, api.OK("Class schedule created successfully", s))
}

// ListSchedules godoc
// @Summary      List class schedules for a venue
// @Tags         classes
// @Security     BearerAuth
// @Produce      json
// @Param        venueID  path      int  true  "Venue ID"
// @Success      200      {object}  api.Response
// @Router       /venues/{venueID}/classes [get]
func (h *Handler) ListSchedules(c *gin.Context) {
	venueID, err := strconv.Atoi(c.Param("venueID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.Fail("Invalid venue ID"))
		return
	}

	schedules, err := h.repo.GetByVenue(c.Request.Context(), venueID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.Fail("Failed to fetch class schedules"))
		return
	}

	c.JSON(http.StatusOK, api.OK("Class schedules fetched successfully", schedules))
}

// GetSchedule godoc
// @Summary      Get class schedule by id
// @Tags         classes
// @Security     BearerAuth
// @Produce      json
// @Param        classID  path      int  true  "Class schedule ID"
// @Success      200      {object}  api.Response
// @Failure      404      {object}  api.Response
// @Router       /classes/{classID} [get]
func (h *Handler) GetSchedule(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("classID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.Fail("Invalid class ID"))
		return
	}

	s, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, api.Fail("Class schedule not found"))
		return
	}

	c.JSON(http.StatusOK, api.OK("Class schedule fetched successfully", s))
}
