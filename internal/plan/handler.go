package plan

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

// CreatePlan godoc
// @Summary      Create payment plan
// @Tags         plans
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      CreatePlanRequest  true  "Plan data"
// @Success      201      {object}  api.Response
// @Failure      400      {object}  api.Response
// @Router       /admin/plans [post]
func (h *Handler) CreatePlan(c *gin.Context) {
	var req CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.Fail(err.Error()))
		return
	}

	p, err := h.repo.Create(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.Fail("Failed to create payment plan"))
		return
	}

	c.JSON(http.StatusCreated, api.OK("Payment plan created successfully", p))
}

// ListPlans godoc
// @Summary      List payment plans
// @Tags         plans
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  api.Response
// @Router       /plans [get]
func (h *Handler) ListPlans(c *gin.Context) {
	plans, err := h.repo.GetAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.Fail("Failed to fetch payment plans"))
		return
	}

	c.JSON(http.StatusOK, api.OK("Payment plans fetched successfully", plans))
}

// GetPlan godoc
// @Summary      Get payment plan by id
// @Tags         plans
// @Security     BearerAuth
// @Produce      json
// @Param        planID  path      int  true  "Plan ID"
// @Success      200     {object}  api.Response
// @Failure      404     {object}  api.Response
// @Router       /plans/{planID} [get]
func (h *Handler) GetPlan(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("planID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.Fail("Invalid plan ID"))
		return
	}

	p, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, api.Fail("Payment plan not found"))
		return
	}

	c.JSON(http.StatusOK, api.OK("Payment plan fetched successfully", p))
}
