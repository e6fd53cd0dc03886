package booking

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rohitwebstep/synco-sub000/internal/api"
	"github.com/rohitwebstep/synco-sub000/internal/auth"
	"github.com/rohitwebstep/synco-sub000/internal/class"
	"github.com/rohitwebstep/synco-sub000/internal/logger"
	"github.com/rohitwebstep/synco-sub000/internal/payment"
	"github.com/rohitwebstep/synco-sub000/internal/plan"
)

// Mailer is the notification surface the handler needs. Emails go out after
// the transaction commits; a send failure is logged and never fails the
// request.
type Mailer interface {
	SendBookingConfirmation(ctx context.Context, to, parentName, studentName, bookingRef, className, venueName string, date time.Time) error
	SendWaitingListConfirmation(ctx context.Context, to, parentName, studentName, bookingRef, className, venueName string) error
	SendCancellation(ctx context.Context, to, parentName, bookingRef, className, reason string) error
	SendFreezeConfirmation(ctx context.Context, to, parentName, bookingRef string, reactivateOn time.Time) error
}

type Handler struct {
	svc    *Service
	mailer Mailer
}

func NewHandler(svc *Service, mailer Mailer) *Handler {
	return &Handler{svc: svc, mailer: mailer}
}

const openSourceKey = "bookingOpenSource"

// ForceOpenSource tags requests arriving on the unauthenticated routes so the
// creation handlers treat them as self-service regardless of the payload.
func ForceOpenSource() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(openSourceKey, true)
		c.Next()
	}
}

// CreateFreeTrial godoc
// @Summary Book a free trial class
// @Tags bookings
// @Accept json
// @Produce json
// @Param request body CreateRequest true "Free trial booking"
// @Success 201 {object} api.Response
// @Router /bookings/free-trial [post]
func (h *Handler) CreateFreeTrial(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.Fail("Invalid request body"))
		return
	}
	if c.GetBool(openSourceKey) {
		req.Source = SourceOpen
	}

	bookedBy, _ := auth.GetAccountID(c)
	created, err := h.svc.CreateFreeTrial(c.Request.Context(), req, bookedBy)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.mailer.SendBookingConfirmation(c.Request.Context(),
		created.ParentEmail, created.ParentFirstName,
		created.StudentFirstName+" "+created.StudentLastName,
		created.Booking.Reference, created.ClassName, created.VenueName,
		*created.Booking.TrialDate); err != nil {
		logger.Errorf("Failed to queue confirmation email for %s: %v", created.Booking.Reference, err)
	}

	c.JSON(http.StatusCreated, api.OK("Free trial booked successfully", created))
}

// CreateMembership godoc
// @Summary Book a paid membership
// @Tags bookings
// @Accept json
// @Produce json
// @Param request body CreateMembershipRequest true "Membership booking"
// @Success 201 {object} api.Response
// @Router /bookings/membership [post]
func (h *Handler) CreateMembership(c *gin.Context) {
	var req CreateMembershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.Fail("Invalid request body"))
		return
	}
	if c.GetBool(openSourceKey) {
		req.Source = SourceOpen
	}

	bookedBy, _ := auth.GetAccountID(c)
	created, err := h.svc.CreateMembership(c.Request.Context(), req, bookedBy)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.mailer.SendBookingConfirmation(c.Request.Context(),
		created.ParentEmail, created.ParentFirstName,
		created.StudentFirstName+" "+created.StudentLastName,
		created.Booking.Reference, created.ClassName, created.VenueName,
		*created.Booking.StartDate); err != nil {
		logger.Errorf("Failed to queue confirmation email for %s: %v", created.Booking.Reference, err)
	}

	c.JSON(http.StatusCreated, api.OK("Membership booked successfully", created))
}

// CreateWaitingList godoc
// @Summary Join the waiting list for a full class
// @Tags bookings
// @Accept json
// @Produce json
// @Param request body CreateRequest true "Waiting list booking"
// @Success 201 {object} api.Response
// @Router /bookings/waiting-list [post]
func (h *Handler) CreateWaitingList(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.Fail("Invalid request body"))
		return
	}
	if c.GetBool(openSourceKey) {
		req.Source = SourceOpen
	}

	bookedBy, _ := auth.GetAccountID(c)
	created, err := h.svc.CreateWaitingList(c.Request.Context(), req, bookedBy)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.mailer.SendWaitingListConfirmation(c.Request.Context(),
		created.ParentEmail, created.ParentFirstName,
		created.StudentFirstName+" "+created.StudentLastName,
		created.Booking.Reference, created.ClassName, created.VenueName); err != nil {
		logger.Errorf("Failed to queue waiting list email for %s: %v", created.Booking.Reference, err)
	}

	c.JSON(http.StatusCreated, api.OK("Added to waiting list", created))
}

// Convert godoc
// @Summary Convert a waiting-list or trial booking into a membership
// @Tags bookings
// @Accept json
// @Produce json
// @Param id path int true "Booking ID"
// @Param request body ConvertRequest true "Conversion payload"
// @Success 200 {object} api.Response
// @Router /bookings/{id}/convert [post]
func (h *Handler) Convert(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}

	var req ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.Fail("Invalid request body"))
		return
	}

	converted, err := h.svc.Convert(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.OK("Booking converted to membership", converted))
}

// Cancel godoc
// @Summary Cancel a booking immediately or on a future date
// @Tags bookings
// @Accept json
// @Produce json
// @Param id path int true "Booking ID"
// @Param request body CancelRequest true "Cancellation"
// @Success 200 {object} api.Response
// @Router /bookings/{id}/cancel [post]
func (h *Handler) Cancel(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}

	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.Fail("Invalid request body"))
		return
	}

	if err := h.svc.Cancel(c.Request.Context(), id, req); err != nil {
		respondError(c, err)
		return
	}

	if req.Type == CancelImmediate {
		h.sendCancellationEmail(c.Request.Context(), id, req.Reason)
	}

	c.JSON(http.StatusOK, api.OK("Booking cancelled", nil))
}

func (h *Handler) sendCancellationEmail(ctx context.Context, bookingID int, reason string) {
	b, err := h.svc.Get(ctx, bookingID)
	if err != nil {
		logger.Errorf("Failed to load booking %d for cancellation email: %v", bookingID, err)
		return
	}
	parent, err := h.svc.FirstParent(ctx, bookingID)
	if err != nil {
		logger.Errorf("Failed to load parent for booking %d: %v", bookingID, err)
		return
	}

	className := h.svc.ClassName(ctx, b.ClassScheduleID)
	if err := h.mailer.SendCancellation(ctx, parent.Email, parent.FirstName, b.Reference, className, reason); err != nil {
		logger.Errorf("Failed to queue cancellation email for %s: %v", b.Reference, err)
	}
}

// RetryPayment godoc
// @Summary Retry the latest failed or pending payment
// @Tags bookings
// @Accept json
// @Produce json
// @Param id path int true "Booking ID"
// @Param request body RetryPaymentRequest false "Card details for card retries"
// @Success 200 {object} api.Response
// @Router /bookings/{id}/retry-payment [post]
func (h *Handler) RetryPayment(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}

	var req RetryPaymentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, api.Fail("Invalid request body"))
			return
		}
	}

	attempt, err := h.svc.RetryPayment(c.Request.Context(), id, req.Card)
	if err != nil {
		var payErr *PaymentError
		if errors.As(err, &payErr) {
			// The attempt row was updated; surface the gateway message.
			c.JSON(http.StatusBadRequest, api.Response{Status: false, Message: payErr.Message, Data: attempt})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.OK("Payment attempt processed", attempt))
}

// Transfer godoc
// @Summary Move a booking to another class schedule
// @Tags bookings
// @Accept json
// @Produce json
// @Param id path int true "Booking ID"
// @Param request body TransferRequest true "Transfer target"
// @Success 200 {object} api.Response
// @Router /bookings/{id}/transfer [patch]
func (h *Handler) Transfer(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}

	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.Fail("Invalid request body"))
		return
	}

	if err := h.svc.Transfer(c.Request.Context(), id, req); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.OK("Booking transferred", nil))
}

// Freeze godoc
// @Summary Freeze an active membership
// @Tags bookings
// @Accept json
// @Produce json
// @Param id path int true "Booking ID"
// @Param request body FreezeRequest true "Freeze period"
// @Success 200 {object} api.Response
// @Router /bookings/{id}/freeze [patch]
func (h *Handler) Freeze(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}

	var req FreezeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.Fail("Invalid request body"))
		return
	}

	frozen, err := h.svc.Freeze(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}

	if parent, perr := h.svc.FirstParent(c.Request.Context(), id); perr == nil {
		b, berr := h.svc.Get(c.Request.Context(), id)
		if berr == nil {
			if err := h.mailer.SendFreezeConfirmation(c.Request.Context(),
				parent.Email, parent.FirstName, b.Reference, frozen.ReactivateOn); err != nil {
				logger.Errorf("Failed to queue freeze email for booking %d: %v", id, err)
			}
		}
	}

	c.JSON(http.StatusOK, api.OK("Membership frozen", frozen))
}

// Reactivate godoc
// @Summary Reactivate a frozen membership
// @Tags bookings
// @Accept json
// @Produce json
// @Param id path int true "Booking ID"
// @Success 200 {object} api.Response
// @Router /bookings/{id}/reactivate [patch]
func (h *Handler) Reactivate(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}

	if err := h.svc.Reactivate(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.OK("Membership reactivated", nil))
}

// MarkAttendance godoc
// @Summary Record the trial outcome for a booking
// @Tags bookings
// @Accept json
// @Produce json
// @Param id path int true "Booking ID"
// @Param request body AttendanceRequest true "Outcome"
// @Success 200 {object} api.Response
// @Router /bookings/{id}/attendance [patch]
func (h *Handler) MarkAttendance(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}

	var req AttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.Fail("Invalid request body"))
		return
	}

	if err := h.svc.MarkAttendance(c.Request.Context(), id, req); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.OK("Attendance recorded", nil))
}

// UpdateStudents godoc
// @Summary Edit student details on an existing booking
// @Tags bookings
// @Accept json
// @Produce json
// @Param id path int true "Booking ID"
// @Success 200 {object} api.Response
// @Router /bookings/{id}/students [patch]
func (h *Handler) UpdateStudents(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}

	var req struct {
		Students []StudentInput `json:"students" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.Fail("Invalid request body"))
		return
	}

	if err := h.svc.UpdateStudents(c.Request.Context(), id, req.Students); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.OK("Students updated", nil))
}

// RemoveFromWaitingList godoc
// @Summary Remove a booking from the waiting list
// @Tags bookings
// @Produce json
// @Param id path int true "Booking ID"
// @Success 200 {object} api.Response
// @Router /bookings/{id}/waiting-list [delete]
func (h *Handler) RemoveFromWaitingList(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}

	reason := c.Query("reason")
	if err := h.svc.RemoveFromWaitingList(c.Request.Context(), id, reason); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.OK("Removed from waiting list", nil))
}

// PaymentHistory godoc
// @Summary List every payment attempt recorded against a booking
// @Tags bookings
// @Produce json
// @Param id path int true "Booking ID"
// @Success 200 {object} api.Response
// @Router /bookings/{id}/payments [get]
func (h *Handler) PaymentHistory(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}

	attempts, err := h.svc.PaymentHistory(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.OK("Payment history fetched", attempts))
}

// List godoc
// @Summary List bookings with filters and summary stats
// @Tags bookings
// @Produce json
// @Param status query string false "Booking status"
// @Param venue_id query int false "Venue ID"
// @Param venue_name query string false "Venue name substring"
// @Param student_name query string false "Student name substring"
// @Success 200 {object} api.Response
// @Router /bookings [get]
func (h *Handler) List(c *gin.Context) {
	filter := ListFilter{
		Status:      c.Query("status"),
		VenueName:   c.Query("venue_name"),
		StudentName: c.Query("student_name"),
		DateBooked:  c.Query("date_booked"),
		FromDate:    c.Query("from_date"),
		ToDate:      c.Query("to_date"),
		DateFrom:    c.Query("date_from"),
		DateTo:      c.Query("date_to"),
	}
	if v := c.Query("venue_id"); v != "" {
		filter.VenueID, _ = strconv.Atoi(v)
	}
	if v := c.Query("booked_by"); v != "" {
		filter.BookedBy, _ = strconv.Atoi(v)
	}

	result, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.OK("Bookings fetched successfully", result))
}

// DueCancellations godoc
// @Summary List scheduled cancellations that have come due
// @Tags bookings
// @Produce json
// @Success 200 {object} api.Response
// @Router /bookings/due-cancellations [get]
func (h *Handler) DueCancellations(c *gin.Context) {
	due, err := h.svc.DueCancellations(c.Request.Context(), time.Now())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.OK("Due cancellations fetched", due))
}

// RunDueCancellations godoc
// @Summary Cancel every booking whose scheduled cancellation date has passed
// @Tags bookings
// @Produce json
// @Success 200 {object} api.Response
// @Router /bookings/run-due-cancellations [post]
func (h *Handler) RunDueCancellations(c *gin.Context) {
	processed, err := h.svc.RunDueCancellations(c.Request.Context(), time.Now())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.OK("Due cancellations processed", gin.H{"processed": processed}))
}

func bookingID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, api.Fail("Invalid booking id"))
		return 0, false
	}
	return id, true
}

// respondError maps service errors onto HTTP statuses. Domain messages pass
// through verbatim; unexpected errors are logged and masked.
func respondError(c *gin.Context, err error) {
	var capErr *CapacityError
	var valErr *ValidationError
	var unmatched *UnmatchedError
	var payErr *PaymentError

	switch {
	case errors.Is(err, ErrBookingNotFound),
		errors.Is(err, class.ErrScheduleNotFound),
		errors.Is(err, plan.ErrPlanNotFound),
		errors.Is(err, payment.ErrNoAttempts):
		c.JSON(http.StatusNotFound, api.Fail(err.Error()))
	case errors.Is(err, ErrDuplicateEmail):
		c.JSON(http.StatusConflict, api.Fail(err.Error()))
	case errors.As(err, &capErr),
		errors.As(err, &valErr),
		errors.As(err, &unmatched),
		errors.As(err, &payErr),
		errors.Is(err, ErrSeatsAvailable),
		errors.Is(err, ErrAlreadyFrozen),
		errors.Is(err, ErrNotFrozen),
		errors.Is(err, ErrNotWaitingList),
		errors.Is(err, ErrNotPending),
		errors.Is(err, ErrNotActive):
		c.JSON(http.StatusBadRequest, api.Fail(err.Error()))
	default:
		logger.Errorf("Booking request failed: %v", err)
		c.JSON(http.StatusInternalServerError, api.Fail("Something went wrong"))
	}
}
