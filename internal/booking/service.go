package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rohitwebstep/synco-sub000/internal/account"
	"github.com/rohitwebstep/synco-sub000/internal/class"
	"github.com/rohitwebstep/synco-sub000/internal/logger"
	"github.com/rohitwebstep/synco-sub000/internal/metrics"
	"github.com/rohitwebstep/synco-sub000/internal/payment"
	"github.com/rohitwebstep/synco-sub000/internal/plan"
	"github.com/rohitwebstep/synco-sub000/internal/venue"
)

const dateLayout = "2006-01-02"

// SourceOpen marks self-service bookings: bookedBy is resolved by
// provisioning a parent login account instead of an authenticated admin.
const SourceOpen = "open"

type ClassStore interface {
	GetByID(ctx context.Context, id int) (*class.Schedule, error)
	GetByIDTx(ctx context.Context, tx *sqlx.Tx, id int) (*class.Schedule, error)
	DecrementCapacity(ctx context.Context, tx *sqlx.Tx, id, n int) error
}

type VenueStore interface {
	GetByID(ctx context.Context, id int) (*venue.Venue, error)
}

type PlanStore interface {
	GetByIDTx(ctx context.Context, tx *sqlx.Tx, id int) (*plan.Plan, error)
}

type AccountStore interface {
	EmailExists(ctx context.Context, q sqlx.QueryerContext, email string) (bool, error)
	EnsureParentAccount(ctx context.Context, tx *sqlx.Tx, firstName, lastName, email, phone string) (*account.Account, error)
}

type PaymentStore interface {
	InsertAttempt(ctx context.Context, tx *sqlx.Tx, a *payment.Attempt) (*payment.Attempt, error)
	LatestByBooking(ctx context.Context, bookingID int) (*payment.Attempt, error)
	HistoryByBooking(ctx context.Context, bookingID int) ([]payment.Attempt, error)
	UpdateAttempt(ctx context.Context, tx *sqlx.Tx, id int, status payment.Status, gatewayStatus string, gatewayResponse []byte) error
}

// Service orchestrates the booking lifecycle. Every mutating operation runs
// inside a single transaction: any failure rolls the whole unit back.
type Service struct {
	db       *sqlx.DB
	repo     Repository
	classes  ClassStore
	venues   VenueStore
	plans    PlanStore
	accounts AccountStore
	payments PaymentStore
	gateways map[payment.Method]payment.Gateway
}

func NewService(
	db *sqlx.DB,
	repo Repository,
	classes ClassStore,
	venues VenueStore,
	plans PlanStore,
	accounts AccountStore,
	payments PaymentStore,
	rrnGateway payment.Gateway,
	cardGateway payment.Gateway,
) *Service {
	return &Service{
		db:       db,
		repo:     repo,
		classes:  classes,
		venues:   venues,
		plans:    plans,
		accounts: accounts,
		payments: payments,
		gateways: map[payment.Method]payment.Gateway{
			payment.MethodRRN:  rrnGateway,
			payment.MethodCard: cardGateway,
		},
	}
}

func (s *Service) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

// CreateFreeTrial books a trial class for one or more students.
func (s *Service) CreateFreeTrial(ctx context.Context, req CreateRequest, bookedBy int) (*Created, error) {
	trialDate, err := parseDate(req.TrialDate, "trial_date")
	if err != nil {
		return nil, err
	}

	created, err := s.create(ctx, req, bookedBy, TypeFree, StatusPending, trialDate, nil, nil)
	if err != nil {
		metrics.RecordBooking(string(TypeFree), "failed")
		return nil, err
	}

	metrics.RecordBooking(string(TypeFree), "created")
	return created, nil
}

// CreateWaitingList holds a booking against a full class. The gate is the
// inverse of the trial flow: any free capacity rejects the request.
func (s *Service) CreateWaitingList(ctx context.Context, req CreateRequest, bookedBy int) (*Created, error) {
	created, err := s.create(ctx, req, bookedBy, TypeWaitingList, StatusWaitingList, nil, nil, nil)
	if err != nil {
		metrics.RecordBooking(string(TypeWaitingList), "failed")
		return nil, err
	}

	metrics.RecordBooking(string(TypeWaitingList), "created")
	return created, nil
}

// CreateMembership creates a paid booking, attempting payment inside the same
// transaction. A failed payment aborts everything; pending and paid outcomes
// let the booking persist.
func (s *Service) CreateMembership(ctx context.Context, req CreateMembershipRequest, bookedBy int) (*Created, error) {
	startDate, err := parseDate(req.StartDate, "start_date")
	if err != nil {
		return nil, err
	}

	created, err := s.create(ctx, req.CreateRequest, bookedBy, TypePaid, StatusActive, nil, startDate, &req)
	if err != nil {
		metrics.RecordBooking(string(TypePaid), "failed")
		return nil, err
	}

	metrics.RecordBooking(string(TypePaid), "created")
	return created, nil
}

// create runs the shared creation flow. A non-nil memReq makes it a paid
// membership and charges inside the transaction; the waiting-list type
// inverts the capacity gate and takes no capacity.
func (s *Service) create(
	ctx context.Context,
	req CreateRequest,
	bookedBy int,
	bookingType BookingType,
	status Status,
	trialDate, startDate *time.Time,
	memReq *CreateMembershipRequest,
) (*Created, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	// Anonymous callers must come through the self-service flow, which
	// resolves bookedBy by provisioning a parent account.
	if bookedBy == 0 && req.Source != SourceOpen {
		return nil, &ValidationError{Field: "source"}
	}

	waitingList := bookingType == TypeWaitingList

	var planID *int
	if memReq != nil {
		planID = &memReq.PaymentPlanID
	}

	var created *Created
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		schedule, err := s.classes.GetByIDTx(ctx, tx, req.ClassScheduleID)
		if err != nil {
			return err
		}

		totalStudents := len(req.Students)
		if waitingList {
			if schedule.Capacity > 0 {
				return ErrSeatsAvailable
			}
		} else if schedule.Capacity < totalStudents {
			return &CapacityError{Remaining: schedule.Capacity}
		}

		firstParent := req.Parents[0]
		resolvedBookedBy := bookedBy
		if req.Source == SourceOpen {
			acct, err := s.accounts.EnsureParentAccount(ctx, tx,
				firstParent.FirstName, firstParent.LastName, firstParent.Email, firstParent.Phone)
			if err != nil {
				return err
			}
			resolvedBookedBy = acct.ID
		}

		if err := s.checkDuplicateEmails(ctx, tx, req.Parents, req.Source == SourceOpen); err != nil {
			return err
		}

		b, err := s.insertWithReference(ctx, tx, &Booking{
			BookingType:     bookingType,
			Status:          status,
			VenueID:         schedule.VenueID,
			ClassScheduleID: schedule.ID,
			PaymentPlanID:   planID,
			BookedBy:        resolvedBookedBy,
			TotalStudents:   totalStudents,
			TrialDate:       trialDate,
			StartDate:       startDate,
			Interest:        req.Interest,
			AdditionalNote:  req.AdditionalNote,
		})
		if err != nil {
			return err
		}

		students, err := s.insertChildren(ctx, tx, b.ID, req)
		if err != nil {
			return err
		}

		if !waitingList {
			if err := s.classes.DecrementCapacity(ctx, tx, schedule.ID, totalStudents); err != nil {
				if errors.Is(err, class.ErrCapacityExhausted) {
					return &CapacityError{Remaining: schedule.Capacity}
				}
				return err
			}
		}

		created = &Created{
			Booking:          b,
			StudentFirstName: students[0].FirstName,
			StudentLastName:  students[0].LastName,
			ParentFirstName:  firstParent.FirstName,
			ParentEmail:      firstParent.Email,
			ClassName:        schedule.ClassName,
		}

		if memReq != nil {
			attempt, err := s.chargeForBooking(ctx, tx, b, memReq, firstParent)
			if err != nil {
				return err
			}
			created.PaymentStatus = string(attempt.PaymentStatus)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if v, err := s.venues.GetByID(ctx, created.Booking.VenueID); err == nil {
		created.VenueName = v.Name
	}

	return created, nil
}

// checkDuplicateEmails rejects parent emails that already exist as parent
// rows or login accounts. The self-service flow tolerates an existing account
// for the first parent because EnsureParentAccount updates it in place.
func (s *Service) checkDuplicateEmails(ctx context.Context, tx *sqlx.Tx, parents []ParentInput, openFlow bool) error {
	for i, p := range parents {
		exists, err := s.repo.ParentEmailExists(ctx, tx, p.Email)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateEmail
		}

		if openFlow && i == 0 {
			continue
		}

		exists, err = s.accounts.EmailExists(ctx, tx, p.Email)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateEmail
		}
	}

	return nil
}

func (s *Service) insertWithReference(ctx context.Context, tx *sqlx.Tx, b *Booking) (*Booking, error) {
	for attempt := 0; attempt < referenceMaxRetries; attempt++ {
		ref, err := NewReference()
		if err != nil {
			return nil, err
		}
		b.Reference = ref

		inserted, err := s.repo.InsertBooking(ctx, tx, b)
		if err == nil {
			return inserted, nil
		}
		if !IsUniqueViolation(err) {
			return nil, err
		}
		logger.Warnf("Booking reference collision on %s, retrying", ref)
	}

	return nil, errors.New("could not generate a unique booking reference")
}

// insertChildren writes the student, parent and emergency rows. Parents and
// the emergency contact hang off the first student by convention.
func (s *Service) insertChildren(ctx context.Context, tx *sqlx.Tx, bookingID int, req CreateRequest) ([]StudentMeta, error) {
	students := make([]StudentMeta, 0, len(req.Students))
	for _, in := range req.Students {
		dob, err := parseDate(in.DateOfBirth, "date_of_birth")
		if err != nil {
			return nil, err
		}

		inserted, err := s.repo.InsertStudent(ctx, tx, &StudentMeta{
			BookingID:   bookingID,
			FirstName:   in.FirstName,
			LastName:    in.LastName,
			DateOfBirth: *dob,
			Age:         in.Age,
			Gender:      in.Gender,
			MedicalInfo: in.MedicalInfo,
		})
		if err != nil {
			return nil, err
		}
		students = append(students, *inserted)
	}

	firstStudentID := students[0].ID
	for _, in := range req.Parents {
		_, err := s.repo.InsertParent(ctx, tx, &ParentMeta{
			StudentID:      firstStudentID,
			FirstName:      in.FirstName,
			LastName:       in.LastName,
			Email:          in.Email,
			Phone:          in.Phone,
			Relation:       in.Relation,
			ReferralSource: in.ReferralSource,
		})
		if err != nil {
			return nil, err
		}
	}

	_, err := s.repo.InsertEmergencyContact(ctx, tx, &EmergencyContact{
		StudentID: firstStudentID,
		FirstName: req.Emergency.FirstName,
		LastName:  req.Emergency.LastName,
		Phone:     req.Emergency.Phone,
		Relation:  req.Emergency.Relation,
	})
	if err != nil {
		return nil, err
	}

	return students, nil
}

// chargeForBooking issues the single gateway call for a membership creation
// and records the attempt. A failed normalization aborts the transaction with
// the gateway's message verbatim.
func (s *Service) chargeForBooking(ctx context.Context, tx *sqlx.Tx, b *Booking, req *CreateMembershipRequest, payer ParentInput) (*payment.Attempt, error) {
	p, err := s.plans.GetByIDTx(ctx, tx, req.PaymentPlanID)
	if err != nil {
		return nil, err
	}

	gw, ok := s.gateways[req.PaymentMethod]
	if !ok {
		return nil, &ValidationError{Field: "payment_method"}
	}
	if req.PaymentMethod == payment.MethodCard && req.Card == nil {
		return nil, &ValidationError{Field: "card"}
	}

	result := gw.Charge(ctx, payment.ChargeRequest{
		AmountCents: p.PriceCents * int64(b.TotalStudents),
		Currency:    "GBP",
		Description: fmt.Sprintf("%s membership - %s", p.Name, b.Reference),
		MerchantRef: b.Reference,
		Card:        req.Card,
	})

	metrics.RecordPaymentAttempt(string(req.PaymentMethod), string(result.Status))

	attempt := &payment.Attempt{
		BookingID:       b.ID,
		FirstName:       payer.FirstName,
		LastName:        payer.LastName,
		Email:           payer.Email,
		PaymentType:     req.PaymentMethod,
		PaymentStatus:   result.Status,
		AmountCents:     p.PriceCents * int64(b.TotalStudents),
		GatewayResponse: result.Raw,
		GatewayStatus:   result.GatewayStatus,
	}
	if req.Card != nil {
		attempt.CardHolderName = req.Card.CardHolderName
		if n := len(req.Card.Pan); n >= 4 {
			attempt.CardLast4 = req.Card.Pan[n-4:]
		}
	}

	inserted, err := s.payments.InsertAttempt(ctx, tx, attempt)
	if err != nil {
		return nil, err
	}

	if result.Status == payment.StatusFailed {
		return nil, &PaymentError{Message: result.Message}
	}

	return inserted, nil
}

// RetryPayment re-attempts the latest failed or pending payment. Idempotent:
// a latest attempt that is already paid short-circuits without touching the
// gateway. A failed retry is recorded but reported as an error only.
func (s *Service) RetryPayment(ctx context.Context, bookingID int, card *payment.CardDetails) (*payment.Attempt, error) {
	b, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	latest, err := s.payments.LatestByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if latest.PaymentStatus == payment.StatusPaid {
		return latest, nil
	}

	if b.PaymentPlanID == nil {
		return nil, &ValidationError{Field: "payment_plan_id"}
	}

	gw := s.gateways[latest.PaymentType]
	if latest.PaymentType == payment.MethodCard && card == nil {
		return nil, &ValidationError{Field: "card"}
	}

	var result payment.Result
	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		p, err := s.plans.GetByIDTx(ctx, tx, *b.PaymentPlanID)
		if err != nil {
			return err
		}

		result = gw.Charge(ctx, payment.ChargeRequest{
			AmountCents: p.PriceCents * int64(b.TotalStudents),
			Currency:    "GBP",
			Description: fmt.Sprintf("%s membership retry - %s", p.Name, b.Reference),
			MerchantRef: b.Reference,
			Card:        card,
		})

		metrics.RecordPaymentAttempt(string(latest.PaymentType), string(result.Status))

		if err := s.payments.UpdateAttempt(ctx, tx, latest.ID, result.Status, result.GatewayStatus, result.Raw); err != nil {
			return err
		}

		if result.Status == payment.StatusPaid && b.Status == StatusNoMembership {
			return s.repo.UpdateStatus(ctx, tx, b.ID, StatusActive)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	latest.PaymentStatus = result.Status
	latest.GatewayStatus = result.GatewayStatus
	latest.GatewayResponse = result.Raw

	if result.Status == payment.StatusFailed {
		return latest, &PaymentError{Message: result.Message}
	}

	return latest, nil
}

// Cancel cancels immediately or schedules a future cancellation. Scheduled
// cancellations stay in request_to_cancel until RunDueCancellations picks
// them up.
func (s *Service) Cancel(ctx context.Context, bookingID int, req CancelRequest) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		b, err := s.repo.GetByIDTx(ctx, tx, bookingID)
		if err != nil {
			return err
		}

		event := &LifecycleEvent{
			BookingID: b.ID,
			Kind:      EventCancelled,
			Reason:    req.Reason,
			Note:      req.Note,
		}

		switch req.Type {
		case CancelImmediate:
			ct := CancelImmediate
			event.CancellationType = &ct
			if err := s.repo.UpdateStatus(ctx, tx, b.ID, StatusCancelled); err != nil {
				return err
			}
			metrics.RecordTransition("cancelled")
		case CancelScheduled:
			cancelDate, err := parseDate(req.CancelDate, "cancel_date")
			if err != nil {
				return err
			}
			ct := CancelScheduled
			event.CancellationType = &ct
			event.CancelDate = cancelDate
			if err := s.repo.UpdateStatus(ctx, tx, b.ID, StatusRequestToCancel); err != nil {
				return err
			}
			metrics.RecordTransition("request_to_cancel")
		default:
			return &ValidationError{Field: "type"}
		}

		_, err = s.repo.InsertEvent(ctx, tx, event)
		return err
	})
}

// Freeze pauses an active membership. At most one active freeze per booking.
func (s *Service) Freeze(ctx context.Context, bookingID int, req FreezeRequest) (*Freeze, error) {
	startDate, err := parseDate(req.StartDate, "start_date")
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.ActiveFreeze(ctx, bookingID, time.Now()); err == nil {
		return nil, ErrAlreadyFrozen
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	var frozen *Freeze
	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		b, err := s.repo.GetByIDTx(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != StatusActive {
			return ErrNotActive
		}

		frozen, err = s.repo.InsertFreeze(ctx, tx, &Freeze{
			BookingID:      b.ID,
			StartDate:      *startDate,
			DurationMonths: req.DurationMonths,
			ReactivateOn:   startDate.AddDate(0, req.DurationMonths, 0),
			Reason:         req.Reason,
		})
		if err != nil {
			return err
		}

		if err := s.repo.UpdateStatus(ctx, tx, b.ID, StatusFrozen); err != nil {
			return err
		}

		metrics.RecordTransition("frozen")
		return nil
	})
	if err != nil {
		return nil, err
	}

	return frozen, nil
}

// Reactivate ends a freeze: the freeze row is deleted and the booking goes
// back to active.
func (s *Service) Reactivate(ctx context.Context, bookingID int) error {
	freeze, err := s.repo.ActiveFreeze(ctx, bookingID, time.Now())
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		b, err := s.repo.GetByIDTx(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if freeze == nil && b.Status != StatusFrozen {
			return ErrNotFrozen
		}

		if freeze != nil {
			if err := s.repo.DeleteFreeze(ctx, tx, freeze.ID); err != nil {
				return err
			}
		}

		if err := s.repo.UpdateStatus(ctx, tx, b.ID, StatusActive); err != nil {
			return err
		}

		metrics.RecordTransition("reactivated")
		return nil
	})
}

// Transfer re-points the booking at another class schedule. Capacity is not
// adjusted on either class; that matches the established behavior the office
// relies on.
func (s *Service) Transfer(ctx context.Context, bookingID int, req TransferRequest) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		b, err := s.repo.GetByIDTx(ctx, tx, bookingID)
		if err != nil {
			return err
		}

		schedule, err := s.classes.GetByIDTx(ctx, tx, req.ClassScheduleID)
		if err != nil {
			return err
		}

		if err := s.repo.UpdateTransfer(ctx, tx, b.ID, schedule.ID, schedule.VenueID); err != nil {
			return err
		}

		_, err = s.repo.InsertEvent(ctx, tx, &LifecycleEvent{
			BookingID: b.ID,
			Kind:      EventTransferred,
			Reason:    req.Reason,
		})
		if err != nil {
			return err
		}

		metrics.RecordTransition("transferred")
		return nil
	})
}

// RemoveFromWaitingList takes a booking off the waiting list for good. Both
// the status and the commercial type flip to removed.
func (s *Service) RemoveFromWaitingList(ctx context.Context, bookingID int, reason string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		b, err := s.repo.GetByIDTx(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if b.BookingType != TypeWaitingList {
			return ErrNotWaitingList
		}

		if err := s.repo.UpdateStatusAndType(ctx, tx, b.ID, StatusRemoved, TypeRemoved); err != nil {
			return err
		}

		_, err = s.repo.InsertEvent(ctx, tx, &LifecycleEvent{
			BookingID: b.ID,
			Kind:      EventRemoved,
			Reason:    reason,
		})
		if err != nil {
			return err
		}

		metrics.RecordTransition("removed")
		return nil
	})
}

// MarkAttendance resolves a pending trial to attended or not attended, and an
// attended trial to no_membership when the family does not continue.
func (s *Service) MarkAttendance(ctx context.Context, bookingID int, req AttendanceRequest) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		b, err := s.repo.GetByIDTx(ctx, tx, bookingID)
		if err != nil {
			return err
		}

		switch req.Outcome {
		case "attended":
			if b.Status != StatusPending {
				return ErrNotPending
			}
			if err := s.repo.UpdateAttendance(ctx, tx, b.ID, StatusAttended, ""); err != nil {
				return err
			}
			metrics.RecordTransition("attended")
		case "not_attend":
			if b.Status != StatusPending {
				return ErrNotPending
			}
			if err := s.repo.UpdateAttendance(ctx, tx, b.ID, StatusNotAttend, req.Reason); err != nil {
				return err
			}
			metrics.RecordTransition("not_attend")
		case "no_membership":
			if b.Status != StatusAttended {
				return errors.New("booking has not attended a trial")
			}
			if err := s.repo.UpdateStatus(ctx, tx, b.ID, StatusNoMembership); err != nil {
				return err
			}
			if _, err := s.repo.InsertEvent(ctx, tx, &LifecycleEvent{
				BookingID: b.ID,
				Kind:      EventNoMembership,
				Reason:    req.Reason,
			}); err != nil {
				return err
			}
			metrics.RecordTransition("no_membership")
		default:
			return &ValidationError{Field: "outcome"}
		}

		return nil
	})
}

// Convert turns a waiting-list or trial booking into a paid membership.
// Students and parents are matched by name and updated in place; an entry
// that matches nothing is an error rather than a silent skip.
func (s *Service) Convert(ctx context.Context, bookingID int, req ConvertRequest) (*Booking, error) {
	startDate, err := parseDate(req.StartDate, "start_date")
	if err != nil {
		return nil, err
	}

	var converted *Booking
	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		b, err := s.repo.GetByIDTx(ctx, tx, bookingID)
		if err != nil {
			return err
		}

		p, err := s.plans.GetByIDTx(ctx, tx, req.PaymentPlanID)
		if err != nil {
			return err
		}

		for _, in := range req.Students {
			existing, err := s.repo.FindStudentByName(ctx, tx, b.ID, in.FirstName, in.LastName)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return &UnmatchedError{What: fmt.Sprintf("student %s %s", in.FirstName, in.LastName)}
				}
				return err
			}

			if in.DateOfBirth != "" {
				dob, err := parseDate(in.DateOfBirth, "date_of_birth")
				if err != nil {
					return err
				}
				existing.DateOfBirth = *dob
			}
			if in.Age > 0 {
				existing.Age = in.Age
			}
			if in.Gender != "" {
				existing.Gender = in.Gender
			}
			if in.MedicalInfo != "" {
				existing.MedicalInfo = in.MedicalInfo
			}

			if err := s.repo.UpdateStudent(ctx, tx, existing); err != nil {
				return err
			}
		}

		if len(req.Parents) > 0 {
			students, err := s.repo.StudentsByBooking(ctx, b.ID)
			if err != nil {
				return err
			}
			for _, in := range req.Parents {
				existing, err := s.repo.FindParentByName(ctx, tx, students[0].ID, in.FirstName, in.LastName)
				if err != nil {
					if errors.Is(err, sql.ErrNoRows) {
						return &UnmatchedError{What: fmt.Sprintf("parent %s %s", in.FirstName, in.LastName)}
					}
					return err
				}

				if in.Email != "" {
					existing.Email = in.Email
				}
				if in.Phone != "" {
					existing.Phone = in.Phone
				}
				if in.Relation != "" {
					existing.Relation = in.Relation
				}

				if err := s.repo.UpdateParent(ctx, tx, existing); err != nil {
					return err
				}
			}
		}

		payer, err := s.firstParentTx(ctx, tx, b.ID)
		if err != nil {
			return err
		}

		gw, ok := s.gateways[req.PaymentMethod]
		if !ok {
			return &ValidationError{Field: "payment_method"}
		}
		if req.PaymentMethod == payment.MethodCard && req.Card == nil {
			return &ValidationError{Field: "card"}
		}

		result := gw.Charge(ctx, payment.ChargeRequest{
			AmountCents: p.PriceCents * int64(b.TotalStudents),
			Currency:    "GBP",
			Description: fmt.Sprintf("%s membership - %s", p.Name, b.Reference),
			MerchantRef: b.Reference,
			Card:        req.Card,
		})

		metrics.RecordPaymentAttempt(string(req.PaymentMethod), string(result.Status))

		attempt := &payment.Attempt{
			BookingID:       b.ID,
			FirstName:       payer.FirstName,
			LastName:        payer.LastName,
			Email:           payer.Email,
			PaymentType:     req.PaymentMethod,
			PaymentStatus:   result.Status,
			AmountCents:     p.PriceCents * int64(b.TotalStudents),
			GatewayResponse: result.Raw,
			GatewayStatus:   result.GatewayStatus,
		}
		if req.Card != nil {
			attempt.CardHolderName = req.Card.CardHolderName
			if n := len(req.Card.Pan); n >= 4 {
				attempt.CardLast4 = req.Card.Pan[n-4:]
			}
		}
		if _, err := s.payments.InsertAttempt(ctx, tx, attempt); err != nil {
			return err
		}

		if result.Status == payment.StatusFailed {
			return &PaymentError{Message: result.Message}
		}

		if err := s.repo.UpdateConversion(ctx, tx, b.ID, p.ID, *startDate); err != nil {
			return err
		}

		updated := *b
		updated.BookingType = TypePaid
		updated.Status = StatusActive
		updated.PaymentPlanID = &p.ID
		updated.StartDate = startDate
		updated.TrialDate = nil
		converted = &updated

		metrics.RecordTransition("converted")
		return nil
	})
	if err != nil {
		return nil, err
	}

	return converted, nil
}

func (s *Service) firstParentTx(ctx context.Context, tx *sqlx.Tx, bookingID int) (*ParentMeta, error) {
	var p ParentMeta
	err := tx.GetContext(ctx, &p, `
		SELECT p.id, p.student_id, p.first_name, p.last_name, p.email, p.phone, p.relation, p.referral_source
		FROM booking_parents p
		JOIN booking_students s ON p.student_id = s.id
		WHERE s.booking_id = $1
		ORDER BY s.id, p.id
		LIMIT 1
	`, bookingID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// PaymentHistory returns every payment attempt on the booking, newest first.
func (s *Service) PaymentHistory(ctx context.Context, bookingID int) ([]payment.Attempt, error) {
	if _, err := s.repo.GetByID(ctx, bookingID); err != nil {
		return nil, err
	}
	return s.payments.HistoryByBooking(ctx, bookingID)
}

// Get loads a single booking by id.
func (s *Service) Get(ctx context.Context, id int) (*Booking, error) {
	return s.repo.GetByID(ctx, id)
}

// FirstParent returns the first parent attached to the booking, for
// notification addressing.
func (s *Service) FirstParent(ctx context.Context, bookingID int) (*ParentMeta, error) {
	return s.repo.FirstParentByBooking(ctx, bookingID)
}

// ClassName resolves the schedule's class name for notifications.
func (s *Service) ClassName(ctx context.Context, classScheduleID int) string {
	schedule, err := s.classes.GetByID(ctx, classScheduleID)
	if err != nil {
		return ""
	}
	return schedule.ClassName
}

// List returns the flattened, filtered bookings with summary statistics.
func (s *Service) List(ctx context.Context, filter ListFilter) (*ListResult, error) {
	details, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &ListResult{
		Bookings: details,
		Stats:    ComputeStats(details),
	}, nil
}

// DueCancellations lists scheduled cancellations that have come due. The
// caller decides when to act on them.
func (s *Service) DueCancellations(ctx context.Context, asOf time.Time) ([]Booking, error) {
	return s.repo.DueCancellations(ctx, asOf)
}

// RunDueCancellations flips every due request_to_cancel booking to cancelled.
// Intended to be invoked by an operator or external scheduler.
func (s *Service) RunDueCancellations(ctx context.Context, asOf time.Time) (int, error) {
	due, err := s.repo.DueCancellations(ctx, asOf)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, b := range due {
		err := s.withTx(ctx, func(tx *sqlx.Tx) error {
			return s.repo.UpdateStatus(ctx, tx, b.ID, StatusCancelled)
		})
		if err != nil {
			logger.Errorf("Failed to cancel due booking %d: %v", b.ID, err)
			continue
		}
		metrics.RecordTransition("cancelled")
		processed++
	}

	return processed, nil
}

// UpdateStudents edits student rows on an existing booking by id.
func (s *Service) UpdateStudents(ctx context.Context, bookingID int, students []StudentInput) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		b, err := s.repo.GetByIDTx(ctx, tx, bookingID)
		if err != nil {
			return err
		}

		for i, in := range students {
			if in.ID == 0 {
				return &ValidationError{Field: fmt.Sprintf("students[%d].id", i)}
			}

			existing := &StudentMeta{
				ID:          in.ID,
				BookingID:   b.ID,
				FirstName:   in.FirstName,
				LastName:    in.LastName,
				Age:         in.Age,
				Gender:      in.Gender,
				MedicalInfo: in.MedicalInfo,
			}
			if in.DateOfBirth != "" {
				dob, err := parseDate(in.DateOfBirth, "date_of_birth")
				if err != nil {
					return err
				}
				existing.DateOfBirth = *dob
			}

			if err := s.repo.UpdateStudent(ctx, tx, existing); err != nil {
				return err
			}
		}

		return nil
	})
}

// validateCreate enforces the required fields for every student, parent and
// the emergency contact, reporting the first one missing.
func validateCreate(req CreateRequest) error {
	if len(req.Students) == 0 {
		return &ValidationError{Field: "students"}
	}
	if len(req.Parents) == 0 {
		return &ValidationError{Field: "parents"}
	}

	for i, s := range req.Students {
		switch {
		case s.FirstName == "":
			return &ValidationError{Field: fmt.Sprintf("students[%d].first_name", i)}
		case s.LastName == "":
			return &ValidationError{Field: fmt.Sprintf("students[%d].last_name", i)}
		case s.DateOfBirth == "":
			return &ValidationError{Field: fmt.Sprintf("students[%d].date_of_birth", i)}
		case s.MedicalInfo == "":
			return &ValidationError{Field: fmt.Sprintf("students[%d].medical_info", i)}
		}
	}

	for i, p := range req.Parents {
		switch {
		case p.FirstName == "":
			return &ValidationError{Field: fmt.Sprintf("parents[%d].first_name", i)}
		case p.LastName == "":
			return &ValidationError{Field: fmt.Sprintf("parents[%d].last_name", i)}
		case p.Email == "":
			return &ValidationError{Field: fmt.Sprintf("parents[%d].email", i)}
		case p.Phone == "":
			return &ValidationError{Field: fmt.Sprintf("parents[%d].phone", i)}
		}
	}

	switch {
	case req.Emergency.FirstName == "":
		return &ValidationError{Field: "emergency.first_name"}
	case req.Emergency.LastName == "":
		return &ValidationError{Field: "emergency.last_name"}
	case req.Emergency.Phone == "":
		return &ValidationError{Field: "emergency.phone"}
	}

	return nil
}

func parseDate(value, field string) (*time.Time, error) {
	if value == "" {
		return nil, &ValidationError{Field: field}
	}

	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, &ValidationError{Field: field}
	}

	return &t, nil
}
