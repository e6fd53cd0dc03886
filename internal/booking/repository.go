package booking

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

const bookingColumns = `id, reference, booking_type, status, venue_id, class_schedule_id,
	payment_plan_id, booked_by, total_students, trial_date, start_date, interest,
	additional_note, non_attend_reason, created_at, updated_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) InsertBooking(ctx context.Context, tx *sqlx.Tx, b *Booking) (*Booking, error) {
	query := `
		INSERT INTO bookings
			(reference, booking_type, status, venue_id, class_schedule_id, payment_plan_id,
			 booked_by, total_students, trial_date, start_date, interest, additional_note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + bookingColumns

	var inserted Booking
	err := tx.GetContext(ctx, &inserted, query,
		b.Reference, b.BookingType, b.Status, b.VenueID, b.ClassScheduleID, b.PaymentPlanID,
		b.BookedBy, b.TotalStudents, b.TrialDate, b.StartDate, b.Interest, b.AdditionalNote)
	if err != nil {
		return nil, err
	}

	return &inserted, nil
}

// IsUniqueViolation reports a Postgres unique-constraint conflict, used for
// the booking reference retry loop.
func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}

func (r *repository) InsertStudent(ctx context.Context, tx *sqlx.Tx, s *StudentMeta) (*StudentMeta, error) {
	query := `
		INSERT INTO booking_students (booking_id, first_name, last_name, date_of_birth, age, gender, medical_info)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, booking_id, first_name, last_name, date_of_birth, age, gender, medical_info
	`

	var inserted StudentMeta
	err := tx.GetContext(ctx, &inserted, query,
		s.BookingID, s.FirstName, s.LastName, s.DateOfBirth, s.Age, s.Gender, s.MedicalInfo)
	if err != nil {
		return nil, err
	}

	return &inserted, nil
}

func (r *repository) InsertParent(ctx context.Context, tx *sqlx.Tx, p *ParentMeta) (*ParentMeta, error) {
	query := `
		INSERT INTO booking_parents (student_id, first_name, last_name, email, phone, relation, referral_source)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, student_id, first_name, last_name, email, phone, relation, referral_source
	`

	var inserted ParentMeta
	err := tx.GetContext(ctx, &inserted, query,
		p.StudentID, p.FirstName, p.LastName, strings.ToLower(strings.TrimSpace(p.Email)), p.Phone, p.Relation, p.ReferralSource)
	if err != nil {
		return nil, err
	}

	return &inserted, nil
}

func (r *repository) InsertEmergencyContact(ctx context.Context, tx *sqlx.Tx, e *EmergencyContact) (*EmergencyContact, error) {
	query := `
		INSERT INTO booking_emergency_contacts (student_id, first_name, last_name, phone, relation)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, student_id, first_name, last_name, phone, relation
	`

	var inserted EmergencyContact
	err := tx.GetContext(ctx, &inserted, query, e.StudentID, e.FirstName, e.LastName, e.Phone, e.Relation)
	if err != nil {
		return nil, err
	}

	return &inserted, nil
}

func (r *repository) GetByID(ctx context.Context, id int) (*Booking, error) {
	var b Booking
	err := r.db.GetContext(ctx, &b, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	return &b, nil
}

func (r *repository) GetByIDTx(ctx context.Context, tx *sqlx.Tx, id int) (*Booking, error) {
	var b Booking
	err := tx.GetContext(ctx, &b, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	return &b, nil
}

func (r *repository) StudentsByBooking(ctx context.Context, bookingID int) ([]StudentMeta, error) {
	query := `
		SELECT id, booking_id, first_name, last_name, date_of_birth, age, gender, medical_info
		FROM booking_students
		WHERE booking_id = $1
		ORDER BY id
	`

	var students []StudentMeta
	err := r.db.SelectContext(ctx, &students, query, bookingID)
	if err != nil {
		return nil, err
	}

	return students, nil
}

func (r *repository) FirstParentByBooking(ctx context.Context, bookingID int) (*ParentMeta, error) {
	query := `
		SELECT p.id, p.student_id, p.first_name, p.last_name, p.email, p.phone, p.relation, p.referral_source
		FROM booking_parents p
		JOIN booking_students s ON p.student_id = s.id
		WHERE s.booking_id = $1
		ORDER BY s.id, p.id
		LIMIT 1
	`

	var p ParentMeta
	err := r.db.GetContext(ctx, &p, query, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}

	return &p, nil
}

func (r *repository) ParentEmailExists(ctx context.Context, q sqlx.QueryerContext, email string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, q, &exists,
		`SELECT EXISTS(SELECT 1 FROM booking_parents WHERE email = $1)`,
		strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return false, err
	}

	return exists, nil
}

func (r *repository) UpdateStatus(ctx context.Context, tx *sqlx.Tx, id int, status Status) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return err
	}

	return requireRow(result)
}

func (r *repository) UpdateStatusAndType(ctx context.Context, tx *sqlx.Tx, id int, status Status, bookingType BookingType) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = $1, booking_type = $2, updated_at = NOW() WHERE id = $3`,
		status, bookingType, id)
	if err != nil {
		return err
	}

	return requireRow(result)
}

func (r *repository) UpdateAttendance(ctx context.Context, tx *sqlx.Tx, id int, status Status, reason string) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = $1, non_attend_reason = $2, updated_at = NOW() WHERE id = $3`,
		status, reason, id)
	if err != nil {
		return err
	}

	return requireRow(result)
}

// UpdateConversion flips a waiting-list or trial booking into a paid
// membership: the trial date is cleared, the plan attached and the start date
// set.
func (r *repository) UpdateConversion(ctx context.Context, tx *sqlx.Tx, id, planID int, startDate time.Time) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE bookings
		SET booking_type = $1, status = $2, payment_plan_id = $3, start_date = $4,
		    trial_date = NULL, updated_at = NOW()
		WHERE id = $5
	`, TypePaid, StatusActive, planID, startDate, id)
	if err != nil {
		return err
	}

	return requireRow(result)
}

func (r *repository) UpdateTransfer(ctx context.Context, tx *sqlx.Tx, id, classScheduleID, venueID int) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE bookings
		SET class_schedule_id = $1, venue_id = $2, updated_at = NOW()
		WHERE id = $3
	`, classScheduleID, venueID, id)
	if err != nil {
		return err
	}

	return requireRow(result)
}

func (r *repository) FindStudentByName(ctx context.Context, tx *sqlx.Tx, bookingID int, firstName, lastName string) (*StudentMeta, error) {
	query := `
		SELECT id, booking_id, first_name, last_name, date_of_birth, age, gender, medical_info
		FROM booking_students
		WHERE booking_id = $1 AND LOWER(first_name) = LOWER($2) AND LOWER(last_name) = LOWER($3)
		LIMIT 1
	`

	var s StudentMeta
	err := tx.GetContext(ctx, &s, query, bookingID, firstName, lastName)
	if err != nil {
		return nil, err
	}

	return &s, nil
}

func (r *repository) UpdateStudent(ctx context.Context, tx *sqlx.Tx, s *StudentMeta) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE booking_students
		SET first_name = $1, last_name = $2, date_of_birth = $3, age = $4, gender = $5, medical_info = $6
		WHERE id = $7
	`, s.FirstName, s.LastName, s.DateOfBirth, s.Age, s.Gender, s.MedicalInfo, s.ID)
	if err != nil {
		return err
	}

	return requireRow(result)
}

func (r *repository) FindParentByName(ctx context.Context, tx *sqlx.Tx, studentID int, firstName, lastName string) (*ParentMeta, error) {
	query := `
		SELECT id, student_id, first_name, last_name, email, phone, relation, referral_source
		FROM booking_parents
		WHERE student_id = $1 AND LOWER(first_name) = LOWER($2) AND LOWER(last_name) = LOWER($3)
		LIMIT 1
	`

	var p ParentMeta
	err := tx.GetContext(ctx, &p, query, studentID, firstName, lastName)
	if err != nil {
		return nil, err
	}

	return &p, nil
}

func (r *repository) UpdateParent(ctx context.Context, tx *sqlx.Tx, p *ParentMeta) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE booking_parents
		SET first_name = $1, last_name = $2, email = $3, phone = $4, relation = $5, referral_source = $6
		WHERE id = $7
	`, p.FirstName, p.LastName, strings.ToLower(strings.TrimSpace(p.Email)), p.Phone, p.Relation, p.ReferralSource, p.ID)
	if err != nil {
		return err
	}

	return requireRow(result)
}

func (r *repository) InsertEvent(ctx context.Context, tx *sqlx.Tx, e *LifecycleEvent) (*LifecycleEvent, error) {
	query := `
		INSERT INTO booking_events (booking_id, kind, cancellation_type, cancel_date, reason, note)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, booking_id, kind, cancellation_type, cancel_date, reason, note, created_at
	`

	var inserted LifecycleEvent
	err := tx.GetContext(ctx, &inserted, query,
		e.BookingID, e.Kind, e.CancellationType, e.CancelDate, e.Reason, e.Note)
	if err != nil {
		return nil, err
	}

	return &inserted, nil
}

// ActiveFreeze returns the freeze whose reactivation date is still in the
// future, if any.
func (r *repository) ActiveFreeze(ctx context.Context, bookingID int, asOf time.Time) (*Freeze, error) {
	query := `
		SELECT id, booking_id, start_date, duration_months, reactivate_on, reason, created_at
		FROM booking_freezes
		WHERE booking_id = $1 AND reactivate_on > $2
		ORDER BY created_at DESC
		LIMIT 1
	`

	var f Freeze
	err := r.db.GetContext(ctx, &f, query, bookingID, asOf)
	if err != nil {
		return nil, err
	}

	return &f, nil
}

func (r *repository) InsertFreeze(ctx context.Context, tx *sqlx.Tx, f *Freeze) (*Freeze, error) {
	query := `
		INSERT INTO booking_freezes (booking_id, start_date, duration_months, reactivate_on, reason)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, booking_id, start_date, duration_months, reactivate_on, reason, created_at
	`

	var inserted Freeze
	err := tx.GetContext(ctx, &inserted, query,
		f.BookingID, f.StartDate, f.DurationMonths, f.ReactivateOn, f.Reason)
	if err != nil {
		return nil, err
	}

	return &inserted, nil
}

func (r *repository) DeleteFreeze(ctx context.Context, tx *sqlx.Tx, id int) error {
	result, err := tx.ExecContext(ctx, `DELETE FROM booking_freezes WHERE id = $1`, id)
	if err != nil {
		return err
	}

	return requireRow(result)
}

func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrBookingNotFound
	}
	return nil
}
