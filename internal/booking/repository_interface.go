package booking

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	InsertBooking(ctx context.Context, tx *sqlx.Tx, b *Booking) (*Booking, error)
	InsertStudent(ctx context.Context, tx *sqlx.Tx, s *StudentMeta) (*StudentMeta, error)
	InsertParent(ctx context.Context, tx *sqlx.Tx, p *ParentMeta) (*ParentMeta, error)
	InsertEmergencyContact(ctx context.Context, tx *sqlx.Tx, e *EmergencyContact) (*EmergencyContact, error)

	GetByID(ctx context.Context, id int) (*Booking, error)
	GetByIDTx(ctx context.Context, tx *sqlx.Tx, id int) (*Booking, error)
	StudentsByBooking(ctx context.Context, bookingID int) ([]StudentMeta, error)
	FirstParentByBooking(ctx context.Context, bookingID int) (*ParentMeta, error)
	ParentEmailExists(ctx context.Context, q sqlx.QueryerContext, email string) (bool, error)

	UpdateStatus(ctx context.Context, tx *sqlx.Tx, id int, status Status) error
	UpdateStatusAndType(ctx context.Context, tx *sqlx.Tx, id int, status Status, bookingType BookingType) error
	UpdateAttendance(ctx context.Context, tx *sqlx.Tx, id int, status Status, reason string) error
	UpdateConversion(ctx context.Context, tx *sqlx.Tx, id, planID int, startDate time.Time) error
	UpdateTransfer(ctx context.Context, tx *sqlx.Tx, id, classScheduleID, venueID int) error

	FindStudentByName(ctx context.Context, tx *sqlx.Tx, bookingID int, firstName, lastName string) (*StudentMeta, error)
	UpdateStudent(ctx context.Context, tx *sqlx.Tx, s *StudentMeta) error
	FindParentByName(ctx context.Context, tx *sqlx.Tx, studentID int, firstName, lastName string) (*ParentMeta, error)
	UpdateParent(ctx context.Context, tx *sqlx.Tx, p *ParentMeta) error

	InsertEvent(ctx context.Context, tx *sqlx.Tx, e *LifecycleEvent) (*LifecycleEvent, error)
	ActiveFreeze(ctx context.Context, bookingID int, asOf time.Time) (*Freeze, error)
	InsertFreeze(ctx context.Context, tx *sqlx.Tx, f *Freeze) (*Freeze, error)
	DeleteFreeze(ctx context.Context, tx *sqlx.Tx, id int) error

	List(ctx context.Context, filter ListFilter) ([]Detail, error)
	DueCancellations(ctx context.Context, asOf time.Time) ([]Booking, error)
}
