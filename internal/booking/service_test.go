package booking

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rohitwebstep/synco-sub000/internal/account"
	"github.com/rohitwebstep/synco-sub000/internal/class"
	"github.com/rohitwebstep/synco-sub000/internal/payment"
	"github.com/rohitwebstep/synco-sub000/internal/plan"
	"github.com/rohitwebstep/synco-sub000/internal/venue"
)

// ---- mocks ----

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) InsertBooking(ctx context.Context, tx *sqlx.Tx, b *Booking) (*Booking, error) {
	args := m.Called(ctx, tx, b)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Booking), args.Error(1)
}

func (m *mockRepo) InsertStudent(ctx context.Context, tx *sqlx.Tx, s *StudentMeta) (*StudentMeta, error) {
	args := m.Called(ctx, tx, s)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*StudentMeta), args.Error(1)
}

func (m *mockRepo) InsertParent(ctx context.Context, tx *sqlx.Tx, p *ParentMeta) (*ParentMeta, error) {
	args := m.Called(ctx, tx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ParentMeta), args.Error(1)
}

func (m *mockRepo) InsertEmergencyContact(ctx context.Context, tx *sqlx.Tx, e *EmergencyContact) (*EmergencyContact, error) {
	args := m.Called(ctx, tx, e)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*EmergencyContact), args.Error(1)
}

func (m *mockRepo) GetByID(ctx context.Context, id int) (*Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Booking), args.Error(1)
}

func (m *mockRepo) GetByIDTx(ctx context.Context, tx *sqlx.Tx, id int) (*Booking, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Booking), args.Error(1)
}

func (m *mockRepo) StudentsByBooking(ctx context.Context, bookingID int) ([]StudentMeta, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]StudentMeta), args.Error(1)
}

func (m *mockRepo) FirstParentByBooking(ctx context.Context, bookingID int) (*ParentMeta, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ParentMeta), args.Error(1)
}

func (m *mockRepo) ParentEmailExists(ctx context.Context, q sqlx.QueryerContext, email string) (bool, error) {
	args := m.Called(ctx, q, email)
	return args.Bool(0), args.Error(1)
}

func (m *mockRepo) UpdateStatus(ctx context.Context, tx *sqlx.Tx, id int, status Status) error {
	args := m.Called(ctx, tx, id, status)
	return args.Error(0)
}

func (m *mockRepo) UpdateStatusAndType(ctx context.Context, tx *sqlx.Tx, id int, status Status, bookingType BookingType) error {
	args := m.Called(ctx, tx, id, status, bookingType)
	return args.Error(0)
}

func (m *mockRepo) UpdateAttendance(ctx context.Context, tx *sqlx.Tx, id int, status Status, reason string) error {
	args := m.Called(ctx, tx, id, status, reason)
	return args.Error(0)
}

func (m *mockRepo) UpdateConversion(ctx context.Context, tx *sqlx.Tx, id, planID int, startDate time.Time) error {
	args := m.Called(ctx, tx, id, planID, startDate)
	return args.Error(0)
}

func (m *mockRepo) UpdateTransfer(ctx context.Context, tx *sqlx.Tx, id, classScheduleID, venueID int) error {
	args := m.Called(ctx, tx, id, classScheduleID, venueID)
	return args.Error(0)
}

func (m *mockRepo) FindStudentByName(ctx context.Context, tx *sqlx.Tx, bookingID int, firstName, lastName string) (*StudentMeta, error) {
	args := m.Called(ctx, tx, bookingID, firstName, lastName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*StudentMeta), args.Error(1)
}

func (m *mockRepo) UpdateStudent(ctx context.Context, tx *sqlx.Tx, s *StudentMeta) error {
	args := m.Called(ctx, tx, s)
	return args.Error(0)
}

func (m *mockRepo) FindParentByName(ctx context.Context, tx *sqlx.Tx, studentID int, firstName, lastName string) (*ParentMeta, error) {
	args := m.Called(ctx, tx, studentID, firstName, lastName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ParentMeta), args.Error(1)
}

func (m *mockRepo) UpdateParent(ctx context.Context, tx *sqlx.Tx, p *ParentMeta) error {
	args := m.Called(ctx, tx, p)
	return args.Error(0)
}

func (m *mockRepo) InsertEvent(ctx context.Context, tx *sqlx.Tx, e *LifecycleEvent) (*LifecycleEvent, error) {
	args := m.Called(ctx, tx, e)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*LifecycleEvent), args.Error(1)
}

func (m *mockRepo) ActiveFreeze(ctx context.Context, bookingID int, asOf time.Time) (*Freeze, error) {
	args := m.Called(ctx, bookingID, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Freeze), args.Error(1)
}

func (m *mockRepo) InsertFreeze(ctx context.Context, tx *sqlx.Tx, f *Freeze) (*Freeze, error) {
	args := m.Called(ctx, tx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Freeze), args.Error(1)
}

func (m *mockRepo) DeleteFreeze(ctx context.Context, tx *sqlx.Tx, id int) error {
	args := m.Called(ctx, tx, id)
	return args.Error(0)
}

func (m *mockRepo) List(ctx context.Context, filter ListFilter) ([]Detail, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Detail), args.Error(1)
}

func (m *mockRepo) DueCancellations(ctx context.Context, asOf time.Time) ([]Booking, error) {
	args := m.Called(ctx, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Booking), args.Error(1)
}

type mockClassStore struct {
	mock.Mock
}

func (m *mockClassStore) GetByID(ctx context.Context, id int) (*class.Schedule, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*class.Schedule), args.Error(1)
}

func (m *mockClassStore) GetByIDTx(ctx context.Context, tx *sqlx.Tx, id int) (*class.Schedule, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*class.Schedule), args.Error(1)
}

func (m *mockClassStore) DecrementCapacity(ctx context.Context, tx *sqlx.Tx, id, n int) error {
	args := m.Called(ctx, tx, id, n)
	return args.Error(0)
}

type mockVenueStore struct {
	mock.Mock
}

func (m *mockVenueStore) GetByID(ctx context.Context, id int) (*venue.Venue, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*venue.Venue), args.Error(1)
}

type mockPlanStore struct {
	mock.Mock
}

func (m *mockPlanStore) GetByIDTx(ctx context.Context, tx *sqlx.Tx, id int) (*plan.Plan, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*plan.Plan), args.Error(1)
}

type mockAccountStore struct {
	mock.Mock
}

func (m *mockAccountStore) EmailExists(ctx context.Context, q sqlx.QueryerContext, email string) (bool, error) {
	args := m.Called(ctx, q, email)
	return args.Bool(0), args.Error(1)
}

func (m *mockAccountStore) EnsureParentAccount(ctx context.Context, tx *sqlx.Tx, firstName, lastName, email, phone string) (*account.Account, error) {
	args := m.Called(ctx, tx, firstName, lastName, email, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

type mockPaymentStore struct {
	mock.Mock
}

func (m *mockPaymentStore) InsertAttempt(ctx context.Context, tx *sqlx.Tx, a *payment.Attempt) (*payment.Attempt, error) {
	args := m.Called(ctx, tx, a)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Attempt), args.Error(1)
}

func (m *mockPaymentStore) LatestByBooking(ctx context.Context, bookingID int) (*payment.Attempt, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Attempt), args.Error(1)
}

func (m *mockPaymentStore) HistoryByBooking(ctx context.Context, bookingID int) ([]payment.Attempt, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]payment.Attempt), args.Error(1)
}

func (m *mockPaymentStore) UpdateAttempt(ctx context.Context, tx *sqlx.Tx, id int, status payment.Status, gatewayStatus string, gatewayResponse []byte) error {
	args := m.Called(ctx, tx, id, status, gatewayStatus, gatewayResponse)
	return args.Error(0)
}

type mockGateway struct {
	mock.Mock
	method payment.Method
}

func (m *mockGateway) Charge(ctx context.Context, req payment.ChargeRequest) payment.Result {
	args := m.Called(ctx, req)
	return args.Get(0).(payment.Result)
}

func (m *mockGateway) Method() payment.Method {
	return m.method
}

// ---- fixtures ----

type serviceFixture struct {
	svc      *Service
	dbMock   sqlmock.Sqlmock
	repo     *mockRepo
	classes  *mockClassStore
	venues   *mockVenueStore
	plans    *mockPlanStore
	accounts *mockAccountStore
	payments *mockPaymentStore
	rrn      *mockGateway
	card     *mockGateway
}

func newServiceFixture(t *testing.T) *serviceFixture {
	rawDB, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { rawDB.Close() })

	f := &serviceFixture{
		dbMock:   dbMock,
		repo:     &mockRepo{},
		classes:  &mockClassStore{},
		venues:   &mockVenueStore{},
		plans:    &mockPlanStore{},
		accounts: &mockAccountStore{},
		payments: &mockPaymentStore{},
		rrn:      &mockGateway{method: payment.MethodRRN},
		card:     &mockGateway{method: payment.MethodCard},
	}
	f.svc = NewService(
		sqlx.NewDb(rawDB, "sqlmock"),
		f.repo, f.classes, f.venues, f.plans, f.accounts, f.payments,
		f.rrn, f.card,
	)
	return f
}

func validCreateRequest() CreateRequest {
	return CreateRequest{
		ClassScheduleID: 10,
		TrialDate:       "2026-09-12",
		Students: []StudentInput{
			{FirstName: "Emma", LastName: "Jones", DateOfBirth: "2019-03-04", Age: 7, Gender: "female", MedicalInfo: "none"},
		},
		Parents: []ParentInput{
			{FirstName: "Sarah", LastName: "Jones", Email: "sarah@example.com", Phone: "07700900000", Relation: "mother"},
		},
		Emergency: EmergencyInput{FirstName: "Tom", LastName: "Jones", Phone: "07700900001", Relation: "father"},
	}
}

func testSchedule(capacity int) *class.Schedule {
	return &class.Schedule{
		ID:        10,
		VenueID:   3,
		ClassName: "Saturday 9am",
		Capacity:  capacity,
	}
}

// ---- create flows ----

func TestCreateFreeTrial_Success(t *testing.T) {
	f := newServiceFixture(t)

	f.dbMock.ExpectBegin()
	f.dbMock.ExpectCommit()

	f.classes.On("GetByIDTx", mock.Anything, mock.Anything, 10).Return(testSchedule(8), nil)
	f.repo.On("ParentEmailExists", mock.Anything, mock.Anything, "sarah@example.com").Return(false, nil)
	f.accounts.On("EmailExists", mock.Anything, mock.Anything, "sarah@example.com").Return(false, nil)
	f.repo.On("InsertBooking", mock.Anything, mock.Anything, mock.MatchedBy(func(b *Booking) bool {
		return b.BookingType == TypeFree && b.Status == StatusPending &&
			b.VenueID == 3 && b.TotalStudents == 1 && len(b.Reference) == 12
	})).Return(&Booking{ID: 1, Reference: "ABC123DEF456", BookingType: TypeFree, Status: StatusPending, VenueID: 3, ClassScheduleID: 10, TotalStudents: 1, TrialDate: timePtr(time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC))}, nil)
	f.repo.On("InsertStudent", mock.Anything, mock.Anything, mock.Anything).
		Return(&StudentMeta{ID: 5, BookingID: 1, FirstName: "Emma", LastName: "Jones"}, nil)
	f.repo.On("InsertParent", mock.Anything, mock.Anything, mock.Anything).
		Return(&ParentMeta{ID: 7, StudentID: 5}, nil)
	f.repo.On("InsertEmergencyContact", mock.Anything, mock.Anything, mock.Anything).
		Return(&EmergencyContact{ID: 9, StudentID: 5}, nil)
	f.classes.On("DecrementCapacity", mock.Anything, mock.Anything, 10, 1).Return(nil)
	f.venues.On("GetByID", mock.Anything, 3).Return(&venue.Venue{ID: 3, Name: "Acton Sports Hall"}, nil)

	created, err := f.svc.CreateFreeTrial(context.Background(), validCreateRequest(), 42)

	require.NoError(t, err)
	assert.Equal(t, "Emma", created.StudentFirstName)
	assert.Equal(t, "sarah@example.com", created.ParentEmail)
	assert.Equal(t, "Saturday 9am", created.ClassName)
	assert.Equal(t, "Acton Sports Hall", created.VenueName)
	assert.NoError(t, f.dbMock.ExpectationsWereMet())
	f.repo.AssertExpectations(t)
	f.classes.AssertExpectations(t)
}

func TestCreateFreeTrial_CapacityExceeded(t *testing.T) {
	f := newServiceFixture(t)

	f.dbMock.ExpectBegin()
	f.dbMock.ExpectRollback()

	f.classes.On("GetByIDTx", mock.Anything, mock.Anything, 10).Return(testSchedule(2), nil)

	req := validCreateRequest()
	req.Students = append(req.Students,
		StudentInput{FirstName: "Liam", LastName: "Jones", DateOfBirth: "2020-01-01", MedicalInfo: "none"},
		StudentInput{FirstName: "Noah", LastName: "Jones", DateOfBirth: "2021-01-01", MedicalInfo: "none"},
	)

	_, err := f.svc.CreateFreeTrial(context.Background(), req, 42)

	var capErr *CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, 2, capErr.Remaining)
	assert.Equal(t, "Only 2 slot(s) left for this class.", err.Error())
	f.repo.AssertNotCalled(t, "InsertBooking", mock.Anything, mock.Anything, mock.Anything)
	assert.NoError(t, f.dbMock.ExpectationsWereMet())
}

func TestCreateFreeTrial_DecrementRace(t *testing.T) {
	f := newServiceFixture(t)

	f.dbMock.ExpectBegin()
	f.dbMock.ExpectRollback()

	f.classes.On("GetByIDTx", mock.Anything, mock.Anything, 10).Return(testSchedule(1), nil)
	f.repo.On("ParentEmailExists", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
	f.accounts.On("EmailExists", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
	f.repo.On("InsertBooking", mock.Anything, mock.Anything, mock.Anything).
		Return(&Booking{ID: 1, VenueID: 3, ClassScheduleID: 10, TotalStudents: 1}, nil)
	f.repo.On("InsertStudent", mock.Anything, mock.Anything, mock.Anything).
		Return(&StudentMeta{ID: 5, BookingID: 1}, nil)
	f.repo.On("InsertParent", mock.Anything, mock.Anything, mock.Anything).
		Return(&ParentMeta{ID: 7}, nil)
	f.repo.On("InsertEmergencyContact", mock.Anything, mock.Anything, mock.Anything).
		Return(&EmergencyContact{ID: 9}, nil)
	// Another booking took the last place between the read and the decrement.
	f.classes.On("DecrementCapacity", mock.Anything, mock.Anything, 10, 1).
		Return(class.ErrCapacityExhausted)

	_, err := f.svc.CreateFreeTrial(context.Background(), validCreateRequest(), 42)

	var capErr *CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.NoError(t, f.dbMock.ExpectationsWereMet())
}

func TestCreateFreeTrial_DuplicateEmail(t *testing.T) {
	f := newServiceFixture(t)

	f.dbMock.ExpectBegin()
	f.dbMock.ExpectRollback()

	f.classes.On("GetByIDTx", mock.Anything, mock.Anything, 10).Return(testSchedule(5), nil)
	f.repo.On("ParentEmailExists", mock.Anything, mock.Anything, "sarah@example.com").Return(true, nil)

	_, err := f.svc.CreateFreeTrial(context.Background(), validCreateRequest(), 42)

	assert.ErrorIs(t, err, ErrDuplicateEmail)
	f.repo.AssertNotCalled(t, "InsertBooking", mock.Anything, mock.Anything, mock.Anything)
	assert.NoError(t, f.dbMock.ExpectationsWereMet())
}

func TestCreateFreeTrial_ValidationFirstMissingField(t *testing.T) {
	f := newServiceFixture(t)

	req := validCreateRequest()
	req.Students[0].MedicalInfo = ""

	_, err := f.svc.CreateFreeTrial(context.Background(), req, 42)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "students[0].medical_info is required", err.Error())
}

func TestCreateFreeTrial_ReferenceCollisionRetries(t *testing.T) {
	f := newServiceFixture(t)

	f.dbMock.ExpectBegin()
	f.dbMock.ExpectCommit()

	f.classes.On("GetByIDTx", mock.Anything, mock.Anything, 10).Return(testSchedule(5), nil)
	f.repo.On("ParentEmailExists", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
	f.accounts.On("EmailExists", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
	f.repo.On("InsertBooking", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New(`pq: duplicate key value violates unique constraint "bookings_reference_key"`)).Once()
	f.repo.On("InsertBooking", mock.Anything, mock.Anything, mock.Anything).
		Return(&Booking{ID: 2, VenueID: 3, ClassScheduleID: 10, TotalStudents: 1}, nil).Once()
	f.repo.On("InsertStudent", mock.Anything, mock.Anything, mock.Anything).
		Return(&StudentMeta{ID: 5, BookingID: 2}, nil)
	f.repo.On("InsertParent", mock.Anything, mock.Anything, mock.Anything).
		Return(&ParentMeta{ID: 7}, nil)
	f.repo.On("InsertEmergencyContact", mock.Anything, mock.Anything, mock.Anything).
		Return(&EmergencyContact{ID: 9}, nil)
	f.classes.On("DecrementCapacity", mock.Anything, mock.Anything, 10, 1).Return(nil)
	f.venues.On("GetByID", mock.Anything, 3).Return(&venue.Venue{ID: 3, Name: "Acton"}, nil)

	_, err := f.svc.CreateFreeTrial(context.Background(), validCreateRequest(), 42)

	require.NoError(t, err)
	f.repo.AssertNumberOfCalls(t, "InsertBooking", 2)
}

func TestCreateFreeTrial_AnonymousNeedsOpenSource(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.CreateFreeTrial(context.Background(), validCreateRequest(), 0)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "source", valErr.Field)
	f.accounts.AssertNotCalled(t, "EnsureParentAccount",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.repo.AssertNotCalled(t, "InsertBooking", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateFreeTrial_OpenFlowProvisionsParent(t *testing.T) {
	f := newServiceFixture(t)

	f.dbMock.ExpectBegin()
	f.dbMock.ExpectCommit()

	f.classes.On("GetByIDTx", mock.Anything, mock.Anything, 10).Return(testSchedule(8), nil)
	f.accounts.On("EnsureParentAccount", mock.Anything, mock.Anything, "Sarah", "Jones", "sarah@example.com", "07700900000").
		Return(&account.Account{ID: 77, RoleID: account.RoleParent}, nil)
	f.repo.On("ParentEmailExists", mock.Anything, mock.Anything, "sarah@example.com").Return(false, nil)
	f.repo.On("InsertBooking", mock.Anything, mock.Anything, mock.MatchedBy(func(b *Booking) bool {
		return b.BookedBy == 77
	})).Return(&Booking{ID: 1, VenueID: 3, ClassScheduleID: 10, TotalStudents: 1, BookedBy: 77}, nil)
	f.repo.On("InsertStudent", mock.Anything, mock.Anything, mock.Anything).
		Return(&StudentMeta{ID: 5, BookingID: 1, FirstName: "Emma"}, nil)
	f.repo.On("InsertParent", mock.Anything, mock.Anything, mock.Anything).
		Return(&ParentMeta{ID: 7, StudentID: 5}, nil)
	f.repo.On("InsertEmergencyContact", mock.Anything, mock.Anything, mock.Anything).
		Return(&EmergencyContact{ID: 9, StudentID: 5}, nil)
	f.classes.On("DecrementCapacity", mock.Anything, mock.Anything, 10, 1).Return(nil)
	f.venues.On("GetByID", mock.Anything, 3).Return(&venue.Venue{ID: 3, Name: "Acton"}, nil)

	req := validCreateRequest()
	req.Source = SourceOpen

	created, err := f.svc.CreateFreeTrial(context.Background(), req, 0)

	require.NoError(t, err)
	assert.Equal(t, 77, created.Booking.BookedBy)
	// The first parent's existing login account is provisioned in place,
	// never rejected as a duplicate.
	f.accounts.AssertNotCalled(t, "EmailExists", mock.Anything, mock.Anything, mock.Anything)
	assert.NoError(t, f.dbMock.ExpectationsWereMet())
	f.accounts.AssertExpectations(t)
}

func TestCreateWaitingList_SeatsStillAvailable(t *testing.T) {
	f := newServiceFixture(t)

	f.dbMock.ExpectBegin()
	f.dbMock.ExpectRollback()

	f.classes.On("GetByIDTx", mock.Anything, mock.Anything, 10).Return(testSchedule(1), nil)

	req := validCreateRequest()
	req.TrialDate = ""
	_, err := f.svc.CreateWaitingList(context.Background(), req, 42)

	assert.ErrorIs(t, err, ErrSeatsAvailable)
	assert.NoError(t, f.dbMock.ExpectationsWereMet())
}

func TestCreateWaitingList_FullClass(t *testing.T) {
	f := newServiceFixture(t)

	f.dbMock.ExpectBegin()
	f.dbMock.ExpectCommit()

	f.classes.On("GetByIDTx", mock.Anything, mock.Anything, 10).Return(testSchedule(0), nil)
	f.repo.On("ParentEmailExists", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
	f.accounts.On("EmailExists", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
	f.repo.On("InsertBooking", mock.Anything, mock.Anything, mock.MatchedBy(func(b *Booking) bool {
		return b.BookingType == TypeWaitingList && b.Status == StatusWaitingList
	})).Return(&Booking{ID: 3, BookingType: TypeWaitingList, Status: StatusWaitingList, VenueID: 3, ClassScheduleID: 10, TotalStudents: 1}, nil)
	f.repo.On("InsertStudent", mock.Anything, mock.Anything, mock.Anything).
		Return(&StudentMeta{ID: 5, BookingID: 3, FirstName: "Emma"}, nil)
	f.repo.On("InsertParent", mock.Anything, mock.Anything, mock.Anything).
		Return(&ParentMeta{ID: 7}, nil)
	f.repo.On("InsertEmergencyContact", mock.Anything, mock.Anything, mock.Anything).
		Return(&EmergencyContact{ID: 9}, nil)
	f.venues.On("GetByID", mock.Anything, 3).Return(&venue.Venue{ID: 3, Name: "Acton"}, nil)

	req := validCreateRequest()
	req.TrialDate = ""
	created, err := f.svc.CreateWaitingList(context.Background(), req, 42)

	require.NoError(t, err)
	assert.Equal(t, TypeWaitingList, created.Booking.BookingType)
	// No capacity is taken for waiting-list bookings.
	f.classes.AssertNotCalled(t, "DecrementCapacity", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.NoError(t, f.dbMock.ExpectationsWereMet())
}

func TestCreateMembership_FailedPaymentRollsBack(t *testing.T) {
	f := newServiceFixture(t)

	f.dbMock.ExpectBegin()
	f.dbMock.ExpectRollback()

	f.classes.On("GetByIDTx", mock.Anything, mock.Anything, 10).Return(testSchedule(5), nil)
	f.repo.On("ParentEmailExists", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
	f.accounts.On("EmailExists", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
	f.repo.On("InsertBooking", mock.Anything, mock.Anything, mock.Anything).
		Return(&Booking{ID: 4, Reference: "REF123456789", VenueID: 3, ClassScheduleID: 10, TotalStudents: 1}, nil)
	f.repo.On("InsertStudent", mock.Anything, mock.Anything, mock.Anything).
		Return(&StudentMeta{ID: 5, BookingID: 4}, nil)
	f.repo.On("InsertParent", mock.Anything, mock.Anything, mock.Anything).
		Return(&ParentMeta{ID: 7}, nil)
	f.repo.On("InsertEmergencyContact", mock.Anything, mock.Anything, mock.Anything).
		Return(&EmergencyContact{ID: 9}, nil)
	f.classes.On("DecrementCapacity", mock.Anything, mock.Anything, 10, 1).Return(nil)
	f.plans.On("GetByIDTx", mock.Anything, mock.Anything, 2).
		Return(&plan.Plan{ID: 2, Name: "Gold", PriceCents: 4500}, nil)
	f.rrn.On("Charge", mock.Anything, mock.Anything).Return(payment.Result{
		Status:        payment.StatusFailed,
		Message:       "mandate scheme not supported",
		GatewayStatus: "cancelled",
		Raw:           json.RawMessage(`{"error":{"message":"mandate scheme not supported"}}`),
	})
	f.payments.On("InsertAttempt", mock.Anything, mock.Anything, mock.Anything).
		Return(&payment.Attempt{ID: 1, PaymentStatus: payment.StatusFailed}, nil)

	req := CreateMembershipRequest{
		CreateRequest: validCreateRequest(),
		PaymentPlanID: 2,
		StartDate:     "2026-10-01",
		PaymentMethod: payment.MethodRRN,
	}
	req.TrialDate = ""

	_, err := f.svc.CreateMembership(context.Background(), req, 42)

	var payErr *PaymentError
	require.ErrorAs(t, err, &payErr)
	assert.Equal(t, "mandate scheme not supported", payErr.Message)
	assert.NoError(t, f.dbMock.ExpectationsWereMet())
}

func TestCreateMembership_PendingPaymentPersists(t *testing.T) {
	f := newServiceFixture(t)

	f.dbMock.ExpectBegin()
	f.dbMock.ExpectCommit()

	f.classes.On("GetByIDTx", mock.Anything, mock.Anything, 10).Return(testSchedule(5), nil)
	f.repo.On("ParentEmailExists", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
	f.accounts.On("EmailExists", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
	f.repo.On("InsertBooking", mock.Anything, mock.Anything, mock.Anything).
		Return(&Booking{ID: 4, Reference: "REF123456789", VenueID: 3, ClassScheduleID: 10, TotalStudents: 1, StartDate: timePtr(time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC))}, nil)
	f.repo.On("InsertStudent", mock.Anything, mock.Anything, mock.Anything).
		Return(&StudentMeta{ID: 5, BookingID: 4}, nil)
	f.repo.On("InsertParent", mock.Anything, mock.Anything, mock.Anything).
		Return(&ParentMeta{ID: 7}, nil)
	f.repo.On("InsertEmergencyContact", mock.Anything, mock.Anything, mock.Anything).
		Return(&EmergencyContact{ID: 9}, nil)
	f.classes.On("DecrementCapacity", mock.Anything, mock.Anything, 10, 1).Return(nil)
	f.plans.On("GetByIDTx", mock.Anything, mock.Anything, 2).
		Return(&plan.Plan{ID: 2, Name: "Gold", PriceCents: 4500}, nil)
	f.rrn.On("Charge", mock.Anything, mock.MatchedBy(func(req payment.ChargeRequest) bool {
		return req.AmountCents == 4500 && req.MerchantRef == "REF123456789"
	})).Return(payment.Result{Status: payment.StatusPending, GatewayStatus: "pending_submission"})
	f.payments.On("InsertAttempt", mock.Anything, mock.Anything, mock.MatchedBy(func(a *payment.Attempt) bool {
		return a.PaymentStatus == payment.StatusPending && a.AmountCents == 4500
	})).Return(&payment.Attempt{ID: 1, PaymentStatus: payment.StatusPending}, nil)
	f.venues.On("GetByID", mock.Anything, 3).Return(&venue.Venue{ID: 3, Name: "Acton"}, nil)

	req := CreateMembershipRequest{
		CreateRequest: validCreateRequest(),
		PaymentPlanID: 2,
		StartDate:     "2026-10-01",
		PaymentMethod: payment.MethodRRN,
	}
	req.TrialDate = ""

	created, err := f.svc.CreateMembership(context.Background(), req, 42)

	require.NoError(t, err)
	assert.Equal(t, "pending", created.PaymentStatus)
	assert.NoError(t, f.dbMock.ExpectationsWereMet())
}

// ---- retry ----

func TestRetryPayment_IdempotentWhenPaid(t *testing.T) {
	f := newServiceFixture(t)

	f.repo.On("GetByID", mock.Anything, 4).Return(&Booking{ID: 4, PaymentPlanID: intPtr(2), TotalStudents: 1}, nil)
	f.payments.On("LatestByBooking", mock.Anything, 4).
		Return(&payment.Attempt{ID: 1, PaymentStatus: payment.StatusPaid}, nil)

	attempt, err := f.svc.RetryPayment(context.Background(), 4, nil)

	require.NoError(t, err)
	assert.Equal(t, payment.StatusPaid, attempt.PaymentStatus)
	f.rrn.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything)
	assert.NoError(t, f.dbMock.ExpectationsWereMet())
}

func TestRetryPayment_FailedRetryIsRecorded(t *testing.T) {
	f := newServiceFixture(t)

	f.dbMock.ExpectBegin()
	f.dbMock.ExpectCommit()

	f.repo.On("GetByID", mock.Anything, 4).
		Return(&Booking{ID: 4, Reference: "REF123456789", Status: StatusActive, PaymentPlanID: intPtr(2), TotalStudents: 1}, nil)
	f.payments.On("LatestByBooking", mock.Anything, 4).
		Return(&payment.Attempt{ID: 1, PaymentStatus: payment.StatusFailed, PaymentType: payment.MethodRRN}, nil)
	f.plans.On("GetByIDTx", mock.Anything, mock.Anything, 2).
		Return(&plan.Plan{ID: 2, Name: "Gold", PriceCents: 4500}, nil)
	f.rrn.On("Charge", mock.Anything, mock.Anything).Return(payment.Result{
		Status:        payment.StatusFailed,
		Message:       "Card declined",
		GatewayStatus: "declined",
	})
	f.payments.On("UpdateAttempt", mock.Anything, mock.Anything, 1, payment.StatusFailed, "declined", mock.Anything).
		Return(nil)

	attempt, err := f.svc.RetryPayment(context.Background(), 4, nil)

	var payErr *PaymentError
	require.ErrorAs(t, err, &payErr)
	assert.Equal(t, "Card declined", payErr.Message)
	// The failed outcome is still written; the update commits.
	assert.Equal(t, payment.StatusFailed, attempt.PaymentStatus)
	assert.NoError(t, f.dbMock.ExpectationsWereMet())
}

func TestRetryPayment_CardRetryRequiresCardDetails(t *testing.T) {
	f := newServiceFixture(t)

	f.repo.On("GetByID", mock.Anything, 4).
		Return(&Booking{ID: 4, PaymentPlanID: intPtr(2), TotalStudents: 1}, nil)
	f.payments.On("LatestByBooking", mock.Anything, 4).
		Return(&payment.Attempt{ID: 1, PaymentStatus: payment.StatusFailed, PaymentType: payment.MethodCard}, nil)

	_, err := f.svc.RetryPayment(context.Background(), 4, nil)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "card", valErr.Field)
}

func TestPaymentHistory(t *testing.T) {
	f := newServiceFixture(t)

	f.repo.On("GetByID", mock.Anything, 4).Return(&Booking{ID: 4}, nil)
	f.payments.On("HistoryByBooking", mock.Anything, 4).Return([]payment.Attempt{
		{ID: 2, PaymentStatus: payment.StatusPaid},
		{ID: 1, PaymentStatus: payment.StatusFailed},
	}, nil)

	attempts, err := f.svc.PaymentHistory(context.Background(), 4)

	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, payment.StatusPaid, attempts[0].PaymentStatus)
}

func TestPaymentHistory_BookingNotFound(t *testing.T) {
	f := newServiceFixture(t)

	f.repo.On("GetByID", mock.Anything, 99).Return(nil, ErrBookingNotFound)

	_, err := f.svc.PaymentHistory(context.Background(), 99)

	assert.ErrorIs(t, err, ErrBookingNotFound)
	f.payments.AssertNotCalled(t, "HistoryByBooking", mock.Anything, mock.Anything)
}

// ---- lifecycle transitions ----

func TestFreeze_Success(t *testing.T) {
	f := newServiceFixture(t)

	f.dbMock.ExpectBegin()
	f.dbMock.ExpectCommit()

	f.repo.On("ActiveFreeze", mock.Anything, 4, mock.Anything).Return(nil, sql.ErrNoRows)
	f.repo.On("GetByIDTx", mock.Anything, mock.Anything, 4).
		Return(&Booking{ID: 4, Status: StatusActive}, nil)
	f.repo.On("InsertFreeze", mock.Anything, mock.Anything, mock.MatchedBy(func(fr *Freeze) bool {
		return fr.BookingID == 4 && fr.DurationMonths == 2 &&
			fr.ReactivateOn.Equal(time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC))
	})).Return(&Freeze{ID: 1, BookingID: 4, DurationMonths: 2, ReactivateOn: time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)}, nil)
	f.repo.On("UpdateStatus", mock.Anything, mock.Anything, 4, StatusFrozen).Return(nil)

	frozen, err := f.svc.Freeze(context.Background(), 4, FreezeRequest{
		StartDate:      "2026-09-01",
		DurationMonths: 2,
		Reason:         "holiday",
	})

	require.NoError(t, err)
	assert.Equal(t, 2, frozen.DurationMonths)
	assert.NoError(t, f.dbMock.ExpectationsWereMet())
}

func TestFreeze_AlreadyFrozen(t *testing.T) {
	f := newServiceFixture(t)

	f.repo.On("ActiveFreeze", mock.Anything, 4, mock.Anything).
		Return(&Freeze{ID: 1, BookingID: 4}, nil)

	_, err := f.svc.Freeze(context.Background(), 4, FreezeRequest{StartDate: "2026-09-01", DurationMonths: 1})

	assert.ErrorIs(t, err, ErrAlreadyFrozen)
}

func TestFreeze_RequiresActiveBooking(t *testing.T) {
	f := newServiceFixture(t)

	f.dbMock.ExpectBegin()
	f.dbMock.ExpectRollback()

	f.repo.On("ActiveFreeze", mock.Anything, 4, mock.Anything).Return(nil, sql.ErrNoRows)
	f.repo.On("GetByIDTx", mock.Anything, mock.Anything, 4).
		Return(&Booking{ID: 4, Status: StatusPending}, nil)

	_, err := f.svc.Freeze(context.Background(), 4, FreezeRequest{StartDate: "2026-09-01", DurationMonths: 1})

	assert.ErrorIs(t, err, ErrNotActive)
}

func TestReactivate_Success(t *testing.T) {
	f := newServiceFixture(t)

	f.dbMock.ExpectBegin()
	f.dbMock.ExpectCommit()

	f.repo.On("ActiveFreeze", mock.Anything, 4, mock.Anything).
		Return(&Freeze{ID: 1, BookingID: 4}, nil)
	f.repo.On("GetByIDTx", mock.Anything, mock.Anything, 4).
		Return(&Booking{ID: 4, Status: StatusFrozen}, nil)
	f.repo.On("DeleteFreeze", mock.Anything, mock.Anything, 1).Return(nil)
	f.repo.On("UpdateStatus", mock.Anything, mock.Anything, 4, StatusActive).Return(nil)

	err := f.svc.Reactivate(context.Background(), 4)

	require.NoError(t, err)
	assert.NoError(t, f.dbMock.ExpectationsWereMet())
}

func TestReactivate_NotFrozen(t *testing.T) {
	f := newServiceFixture(t)

	f.dbMock.ExpectBegin()
	f.dbMock.ExpectRollback()

	f.repo.On("ActiveFreeze", mock.Anything, 4, mock.Anything).Return(nil, sql.ErrNoRows)
	f.repo.On("GetByIDTx", mock.Anything, mock.Anything, 4).
		Return(&Booking{ID: 4, Status: StatusActive}, nil)

	err := f.svc.Reactivate(context.Background(), 4)

	assert.ErrorIs(t, err, ErrNotFrozen)
}

func TestCancel_ScheduledRequiresDate(t *testing.T) {
	f := newServiceFixture(t)

	f.dbMock.ExpectBegin()
	f.dbMock.ExpectRollback()

	f.repo.On("GetByIDTx", mock.Anything, mock.Anything, 4).
		Return(&Booking{ID: 4, Status: StatusActive}, nil)

	err := f.svc.Cancel(context.Background(), 4, CancelRequest{Type: CancelScheduled})

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "cancel_date", valErr.Field)
}

func TestCancel_Immediate(t *testing.T) {
	f := newServiceFixture(t)

	f.dbMock.ExpectBegin()
	f.dbMock.ExpectCommit()

	f.repo.On("GetByIDTx", mock.Anything, mock.Anything, 4).
		Return(&Booking{ID: 4, Status: StatusActive}, nil)
	f.repo.On("UpdateStatus", mock.Anything, mock.Anything, 4, StatusCancelled).Return(nil)
	f.repo.On("InsertEvent", mock.Anything, mock.Anything, mock.MatchedBy(func(e *LifecycleEvent) bool {
		return e.Kind == EventCancelled && e.CancellationType != nil && *e.CancellationType == CancelImmediate
	})).Return(&LifecycleEvent{ID: 1}, nil)

	err := f.svc.Cancel(context.Background(), 4, CancelRequest{Type: CancelImmediate, Reason: "moving away"})

	require.NoError(t, err)
	assert.NoError(t, f.dbMock.ExpectationsWereMet())
}

func TestRemoveFromWaitingList_WrongType(t *testing.T) {
	f := newServiceFixture(t)

	f.dbMock.ExpectBegin()
	f.dbMock.ExpectRollback()

	f.repo.On("GetByIDTx", mock.Anything, mock.Anything, 4).
		Return(&Booking{ID: 4, BookingType: TypeFree, Status: StatusPending}, nil)

	err := f.svc.RemoveFromWaitingList(context.Background(), 4, "")

	assert.ErrorIs(t, err, ErrNotWaitingList)
}

func TestRemoveFromWaitingList_Success(t *testing.T) {
	f := newServiceFixture(t)

	f.dbMock.ExpectBegin()
	f.dbMock.ExpectCommit()

	f.repo.On("GetByIDTx", mock.Anything, mock.Anything, 4).
		Return(&Booking{ID: 4, BookingType: TypeWaitingList, Status: StatusWaitingList}, nil)
	f.repo.On("UpdateStatusAndType", mock.Anything, mock.Anything, 4, StatusRemoved, TypeRemoved).Return(nil)
	f.repo.On("InsertEvent", mock.Anything, mock.Anything, mock.MatchedBy(func(e *LifecycleEvent) bool {
		return e.Kind == EventRemoved
	})).Return(&LifecycleEvent{ID: 1}, nil)

	err := f.svc.RemoveFromWaitingList(context.Background(), 4, "found another club")

	require.NoError(t, err)
	assert.NoError(t, f.dbMock.ExpectationsWereMet())
}

func TestMarkAttendance_NotAttendNeedsPending(t *testing.T) {
	f := newServiceFixture(t)

	f.dbMock.ExpectBegin()
	f.dbMock.ExpectRollback()

	f.repo.On("GetByIDTx", mock.Anything, mock.Anything, 4).
		Return(&Booking{ID: 4, Status: StatusCancelled}, nil)

	err := f.svc.MarkAttendance(context.Background(), 4, AttendanceRequest{Outcome: "attended"})

	assert.ErrorIs(t, err, ErrNotPending)
}

func TestConvert_UnmatchedStudentFails(t *testing.T) {
	f := newServiceFixture(t)

	f.dbMock.ExpectBegin()
	f.dbMock.ExpectRollback()

	f.repo.On("GetByIDTx", mock.Anything, mock.Anything, 4).
		Return(&Booking{ID: 4, BookingType: TypeWaitingList, Status: StatusWaitingList, TotalStudents: 1}, nil)
	f.plans.On("GetByIDTx", mock.Anything, mock.Anything, 2).
		Return(&plan.Plan{ID: 2, Name: "Gold", PriceCents: 4500}, nil)
	f.repo.On("FindStudentByName", mock.Anything, mock.Anything, 4, "Olivia", "Smith").
		Return(nil, sql.ErrNoRows)

	_, err := f.svc.Convert(context.Background(), 4, ConvertRequest{
		PaymentPlanID: 2,
		StartDate:     "2026-10-01",
		PaymentMethod: payment.MethodRRN,
		Students:      []StudentInput{{FirstName: "Olivia", LastName: "Smith"}},
	})

	var unmatched *UnmatchedError
	require.ErrorAs(t, err, &unmatched)
	assert.Contains(t, err.Error(), "Olivia Smith")
	f.payments.AssertNotCalled(t, "InsertAttempt", mock.Anything, mock.Anything, mock.Anything)
}

func TestTransfer_KeepsCapacityAndRecordsEvent(t *testing.T) {
	f := newServiceFixture(t)

	f.dbMock.ExpectBegin()
	f.dbMock.ExpectCommit()

	f.repo.On("GetByIDTx", mock.Anything, mock.Anything, 4).
		Return(&Booking{ID: 4, ClassScheduleID: 10, VenueID: 3}, nil)
	f.classes.On("GetByIDTx", mock.Anything, mock.Anything, 11).
		Return(&class.Schedule{ID: 11, VenueID: 6, ClassName: "Sunday 10am", Capacity: 0}, nil)
	f.repo.On("UpdateTransfer", mock.Anything, mock.Anything, 4, 11, 6).Return(nil)
	f.repo.On("InsertEvent", mock.Anything, mock.Anything, mock.MatchedBy(func(e *LifecycleEvent) bool {
		return e.Kind == EventTransferred
	})).Return(&LifecycleEvent{ID: 1}, nil)

	err := f.svc.Transfer(context.Background(), 4, TransferRequest{ClassScheduleID: 11, Reason: "schedule clash"})

	require.NoError(t, err)
	f.classes.AssertNotCalled(t, "DecrementCapacity", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.NoError(t, f.dbMock.ExpectationsWereMet())
}

// ---- stats ----

func TestComputeStats(t *testing.T) {
	price := int64(4500)
	joining := int64(1000)
	duration := 12

	details := []Detail{
		{Booking: Booking{BookingType: TypePaid, TotalStudents: 2}, PlanPriceCents: &price, PlanJoiningCents: &joining, PlanDuration: &duration},
		{Booking: Booking{BookingType: TypeFree, TotalStudents: 1}},
		{Booking: Booking{BookingType: TypePaid, TotalStudents: 1}, PlanPriceCents: &price, PlanDuration: &duration},
	}

	stats := ComputeStats(details)

	assert.Equal(t, 3, stats.TotalBookings)
	// (4500+1000)*2 + 4500*1
	assert.Equal(t, int64(15500), stats.RevenueCents)
	// 15500 cents over 24 plan months.
	assert.Equal(t, int64(645), stats.AvgMonthlyFeeCents)
	assert.Equal(t, 12.0, stats.AvgLifecycleMonths)
}

func TestComputeStats_PlanWithoutDurationOnlyCountsTowardRevenue(t *testing.T) {
	price := int64(4500)
	duration := 12

	details := []Detail{
		{Booking: Booking{BookingType: TypePaid, TotalStudents: 1}, PlanPriceCents: &price, PlanDuration: &duration},
		{Booking: Booking{BookingType: TypePaid, TotalStudents: 1}, PlanPriceCents: &price},
	}

	stats := ComputeStats(details)

	assert.Equal(t, int64(9000), stats.RevenueCents)
	// 4500 over 12 months; the duration-less plan is left out of the fee average.
	assert.Equal(t, int64(375), stats.AvgMonthlyFeeCents)
	assert.Equal(t, 6.0, stats.AvgLifecycleMonths)
}

func TestComputeStats_Empty(t *testing.T) {
	stats := ComputeStats(nil)

	assert.Equal(t, 0, stats.TotalBookings)
	assert.Equal(t, int64(0), stats.RevenueCents)
	assert.Equal(t, 0.0, stats.AvgLifecycleMonths)
}

// ---- helpers ----

func timePtr(t time.Time) *time.Time { return &t }
func intPtr(i int) *int              { return &i }
