package booking

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// List joins bookings with their class, venue, plan and first student/parent,
// applies the filter and flattens into Detail rows. All matching rows are
// loaded; the list endpoints do not paginate.
func (r *repository) List(ctx context.Context, filter ListFilter) ([]Detail, error) {
	query := `
		SELECT
			b.id, b.reference, b.booking_type, b.status, b.venue_id, b.class_schedule_id,
			b.payment_plan_id, b.booked_by, b.total_students, b.trial_date, b.start_date,
			b.interest, b.additional_note, b.non_attend_reason, b.created_at, b.updated_at,
			cs.class_name,
			v.name AS venue_name,
			pp.name AS plan_name,
			pp.price_cents AS plan_price_cents,
			pp.joining_fee_cents AS plan_joining_cents,
			pp.duration_months AS plan_duration,
			COALESCE((SELECT s.first_name FROM booking_students s WHERE s.booking_id = b.id ORDER BY s.id LIMIT 1), '') AS student_first_name,
			COALESCE((SELECT s.last_name FROM booking_students s WHERE s.booking_id = b.id ORDER BY s.id LIMIT 1), '') AS student_last_name,
			COALESCE((SELECT p.email FROM booking_parents p JOIN booking_students s ON p.student_id = s.id WHERE s.booking_id = b.id ORDER BY s.id, p.id LIMIT 1), '') AS parent_email,
			a.email AS booked_by_email
		FROM bookings b
		JOIN class_schedules cs ON b.class_schedule_id = cs.id
		JOIN venues v ON b.venue_id = v.id
		LEFT JOIN payment_plans pp ON b.payment_plan_id = pp.id
		JOIN accounts a ON b.booked_by = a.id
	`

	var conditions []string
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Status != "" {
		conditions = append(conditions, "b.status = "+arg(filter.Status))
	}
	if filter.VenueID > 0 {
		conditions = append(conditions, "b.venue_id = "+arg(filter.VenueID))
	}
	if filter.VenueName != "" {
		conditions = append(conditions, "v.name ILIKE "+arg("%"+filter.VenueName+"%"))
	}
	if filter.BookedBy > 0 {
		conditions = append(conditions, "b.booked_by = "+arg(filter.BookedBy))
	}
	if filter.StudentName != "" {
		p := arg("%" + filter.StudentName + "%")
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM booking_students s WHERE s.booking_id = b.id AND (s.first_name ILIKE %s OR s.last_name ILIKE %s))", p, p))
	}
	if filter.DateBooked != "" {
		conditions = append(conditions, "DATE(b.created_at) = "+arg(filter.DateBooked)+"::date")
	}
	if filter.FromDate != "" {
		conditions = append(conditions, "b.created_at >= "+arg(filter.FromDate)+"::date")
	}
	if filter.ToDate != "" {
		conditions = append(conditions, "b.created_at < "+arg(filter.ToDate)+"::date + INTERVAL '1 day'")
	}
	if filter.DateFrom != "" {
		conditions = append(conditions, "b.trial_date >= "+arg(filter.DateFrom)+"::date")
	}
	if filter.DateTo != "" {
		conditions = append(conditions, "b.trial_date <= "+arg(filter.DateTo)+"::date")
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY b.created_at DESC"

	var details []Detail
	err := r.db.SelectContext(ctx, &details, query, args...)
	if err != nil {
		return nil, err
	}

	return details, nil
}

// DueCancellations returns bookings whose scheduled cancellation date has
// passed. The core never triggers them itself; an operator or external
// scheduler calls RunDueCancellations.
func (r *repository) DueCancellations(ctx context.Context, asOf time.Time) ([]Booking, error) {
	query := `
		SELECT b.id, b.reference, b.booking_type, b.status, b.venue_id, b.class_schedule_id,
			b.payment_plan_id, b.booked_by, b.total_students, b.trial_date, b.start_date,
			b.interest, b.additional_note, b.non_attend_reason, b.created_at, b.updated_at
		FROM bookings b
		JOIN booking_events e ON e.booking_id = b.id
			AND e.kind = 'cancelled' AND e.cancellation_type = 'scheduled'
		WHERE b.status = $1 AND e.cancel_date <= $2
		ORDER BY e.cancel_date
	`

	var bookings []Booking
	err := r.db.SelectContext(ctx, &bookings, query, StatusRequestToCancel, asOf)
	if err != nil {
		return nil, err
	}

	return bookings, nil
}

// ComputeStats summarizes a filtered result set. Revenue counts plan price
// plus joining fee per enrolled student on paid bookings. The average monthly
// fee spreads that revenue over the plan months it covers, so joining fees
// and multi-student bookings weigh in; plans without a duration only count
// toward revenue.
func ComputeStats(details []Detail) Stats {
	stats := Stats{TotalBookings: len(details)}

	var planCount int
	var pacedRevenue int64
	var durationSum int

	for _, d := range details {
		if d.BookingType != TypePaid || d.PlanPriceCents == nil {
			continue
		}

		joining := int64(0)
		if d.PlanJoiningCents != nil {
			joining = *d.PlanJoiningCents
		}

		revenue := (*d.PlanPriceCents + joining) * int64(d.TotalStudents)
		stats.RevenueCents += revenue
		if d.PlanDuration != nil && *d.PlanDuration > 0 {
			pacedRevenue += revenue
			durationSum += *d.PlanDuration
		}
		planCount++
	}

	if durationSum > 0 {
		stats.AvgMonthlyFeeCents = pacedRevenue / int64(durationSum)
	}
	if planCount > 0 {
		stats.AvgLifecycleMonths = float64(durationSum) / float64(planCount)
	}

	return stats
}
