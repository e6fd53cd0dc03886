package class

import "time"

// Schedule is a recurring class slot at a venue with a finite capacity.
type Schedule struct {
	ID        int       `db:"id" json:"id"`
	VenueID   int       `db:"venue_id" json:"venue_id"`
	ClassName string    `db:"class_name" json:"class_name"`
	DayOfWeek string    `db:"day_of_week" json:"day_of_week"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	AgeFrom   int       `db:"age_from" json:"age_from"`
	AgeTo     int       `db:"age_to" json:"age_to"`
	Capacity  int       `db:"capacity" json:"capacity"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type CreateScheduleRequest struct {
	VenueID   int    `json:"venue_id" binding:"required"`
	ClassName string `json:"class_name" binding:"required"`
	DayOfWeek string `json:"day_of_week" binding:"required"`
	StartTime string `json:"start_time" binding:"required"`
	EndTime   string `json:"end_time" binding:"required"`
	AgeFrom   int    `json:"age_from"`
	AgeTo     int    `json:"age_to"`
	Capacity  int    `json:"capacity" binding:"required,min=1"`
}
