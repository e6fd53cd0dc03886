package venue

import "time"

type Venue struct {
	ID        int       `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Area      string    `db:"area" json:"area"`
	Address   string    `db:"address" json:"address"`
	Postcode  string    `db:"postcode" json:"postcode"`
	Latitude  *float64  `db:"latitude" json:"latitude,omitempty"`
	Longitude *float64  `db:"longitude" json:"longitude,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type CreateVenueRequest struct {
	Name     string   `json:"name" binding:"required"`
	Area     string   `json:"area" binding:"required"`
	Address  string   `json:"address" binding:"required"`
	Postcode string   `json:"postcode" binding:"required"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}
