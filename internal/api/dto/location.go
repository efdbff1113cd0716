package dto

import "time"

// Lat and Lng are pointers so a missing field is not read as 0.
type LocationRequest struct {
	Lat       *float64   `json:"lat"`
	Lng       *float64   `json:"lng"`
	Timestamp *time.Time `json:"timestamp"`
	IsOnline  bool       `json:"is_online"`
}
