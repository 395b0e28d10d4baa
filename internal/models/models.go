package models

import (
	"fmt"
	"time"
)

// Position is the driver's most recent known location. It is always
// overwritten whole; no history is kept.
type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinates are on the globe.
func (p Position) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

type Destination struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Note string  `json:"note,omitempty"`
}

// DisplayText renders the destination the way the driver screen shows it.
func (d Destination) DisplayText() string {
	if d.Note == "" {
		return fmt.Sprintf("%.5f, %.5f", d.Lat, d.Lng)
	}
	return fmt.Sprintf("%.5f, %.5f – %s", d.Lat, d.Lng, d.Note)
}

// Route request types. An untyped request carrying a destination is treated
// as RequestNewDestination.
const (
	RequestNewDestination = "new_destination"
	RequestRestroom       = "restroom"
	RequestStop           = "stop"
)

// RouteRequest is the passenger's latest instruction. A new write fully
// replaces the prior value; there is no queue.
type RouteRequest struct {
	Type        string       `json:"type,omitempty"`
	Destination *Destination `json:"destination,omitempty"`
}

// Trip statuses as recorded in the trip history store.
const (
	TripCreated        = "created"
	TripBroadcasting   = "broadcasting"
	TripTenMinNotified = "ten_min_notified"
	TripArrived        = "arrived"
	TripStopped        = "stopped"
)

type Trip struct {
	ID           string    `json:"id"`
	Passcode     string    `json:"passcode,omitempty"`
	Recipient    string    `json:"recipient,omitempty"` // SMS phone, optional
	PassengerURL string    `json:"passenger_url"`
	TrackURL     string    `json:"track_url"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type DriverProfile struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Passcode  string `json:"passcode" validate:"required,len=4,number"`
}

// Place is one geocoding / nearby-search result.
type Place struct {
	Lat  float64
	Lng  float64
	Name string
}

// PositionSample is the wire shape published to Kafka by the ingest path.
type PositionSample struct {
	TripID   string    `json:"trip_id"`
	Position Position  `json:"position"`
	Observed time.Time `json:"observed"`
}
