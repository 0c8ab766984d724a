package model

import "time"

// Trip status values.
const (
	TripUpcoming  = "Upcoming"
	TripOngoing   = "Ongoing"
	TripActive    = "Active"
	TripCompleted = "Completed"
	TripCancelled = "Cancelled"
)

// Trip represents a listing published by an organizer.  Nested sections
// (About, Host, Packages, Itinerary) are persisted as JSON columns of the
// `trips` table.  CreatedBy is the owning user and never changes.
type Trip struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	CreatedBy  string          `json:"createdBy"`
	About      TripAbout       `json:"about"`
	Host       TripHost        `json:"host"`
	PriceInINR int64           `json:"priceInInr,omitempty"`
	Packages   []Package       `json:"packages,omitempty"`
	Status     string          `json:"status"`
	Itinerary  []ItineraryItem `json:"itinerary,omitempty"`
	Inclusions []string        `json:"inclusions,omitempty"`
	Exclusions []string        `json:"exclusions,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// TripAbout describes where, when and for whom a trip runs.
type TripAbout struct {
	Location     string    `json:"location"`
	StartDate    time.Time `json:"startDate"`
	EndDate      time.Time `json:"endDate"`
	TripType     string    `json:"tripType,omitempty"`
	GroupSizeMin int       `json:"groupSizeMin,omitempty"`
	GroupSizeMax int       `json:"groupSizeMax,omitempty"`
	AgeMin       int       `json:"ageMin,omitempty"`
	AgeMax       int       `json:"ageMax,omitempty"`
}

// TripHost is the public host card shown on a listing.
type TripHost struct {
	Name         string  `json:"name"`
	Rating       float64 `json:"rating,omitempty"`
	ReviewsCount int     `json:"reviewsCount,omitempty"`
	Description  string  `json:"description,omitempty"`
}

// Package is a priced option of a trip.  PerPerson prices are multiplied by
// the group size of a booking; flat prices are charged once.
type Package struct {
	Name      string   `json:"name"`
	Price     int64    `json:"price"`
	Currency  string   `json:"currency,omitempty"`
	PerPerson bool     `json:"perPerson"`
	Features  []string `json:"features,omitempty"`
}

// ItineraryItem is one day (or leg) of a trip plan.
type ItineraryItem struct {
	Day         int    `json:"day"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// ValidTripStatus reports whether s is a known trip status.
func ValidTripStatus(s string) bool {
	switch s {
	case TripUpcoming, TripOngoing, TripActive, TripCompleted, TripCancelled:
		return true
	}
	return false
}

// Bookable reports whether new booking requests may be placed on the trip.
func (t *Trip) Bookable() bool {
	return t.Status != TripCompleted && t.Status != TripCancelled
}

// FindPackage returns the package with the given name, if any.
func (t *Trip) FindPackage(name string) (Package, bool) {
	for _, p := range t.Packages {
		if p.Name == name {
			return p, true
		}
	}
	return Package{}, false
}
