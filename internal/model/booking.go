package model

import "time"

// Booking approval status values.
const (
	BookingPending  = "Pending"
	BookingApproved = "Approved"
	BookingRejected = "Rejected"
)

// PaymentPending is the payment status a booking starts with.  Payment status
// is an opaque string otherwise.
const PaymentPending = "pending"

// Booking records a customer's or guest's request to join a trip.  CreatedBy
// is empty for guest bookings.  Approval and rejection metadata are mutually
// exclusive: an Approved booking carries ApprovedAt/ApprovedBy, a Rejected one
// carries RejectedAt/RejectedBy/RejectionReason.
type Booking struct {
	ID              string     `json:"id"`
	TripID          string     `json:"tripId"`
	CreatedBy       string     `json:"createdBy,omitempty"`
	TravelerName    string     `json:"travelerName"`
	TravelerEmail   string     `json:"travelerEmail"`
	TravelerPhone   string     `json:"travelerPhone"`
	GroupSize       int        `json:"groupSize"`
	Preferences     string     `json:"preferences,omitempty"`
	PackageName     string     `json:"packageName,omitempty"`
	TotalAmount     int64      `json:"totalAmount"`
	Status          string     `json:"status"`
	PaymentStatus   string     `json:"paymentStatus"`
	RejectionReason string     `json:"rejectionReason,omitempty"`
	ApprovedAt      *time.Time `json:"approvedAt,omitempty"`
	ApprovedBy      string     `json:"approvedBy,omitempty"`
	RejectedAt      *time.Time `json:"rejectedAt,omitempty"`
	RejectedBy      string     `json:"rejectedBy,omitempty"`
	BookingDate     time.Time  `json:"bookingDate"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// BookingView is a booking joined with the trip fields used by listing and
// search screens.
type BookingView struct {
	Booking
	TripTitle string `json:"tripTitle"`
	HostName  string `json:"hostName"`
	TripOwner string `json:"tripOwner"`
}

// BookingStats aggregates booking counts for an organizer.
type BookingStats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// ValidBookingStatus reports whether s is a known approval status.
func ValidBookingStatus(s string) bool {
	switch s {
	case BookingPending, BookingApproved, BookingRejected:
		return true
	}
	return false
}

// MarkApproved moves the booking to Approved and records who approved it.
func (b *Booking) MarkApproved(by string, at time.Time) {
	b.Status = BookingApproved
	b.ApprovedAt = &at
	b.ApprovedBy = by
	b.RejectedAt = nil
	b.RejectedBy = ""
	b.RejectionReason = ""
	b.UpdatedAt = at
}

// MarkRejected moves the booking to Rejected with the given reason.
func (b *Booking) MarkRejected(by, reason string, at time.Time) {
	b.Status = BookingRejected
	b.RejectedAt = &at
	b.RejectedBy = by
	b.RejectionReason = reason
	b.ApprovedAt = nil
	b.ApprovedBy = ""
	b.UpdatedAt = at
}

// MarkPending clears approval and rejection metadata.
func (b *Booking) MarkPending(at time.Time) {
	b.Status = BookingPending
	b.ApprovedAt = nil
	b.ApprovedBy = ""
	b.RejectedAt = nil
	b.RejectedBy = ""
	b.RejectionReason = ""
	b.UpdatedAt = at
}
