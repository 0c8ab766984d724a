package mailer

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/iliyamo/trip-marketplace/internal/model"
)

var templates = template.Must(template.New("mail").Funcs(template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return "to be announced"
		}
		return t.Format("02 Jan 2006")
	},
}).Parse(`
{{define "otp"}}Hello,

Your verification code is: {{.Code}}

This code will expire in {{.Minutes}} minutes.

If you didn't request this, please ignore this email.
{{end}}

{{define "received"}}Hello {{.HostName}},

{{.Booking.TravelerName}} requested to join "{{.TripTitle}}" for {{.Booking.GroupSize}} traveler(s).
Total amount: INR {{.Booking.TotalAmount}}
Contact: {{.Booking.TravelerEmail}}, {{.Booking.TravelerPhone}}
{{if .Booking.Preferences}}Preferences: {{.Booking.Preferences}}
{{end}}
Review the request: {{.Link}}
{{end}}

{{define "approved"}}Hello {{.Booking.TravelerName}},

Good news! Your booking for "{{.TripTitle}}" has been approved.

Trip dates: {{date .StartDate}} to {{date .EndDate}}
Location: {{.Location}}
Group size: {{.Booking.GroupSize}}
Total amount: INR {{.Booking.TotalAmount}}

Next steps: the organizer will contact you at {{.Booking.TravelerPhone}} to confirm payment and pickup details.
Booking reference: {{.Booking.ID}}
{{end}}

{{define "rejected"}}Hello {{.Booking.TravelerName}},

Unfortunately your booking for "{{.TripTitle}}" could not be accepted.

Reason: {{.Booking.RejectionReason}}

Browse other trips at {{.Link}}
Booking reference: {{.Booking.ID}}
{{end}}

{{define "status"}}Hello {{.Booking.TravelerName}},

The status of your booking for "{{.TripTitle}}" is now {{.Booking.Status}}.
Payment status: {{.Booking.PaymentStatus}}
{{if .Booking.RejectionReason}}Reason: {{.Booking.RejectionReason}}
{{end}}Booking reference: {{.Booking.ID}}
{{end}}
`))

// BookingDetails is the trip context rendered into booking emails.
type BookingDetails struct {
	Booking   model.Booking
	TripTitle string
	HostName  string
	Location  string
	StartDate time.Time
	EndDate   time.Time
	Link      string
}

func render(name string, data any) string {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		// Templates are static; a failure here is a programming error.
		panic(fmt.Sprintf("mailer: render %s: %v", name, err))
	}
	return buf.String()
}

// OTPCode is the email carrying a one-time code.
func OTPCode(to, code string, ttl time.Duration) Email {
	return Email{
		To:      to,
		Subject: "Your verification code",
		Message: render("otp", struct {
			Code    string
			Minutes int
		}{code, int(ttl / time.Minute)}),
		Meta: map[string]string{"template": "otp"},
	}
}

// BookingReceived notifies the organizer of a new booking request.
func BookingReceived(to string, d BookingDetails) Email {
	return bookingEmail("received", to, "New booking request for "+d.TripTitle, d)
}

// BookingApproved tells the traveler the booking was approved.
func BookingApproved(d BookingDetails) Email {
	return bookingEmail("approved", d.Booking.TravelerEmail, "Your booking for "+d.TripTitle+" is approved", d)
}

// BookingRejected tells the traveler the booking was rejected and why.
func BookingRejected(d BookingDetails) Email {
	return bookingEmail("rejected", d.Booking.TravelerEmail, "Update on your booking for "+d.TripTitle, d)
}

// BookingStatusChanged is sent by the generic status update path.
func BookingStatusChanged(d BookingDetails) Email {
	return bookingEmail("status", d.Booking.TravelerEmail, "Booking status updated: "+d.Booking.Status, d)
}

func bookingEmail(tmpl, to, subject string, d BookingDetails) Email {
	return Email{
		To:      to,
		Subject: subject,
		Message: render(tmpl, d),
		Meta:    map[string]string{"template": tmpl, "booking_id": d.Booking.ID, "trip_id": d.Booking.TripID},
	}
}
