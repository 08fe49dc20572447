package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

type mailTemplate struct {
	subject string
	body    *template.Template
}

var funcs = template.FuncMap{
	"inr": func(v float64) string { return fmt.Sprintf("₹%.2f", v) },
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("02 Jan 2006")
	},
}

const layout = `{{define "layout"}}<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
<h2 style="color: {{template "color" .}};">{{template "title" .}}</h2>
<p>Dear {{if .Name}}{{.Name}}{{else}}Customer{{end}},</p>
{{template "content" .}}
<p>Best regards,<br>Travel Agency Team</p>
</div>{{end}}`

const bookingDetails = `{{define "details"}}<div style="background-color: #f9f9f9; padding: 20px; border-radius: 5px; margin: 20px 0;">
<h3>Booking Details:</h3>
<p><strong>Package:</strong> {{.PackageName}}</p>
<p><strong>Destination:</strong> {{.DestinationName}}</p>
<p><strong>Travel Date:</strong> {{date .TravelDate}}</p>
<p><strong>Travelers:</strong> {{.Travelers}}</p>
<p><strong>Total Amount:</strong> {{inr .TotalAmount}}</p>
{{block "extra" .}}{{end}}
</div>{{end}}`

func mustTemplate(name, color, title, content string) *template.Template {
	t := template.Must(template.New(name).Funcs(funcs).Parse(layout))
	template.Must(t.Parse(bookingDetails))
	template.Must(t.Parse(`{{define "color"}}` + color + `{{end}}`))
	template.Must(t.Parse(`{{define "title"}}` + title + `{{end}}`))
	template.Must(t.Parse(`{{define "content"}}` + content + `{{end}}`))
	return t
}

var templates = map[Kind]mailTemplate{
	BookingReceived: {
		subject: "Booking Received - Travel Agency",
		body: mustTemplate("received", "#FF9800", "Booking Received",
			`<p>We have received your booking request. It is currently under review. Here are the details:</p>
{{template "details" .}}
<p>We will notify you once your booking is confirmed.</p>`),
	},
	PaymentReceived: {
		subject: "Payment Successful - Booking Pending Confirmation",
		body: mustTemplate("paid", "#4CAF50", "Payment Successful!",
			`<p>Your payment has been processed. Your booking is now pending confirmation by our team. Here are the details:</p>
{{template "details" .}}
<p><strong>Payment Status:</strong> Paid</p>
<p><strong>Booking Status:</strong> Pending Confirmation</p>
<p>You will receive another email once your booking is reviewed.</p>`),
	},
	BookingConfirmed: {
		subject: "Booking Confirmed - Travel Agency",
		body: mustTemplate("confirmed", "#4CAF50", "Booking Confirmed!",
			`<p>Your booking has been confirmed. Here are the details:</p>
{{template "details" .}}
<p>Thank you for choosing our travel agency.</p>`),
	},
	BookingCancelled: {
		subject: "Booking Cancelled - Travel Agency",
		body: mustTemplate("cancelled", "#f44336", "Booking Cancelled",
			`<p>Your booking has been cancelled. Here are the details:</p>
{{template "details" .}}
<p>If you have any questions, please contact us.</p>`),
	},
	RequestApproved: {
		subject: "Destination Request Approved - Travel Agency",
		body: mustTemplate("approved", "#4CAF50", "Destination Request Approved",
			`<p>Your proposal <strong>{{.DestinationName}}</strong> has been approved and is now listed in our catalogue.</p>`),
	},
	RequestRejected: {
		subject: "Destination Request Rejected - Travel Agency",
		body: mustTemplate("rejected", "#f44336", "Destination Request Rejected",
			`<p>Your proposal <strong>{{.DestinationName}}</strong> was reviewed and will not be added to our catalogue.</p>`),
	},
}

// Render returns the subject and HTML body for n.
func Render(n Notification) (string, string, error) {
	t, ok := templates[n.Kind]
	if !ok {
		return "", "", fmt.Errorf("notify: no template for kind %q", n.Kind)
	}
	var buf bytes.Buffer
	if err := t.body.ExecuteTemplate(&buf, "layout", n.Data); err != nil {
		return "", "", fmt.Errorf("notify: render %s: %w", n.Kind, err)
	}
	return t.subject, buf.String(), nil
}
