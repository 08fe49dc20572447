package models

import "time"

// Booking is a user's reservation of a travel package. Status and
// PaymentStatus are independent axes: a booking can be Pending+Paid while
// it waits for an administrator.
type Booking struct {
	ID              string        `json:"id" bson:"_id"`
	UserID          string        `json:"user" bson:"user"`
	DestinationID   string        `json:"destination" bson:"destination"`
	PackageName     string        `json:"packageName" bson:"packageName"`
	TravelDate      time.Time     `json:"travelDate" bson:"travelDate"`
	Travelers       int           `json:"travelers" bson:"travelers"`
	TotalAmount     float64       `json:"totalAmount" bson:"totalAmount"`
	SpecialRequests string        `json:"specialRequests" bson:"specialRequests"`
	Status          BookingStatus `json:"status" bson:"status"`
	PaymentStatus   PaymentStatus `json:"paymentStatus" bson:"paymentStatus"`
	PaymentRef      string        `json:"paymentRef,omitempty" bson:"paymentRef,omitempty"`
	BookingDate     time.Time     `json:"bookingDate" bson:"bookingDate"`
	CreatedAt       time.Time     `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt" bson:"updatedAt"`
}

// BookingDetailsPatch carries the owner-editable fields. Nil means unchanged.
type BookingDetailsPatch struct {
	Travelers       *int
	SpecialRequests *string
}

// BookingView is a booking enriched with the names the admin and
// traveller screens show next to it.
type BookingView struct {
	Booking
	UserName         string  `json:"userName,omitempty"`
	UserEmail        string  `json:"userEmail,omitempty"`
	DestinationName  string  `json:"destinationName,omitempty"`
	DestinationImage string  `json:"destinationImage,omitempty"`
	DestinationPrice float64 `json:"destinationPrice,omitempty"`
}

type Pagination struct {
	CurrentPage   int   `json:"currentPage"`
	TotalPages    int   `json:"totalPages"`
	TotalBookings int64 `json:"totalBookings"`
	HasNext       bool  `json:"hasNext"`
	HasPrev       bool  `json:"hasPrev"`
}

type BookingPage struct {
	Bookings   []BookingView `json:"bookings"`
	Pagination Pagination    `json:"pagination"`
}
