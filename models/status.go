package models

import "strings"

type BookingStatus string

const (
	BookingPending   BookingStatus = "Pending"
	BookingConfirmed BookingStatus = "Confirmed"
	BookingCancelled BookingStatus = "Cancelled"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "Pending"
	PaymentPaid    PaymentStatus = "Paid"
	PaymentFailed  PaymentStatus = "Failed"
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "Pending"
	RequestApproved RequestStatus = "Approved"
	RequestRejected RequestStatus = "Rejected"
)

// Terminal reports whether the request has been processed.
func (s RequestStatus) Terminal() bool {
	return s == RequestApproved || s == RequestRejected
}

// ParseBookingStatus accepts any casing ("confirmed", "CONFIRMED").
func ParseBookingStatus(s string) (BookingStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return BookingPending, true
	case "confirmed":
		return BookingConfirmed, true
	case "cancelled":
		return BookingCancelled, true
	}
	return "", false
}

func ParseLandscape(s string) (Landscape, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "beach":
		return LandscapeBeach, true
	case "mountain":
		return LandscapeMountain, true
	case "heritage":
		return LandscapeHeritage, true
	case "city":
		return LandscapeCity, true
	}
	return "", false
}
