package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseBookingStatus(t *testing.T) {
	for in, want := range map[string]BookingStatus{
		"pending":    BookingPending,
		"Confirmed":  BookingConfirmed,
		" CANCELLED": BookingCancelled,
	} {
		got, ok := ParseBookingStatus(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got)
	}

	for _, in := range []string{"", "paid", "approved", "canceled"} {
		_, ok := ParseBookingStatus(in)
		assert.False(t, ok, in)
	}
}

func TestParseLandscape(t *testing.T) {
	l, ok := ParseLandscape("mountain")
	assert.True(t, ok)
	assert.Equal(t, LandscapeMountain, l)

	_, ok = ParseLandscape("Desert")
	assert.False(t, ok)
}

func TestRequestPatchApply(t *testing.T) {
	c := DestinationContent{Name: "Coorg Hills", Landscape: LandscapeMountain, Price: 600, Rating: 4.5, Duration: "4 days"}
	price := 750.0
	popular := true
	RequestPatch{Price: &price, Popular: &popular}.Apply(&c)

	assert.Equal(t, "Coorg Hills", c.Name)
	assert.Equal(t, 750.0, c.Price)
	assert.Equal(t, 4.5, c.Rating)
	assert.True(t, c.Popular)
}

func TestUserDisplayName(t *testing.T) {
	assert.Equal(t, "asha", User{Username: "asha", Email: "a@x.io"}.DisplayName())
	assert.Equal(t, "Asha R", User{GoogleDisplayName: "Asha R", Email: "a@x.io"}.DisplayName())
	assert.Equal(t, "a@x.io", User{Email: "a@x.io"}.DisplayName())
	assert.True(t, User{Role: []string{"user", "admin"}}.IsAdmin())
}
