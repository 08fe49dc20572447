package booking

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/loiphan2202/BAT/access"
	"github.com/loiphan2202/BAT/models"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hubServer(t *testing.T, hub *Hub, actor access.Actor) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actor.UserID != "" {
			r = r.WithContext(access.WithActor(r.Context(), actor))
		}
		hub.ServeWS(w, r, nil)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHubDeliversOwnStatusEvents(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	hub := NewHub(log)
	defer hub.Close()

	srv := hubServer(t, hub, traveler)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Subscribers("u-1") == 1 }, time.Second, 10*time.Millisecond)

	hub.PublishStatus(models.Booking{ID: "b-other", UserID: "u-2", Status: models.BookingCancelled})
	hub.PublishStatus(models.Booking{ID: "b-1", UserID: "u-1", Status: models.BookingConfirmed, PaymentStatus: models.PaymentPaid})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev StatusEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, "booking.status", ev.Type)
	assert.Equal(t, "b-1", ev.BookingID, "other users' events are not delivered")
	assert.Equal(t, models.BookingConfirmed, ev.Status)
	assert.Equal(t, models.PaymentPaid, ev.PaymentStatus)
}

func TestHubRejectsAnonymous(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	hub := NewHub(log)

	srv := hubServer(t, hub, access.Actor{})
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHubCloseDisconnects(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	hub := NewHub(log)

	srv := hubServer(t, hub, traveler)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Subscribers("u-1") == 1 }, time.Second, 10*time.Millisecond)

	hub.Close()
	assert.Zero(t, hub.Subscribers("u-1"))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)

	// publishing after close is a no-op
	hub.PublishStatus(models.Booking{ID: "b-1", UserID: "u-1"})
}
