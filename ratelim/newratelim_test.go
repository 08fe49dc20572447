package ratelim

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
)

func TestLimitPerClient(t *testing.T) {
	rl := NewRateLimiter(60, 2)
	defer rl.Stop()

	h := rl.Limit(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.WriteHeader(http.StatusNoContent)
	})

	call := func(remote string) int {
		r := httptest.NewRequest(http.MethodPost, "/api/bookings", nil)
		r.RemoteAddr = remote
		w := httptest.NewRecorder()
		h(w, r, nil)
		return w.Code
	}

	assert.Equal(t, http.StatusNoContent, call("10.0.0.1:4000"))
	assert.Equal(t, http.StatusNoContent, call("10.0.0.1:4001"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:4002"), "port changes do not reset the bucket")
	assert.Equal(t, http.StatusNoContent, call("10.0.0.2:4000"))
}
