package requests

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/loiphan2202/BAT/access"
	"github.com/loiphan2202/BAT/assets"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func as(actor access.Actor, h httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		h(w, r.WithContext(access.WithActor(r.Context(), actor)), ps)
	}
}

func multipartBody(t *testing.T, fields map[string]string, withImage bool) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if withImage {
		fw, err := mw.CreateFormFile("image", "coorg.png")
		require.NoError(t, err)
		require.NoError(t, png.Encode(fw, image.NewNRGBA(image.Rect(0, 0, 40, 20))))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestRequestHandlers(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.Images = assets.NewStore(t.TempDir(), "http://localhost:8080")
	})
	h := NewHandlers(f.svc, f.log)

	router := httprouter.New()
	router.POST("/api/user-request", as(submitter, h.SubmitRequest))
	router.GET("/api/user/requests", as(submitter, h.GetUserRequests))
	router.GET("/api/admin/requests", as(admin, h.GetAllRequests))
	router.PUT("/api/admin/requests/:id/edit", as(admin, h.EditRequest))
	router.POST("/api/admin/requests/:id/approve", as(admin, h.ApproveRequest))
	router.POST("/api/admin/requests/:id/reject", as(admin, h.RejectRequest))
	router.DELETE("/api/admin/requests/:id", as(admin, h.DeleteRequest))

	fields := map[string]string{
		"name": "Coorg Hills", "landscape": "Mountain", "description": "Coffee country",
		"rating": "4.5", "price": "600", "duration": "4 days", "popular": "true",
	}

	body, ctype := multipartBody(t, fields, true)
	req := httptest.NewRequest(http.MethodPost, "/api/user-request", body)
	req.Header.Set("Content-Type", ctype)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	created := decode(t, rr)["request"].(map[string]any)
	id := created["id"].(string)
	assert.Equal(t, "Pending", created["status"])
	assert.Equal(t, true, created["popular"])
	assert.Equal(t, 4.5, created["rating"])
	assert.True(t, strings.HasPrefix(created["image"].(string), "http://localhost:8080/uploads/"))

	body, ctype = multipartBody(t, map[string]string{"name": "No Picture", "rating": "abc"}, false)
	req = httptest.NewRequest(http.MethodPost, "/api/user-request", body)
	req.Header.Set("Content-Type", ctype)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decode(t, rr)["fields"], "rating")

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/user/requests", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode(t, rr)["requests"], 1)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/api/admin/requests/"+id+"/edit", strings.NewReader(`{"price":650}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 650.0, decode(t, rr)["request"].(map[string]any)["price"])

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/admin/requests/"+id+"/approve", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	dest := decode(t, rr)["destination"].(map[string]any)
	assert.Equal(t, "Coorg Hills", dest["name"])
	assert.Equal(t, 650.0, dest["price"])

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/admin/requests/"+id+"/reject", nil))
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "Request has already been processed", decode(t, rr)["error"])

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/admin/requests/missing", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
