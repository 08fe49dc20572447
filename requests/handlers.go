package requests

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/loiphan2202/BAT/access"
	"github.com/loiphan2202/BAT/apperr"
	"github.com/loiphan2202/BAT/assets"
	"github.com/loiphan2202/BAT/utils"

	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"
)

type Handlers struct {
	svc *Service
	log logrus.FieldLogger
}

func NewHandlers(svc *Service, log logrus.FieldLogger) *Handlers {
	return &Handlers{svc: svc, log: log}
}

func actorOf(r *http.Request) access.Actor {
	a, _ := access.FromContext(r.Context())
	return a
}

// parseBool accepts "true"/"1"/"on"; anything else is false.
func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "on", "yes":
		return true
	}
	return false
}

func parseNumber(form map[string]string, key string) (*float64, error) {
	raw := strings.TrimSpace(form[key])
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, apperr.Field(key, "must be a number")
	}
	return &v, nil
}

// POST /api/user-request (multipart/form-data, file field "image")
func (h *Handlers) SubmitRequest(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	r.Body = http.MaxBytesReader(w, r.Body, assets.MaxImageSize+1<<20)
	if err := r.ParseMultipartForm(assets.MaxImageSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.RespondWithAppError(w, h.log, apperr.Field("image", "must be at most 10MB"))
			return
		}
		utils.RespondWithAppError(w, h.log, apperr.Validation("invalid form data", nil))
		return
	}

	form := map[string]string{}
	for _, k := range []string{"name", "landscape", "description", "rating", "price", "duration", "popular", "image"} {
		form[k] = r.FormValue(k)
	}
	in := SubmitInput{
		Name:        form["name"],
		Landscape:   form["landscape"],
		Description: form["description"],
		Duration:    form["duration"],
		Popular:     parseBool(form["popular"]),
		Image:       form["image"],
	}
	var err error
	if in.Rating, err = parseNumber(form, "rating"); err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	if in.Price, err = parseNumber(form, "price"); err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}

	var upload *Upload
	file, header, err := r.FormFile("image")
	switch {
	case err == nil:
		defer file.Close()
		upload = &Upload{Filename: header.Filename, Body: file}
	case !errors.Is(err, http.ErrMissingFile):
		utils.RespondWithAppError(w, h.log, apperr.Field("image", "could not be read"))
		return
	}

	req, err := h.svc.Submit(r.Context(), actorOf(r), in, upload)
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, utils.M{
		"message": "Request submitted successfully",
		"request": req,
	})
}

// GET /api/user/requests
func (h *Handlers) GetUserRequests(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	reqs, err := h.svc.ListOwn(r.Context(), actorOf(r))
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"message":  "Requests retrieved successfully",
		"requests": reqs,
	})
}

// GET /api/admin/requests
func (h *Handlers) GetAllRequests(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	reqs, err := h.svc.ListAll(r.Context(), actorOf(r))
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"message":  "Requests retrieved successfully",
		"requests": reqs,
	})
}

// PUT /api/admin/requests/:id/edit
func (h *Handlers) EditRequest(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var in EditInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	req, err := h.svc.Edit(r.Context(), actorOf(r), ps.ByName("id"), in)
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"message": "Request updated successfully",
		"request": req,
	})
}

// POST /api/admin/requests/:id/approve
func (h *Handlers) ApproveRequest(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	dest, err := h.svc.Approve(r.Context(), actorOf(r), ps.ByName("id"))
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"message":     "Request approved and destination added successfully",
		"destination": dest,
	})
}

// POST /api/admin/requests/:id/reject
func (h *Handlers) RejectRequest(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if _, err := h.svc.Reject(r.Context(), actorOf(r), ps.ByName("id")); err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"message": "Request rejected successfully"})
}

// DELETE /api/user/requests/:id and /api/admin/requests/:id
func (h *Handlers) DeleteRequest(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.svc.Delete(r.Context(), actorOf(r), ps.ByName("id")); err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"message": "Request deleted successfully"})
}
