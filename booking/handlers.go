package booking

import (
	"net/http"

	"github.com/loiphan2202/BAT/access"
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

// POST /api/bookings
func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var in CreateInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	b, err := h.svc.Create(r.Context(), actorOf(r), in)
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, utils.M{
		"message": "Booking created successfully",
		"booking": b,
	})
}

// POST /api/bookings/reconcile
func (h *Handlers) ReconcileBooking(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var in ReconcileInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	b, err := h.svc.Reconcile(r.Context(), actorOf(r), in)
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, utils.M{
		"message": "Payment recorded; booking pending confirmation",
		"booking": b,
	})
}

// GET /api/bookings/user
func (h *Handlers) GetUserBookings(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	bookings, err := h.svc.ListOwn(r.Context(), actorOf(r))
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, bookings)
}

// PUT /api/bookings/:id
func (h *Handlers) UpdateBooking(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var in DetailsInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	b, err := h.svc.UpdateDetails(r.Context(), actorOf(r), ps.ByName("id"), in)
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"message": "Booking updated successfully",
		"booking": b,
	})
}

// DELETE /api/bookings/:id and /api/admin/bookings/:id
func (h *Handlers) DeleteBooking(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.svc.Delete(r.Context(), actorOf(r), ps.ByName("id")); err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"message": "Booking deleted successfully"})
}

// GET /api/admin/bookings
func (h *Handlers) GetAllBookings(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	opts := utils.ParseQueryOptions(r)
	page, err := h.svc.ListAll(r.Context(), actorOf(r), ListQuery{
		Page:   opts.Page,
		Limit:  opts.Limit,
		Status: opts.Status,
		UserID: opts.UserID,
	})
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, page)
}

// PUT /api/admin/bookings/:id/status
func (h *Handlers) UpdateBookingStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var body struct {
		Status string `json:"status"`
	}
	if err := utils.DecodeJSON(r, &body); err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	b, err := h.svc.UpdateStatus(r.Context(), actorOf(r), ps.ByName("id"), body.Status)
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"message": "Booking status updated successfully",
		"booking": b,
	})
}

// POST /api/create-order
func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var in PaymentInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	session, err := h.svc.InitiatePayment(r.Context(), actorOf(r), in)
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"success":    true,
		"sessionId":  session.ID,
		"sessionUrl": session.URL,
	})
}

// GET /api/vouchers/:id
func (h *Handlers) PrintVoucher(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	pdf, err := h.svc.Voucher(r.Context(), actorOf(r), ps.ByName("id"))
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=voucher-"+ps.ByName("id")+".pdf")
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

// POST /api/admin/vouchers/verify
func (h *Handlers) VerifyVoucher(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body struct {
		Payload string `json:"payload"`
	}
	if err := utils.DecodeJSON(r, &body); err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	check, err := h.svc.VerifyVoucher(r.Context(), actorOf(r), body.Payload)
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, check)
}
