// Package destinations serves the read-only catalogue.
package destinations

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/loiphan2202/BAT/apperr"
	"github.com/loiphan2202/BAT/ledger"
	"github.com/loiphan2202/BAT/models"
	"github.com/loiphan2202/BAT/utils"

	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"
)

const readTimeout = 5 * time.Second

type Handlers struct {
	store ledger.Destinations
	log   logrus.FieldLogger
}

func NewHandlers(store ledger.Destinations, log logrus.FieldLogger) *Handlers {
	return &Handlers{store: store, log: log}
}

// GET /api/destinations?landscape=Beach&popular=true
func (h *Handlers) GetDestinations(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	q := r.URL.Query()
	var landscape models.Landscape
	if raw := strings.TrimSpace(q.Get("landscape")); raw != "" {
		l, ok := models.ParseLandscape(raw)
		if !ok {
			utils.RespondWithAppError(w, h.log, apperr.Field("landscape", "must be one of Beach, Mountain, Heritage, City"))
			return
		}
		landscape = l
	}
	popularOnly := strings.EqualFold(q.Get("popular"), "true")

	all, err := h.store.ListDestinations(ctx)
	if err != nil {
		utils.RespondWithAppError(w, h.log, apperr.Internal("list destinations", err))
		return
	}
	out := make([]models.Destination, 0, len(all))
	for _, d := range all {
		if landscape != "" && d.Landscape != landscape {
			continue
		}
		if popularOnly && !d.Popular {
			continue
		}
		out = append(out, d)
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"message":      "Destinations retrieved successfully",
		"destinations": out,
	})
}

// GET /api/destinations/:id
func (h *Handlers) GetDestination(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	d, err := h.store.FindDestination(ctx, ps.ByName("id"))
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		utils.RespondWithAppError(w, h.log, apperr.NotFound("Destination not found"))
		return
	case err != nil:
		utils.RespondWithAppError(w, h.log, apperr.Internal("find destination", err))
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"message":     "Destination retrieved successfully",
		"destination": d,
	})
}
