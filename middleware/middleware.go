package middleware

import (
	"net/http"
	"strings"

	"github.com/loiphan2202/BAT/access"
	"github.com/loiphan2202/BAT/apperr"
	"github.com/loiphan2202/BAT/utils"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

type Middleware func(httprouter.Handle) httprouter.Handle

// Chain wraps h so the first middleware runs outermost.
func Chain(h httprouter.Handle, mws ...Middleware) httprouter.Handle {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Authenticate resolves the bearer token into an access.Actor and stores it
// in the request context. Browsers cannot set headers on a websocket
// upgrade, so upgrades may pass the token as ?token= instead.
func Authenticate(resolver access.Resolver) Middleware {
	return func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			tokenString := r.Header.Get("Authorization")
			if tokenString == "" && websocket.IsWebSocketUpgrade(r) {
				tokenString = r.URL.Query().Get("token")
			}
			if tokenString == "" {
				utils.RespondWithAppError(w, nil, apperr.Unauthenticated("missing token"))
				return
			}
			if strings.Contains(tokenString, " ") && !strings.HasPrefix(tokenString, "Bearer ") {
				utils.RespondWithAppError(w, nil, apperr.Unauthenticated("invalid token format"))
				return
			}

			actor, err := resolver.Resolve(tokenString)
			if err != nil {
				utils.RespondWithAppError(w, nil, err)
				return
			}
			next(w, r.WithContext(access.WithActor(r.Context(), actor)), ps)
		}
	}
}

// RequireRoles lets the request through when the actor holds any of roles.
// It must run after Authenticate.
func RequireRoles(roles ...access.Role) Middleware {
	return func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			actor, _ := access.FromContext(r.Context())
			var err error
			for _, role := range roles {
				if err = access.Check(actor, "", role); err == nil {
					next(w, r, ps)
					return
				}
			}
			if err == nil {
				err = apperr.Authorization("forbidden")
			}
			utils.RespondWithAppError(w, nil, err)
		}
	}
}
