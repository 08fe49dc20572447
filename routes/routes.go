package routes

import (
	"fmt"
	"net/http"

	"github.com/loiphan2202/BAT/access"
	"github.com/loiphan2202/BAT/booking"
	"github.com/loiphan2202/BAT/destinations"
	"github.com/loiphan2202/BAT/middleware"
	"github.com/loiphan2202/BAT/ratelim"
	"github.com/loiphan2202/BAT/requests"

	"github.com/julienschmidt/httprouter"
)

// Handlers groups everything the router dispatches to.
type Handlers struct {
	Bookings     *booking.Handlers
	Hub          *booking.Hub
	Requests     *requests.Handlers
	Destinations *destinations.Handlers
}

// Index is a simple health check handler.
func Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	fmt.Fprint(w, "200")
}

// New builds the router. uploadDir is served under /uploads.
func New(h Handlers, resolver access.Resolver, rl *ratelim.RateLimiter, uploadDir string) *httprouter.Router {
	router := httprouter.New()
	router.GET("/health", Index)

	auth := middleware.Authenticate(resolver)
	admin := middleware.RequireRoles(access.RoleAdmin)

	AddStaticRoutes(router, uploadDir)
	AddDestinationRoutes(router, h.Destinations)
	AddBookingRoutes(router, h.Bookings, h.Hub, auth, rl)
	AddRequestRoutes(router, h.Requests, auth, rl)
	AddAdminRoutes(router, h.Bookings, h.Requests, auth, admin)
	return router
}

func AddStaticRoutes(router *httprouter.Router, uploadDir string) {
	router.ServeFiles("/uploads/*filepath", http.Dir(uploadDir))
}

func AddDestinationRoutes(router *httprouter.Router, h *destinations.Handlers) {
	router.GET("/api/destinations", h.GetDestinations)
	router.GET("/api/destinations/:id", h.GetDestination)
}

func AddBookingRoutes(router *httprouter.Router, h *booking.Handlers, hub *booking.Hub, auth middleware.Middleware, rl *ratelim.RateLimiter) {
	router.POST("/api/bookings", middleware.Chain(h.CreateBooking, rl.Limit, auth))
	router.POST("/api/bookings/reconcile", middleware.Chain(h.ReconcileBooking, rl.Limit, auth))
	router.GET("/api/bookings/user", middleware.Chain(h.GetUserBookings, auth))
	router.GET("/api/bookings/ws", middleware.Chain(hub.ServeWS, auth))
	router.PUT("/api/bookings/:id", middleware.Chain(h.UpdateBooking, rl.Limit, auth))
	router.DELETE("/api/bookings/:id", middleware.Chain(h.DeleteBooking, rl.Limit, auth))
	router.GET("/api/vouchers/:id", middleware.Chain(h.PrintVoucher, auth))
	router.POST("/api/create-order", middleware.Chain(h.CreateOrder, rl.Limit, auth))
}

func AddRequestRoutes(router *httprouter.Router, h *requests.Handlers, auth middleware.Middleware, rl *ratelim.RateLimiter) {
	router.POST("/api/user-request", middleware.Chain(h.SubmitRequest, rl.Limit, auth))
	router.GET("/api/user/requests", middleware.Chain(h.GetUserRequests, auth))
	router.DELETE("/api/user/requests/:id", middleware.Chain(h.DeleteRequest, rl.Limit, auth))
}

func AddAdminRoutes(router *httprouter.Router, b *booking.Handlers, r *requests.Handlers, auth, admin middleware.Middleware) {
	router.GET("/api/admin/bookings", middleware.Chain(b.GetAllBookings, auth, admin))
	router.PUT("/api/admin/bookings/:id/status", middleware.Chain(b.UpdateBookingStatus, auth, admin))
	router.DELETE("/api/admin/bookings/:id", middleware.Chain(b.DeleteBooking, auth, admin))
	router.POST("/api/admin/vouchers/verify", middleware.Chain(b.VerifyVoucher, auth, admin))

	router.GET("/api/admin/requests", middleware.Chain(r.GetAllRequests, auth, admin))
	router.PUT("/api/admin/requests/:id/edit", middleware.Chain(r.EditRequest, auth, admin))
	router.POST("/api/admin/requests/:id/approve", middleware.Chain(r.ApproveRequest, auth, admin))
	router.POST("/api/admin/requests/:id/reject", middleware.Chain(r.RejectRequest, auth, admin))
	router.DELETE("/api/admin/requests/:id", middleware.Chain(r.DeleteRequest, auth, admin))
}
