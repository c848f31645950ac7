package api

import (
	"github.com/SherClockHolmes/webpush-go"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"seating-backend/internal/arbiter"
	"seating-backend/internal/issuance"
	"seating-backend/internal/notifier"
	"seating-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store        store.Store
	reservations store.ReservationStore
	engine       *arbiter.Engine
	hub          *notifier.Hub
	issuance     *issuance.Service
	webpush      *webpush.Options
	upgrader     websocket.Upgrader
	log          *logrus.Entry
}

// Deps lists what the handlers are built from. Reservations may be a cached
// view of Store.
type Deps struct {
	Store          store.Store
	Reservations   store.ReservationStore
	Engine         *arbiter.Engine
	Hub            *notifier.Hub
	Issuance       *issuance.Service
	Webpush        *webpush.Options
	AllowedOrigins []string
	Log            *logrus.Entry
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	reservations := d.Reservations
	if reservations == nil {
		reservations = d.Store
	}
	return &Handler{
		store:        d.Store,
		reservations: reservations,
		engine:       d.Engine,
		hub:          d.Hub,
		issuance:     d.Issuance,
		webpush:      d.Webpush,
		upgrader:     newUpgrader(d.AllowedOrigins),
		log:          d.Log,
	}
}
