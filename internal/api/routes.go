package api

import "net/http"

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("GET /sinks", s.admin(s.handleListSinks))
	mux.HandleFunc("GET /create-sink", s.admin(s.handleCreateSink))
	mux.HandleFunc("GET /sink/{sid}", s.admin(s.handleFetchSink))
	mux.HandleFunc("DELETE /sink/{sid}", s.admin(s.handleDeleteSink))
	mux.HandleFunc("GET /sink/{sid}/subscriptions", s.admin(s.handleListSubscriptions))
	mux.HandleFunc("POST /event/subscribe/{sid}", s.admin(s.handleSubscribe))
	mux.HandleFunc("GET /subscription/{sid}", s.admin(s.handleFetchSubscription))
	mux.HandleFunc("DELETE /subscription/{sid}", s.admin(s.handleDeleteSubscription))
	mux.HandleFunc("GET /deliveries", s.admin(s.handleDeliveries))

	// The sender authenticates with its own signature; admin auth never applies.
	mux.HandleFunc("POST /webhook-sink", s.handleWebhookSink)
	return mux
}
