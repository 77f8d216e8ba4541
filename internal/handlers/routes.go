package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

// Routes is everything the router mounts.
type Routes struct {
	Log      *slog.Logger
	Payments *PaymentHandler
	Webhooks *WebhookHandler
	Users    *UserHandler
	Verifier TokenVerifier
	Limiter  *RateLimiter
}

func NewRouter(rt Routes) *mux.Router {
	router := mux.NewRouter()
	router.Use(RequestLogger(rt.Log), Recoverer(rt.Log))
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Route not found")
	})

	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET", "HEAD")

	api := router.PathPrefix("/api").Subrouter()

	auth := api.PathPrefix("/auth").Subrouter()
	if rt.Limiter != nil {
		auth.Use(rt.Limiter.Middleware)
	}
	auth.HandleFunc("/signup", rt.Users.Signup).Methods("POST")
	auth.HandleFunc("/login", rt.Users.Login).Methods("POST")

	api.HandleFunc("/webhook", rt.Webhooks.Webhook).Methods("POST")

	payments := api.PathPrefix("/payments").Subrouter()
	payments.Use(RequireAuth(rt.Verifier))
	payments.HandleFunc("/create-payment", rt.Payments.CreatePayment).Methods("POST")
	payments.HandleFunc("/transactions", rt.Payments.GetTransactions).Methods("GET")
	payments.HandleFunc("/transactions/school/{schoolId}", rt.Payments.GetSchoolTransactions).Methods("GET")
	payments.HandleFunc("/transaction-status/{custom_order_id}", rt.Payments.GetTransactionStatus).Methods("GET")

	return router
}
