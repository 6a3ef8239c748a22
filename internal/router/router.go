package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"escrow-service/internal/handler"
)

func SetupRoutes(
	r chi.Router,
	payments *handler.PaymentHandler,
	orders *handler.OrderHandler,
	wallets *handler.WalletHandler,
	internalKey string,
) chi.Router {
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Public endpoints: health and the gateway webhook, which authenticates
	// with its own signature header.
	r.Group(func(pub chi.Router) {
		pub.Get("/escrow/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		})
		pub.Post("/escrow/payments/webhook", payments.Webhook)
	})

	// Service-to-service relay: runs ingestion inline for trusted callers.
	r.Route("/escrow/internal", func(in chi.Router) {
		in.Use(handler.RequireInternalKey(internalKey))
		in.Post("/payments/process", payments.Process)
	})

	// Authenticated endpoints.
	r.Route("/escrow/svc", func(pr chi.Router) {
		pr.Use(handler.RequireActor)

		pr.Post("/payments/delivery/initiate", payments.InitiateDelivery)
		pr.Post("/payments/checkout/initiate", payments.InitiateCheckout)
		pr.Post("/payments/topup/initiate", payments.InitiateTopup)

		pr.Get("/orders", orders.List)
		pr.Get("/orders/{orderID}", orders.Get)
		pr.Get("/orders/{orderID}/audit", orders.AuditTrail)
		pr.Patch("/orders/{orderID}/status", orders.UpdateStatus)
		pr.Get("/riders/me/stats", orders.RiderStats)

		pr.Post("/wallets", wallets.Create)
		pr.Get("/wallets/me", wallets.Details)
		pr.Post("/wallets/pay", wallets.Pay)
		pr.Post("/wallets/withdraw", wallets.Withdraw)
	})

	return r
}
