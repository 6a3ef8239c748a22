package handler

import (
	"crypto/hmac"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"escrow-service/internal/domain"
	"escrow-service/internal/pkg/response"
	"escrow-service/internal/pkg/xerrors"
	"escrow-service/internal/usecase"
)

type PaymentHandler struct {
	payments *usecase.PaymentUsecase
	// secretHash is compared against the gateway's verif-hash header.
	secretHash string
	log        *zap.Logger
}

func NewPaymentHandler(payments *usecase.PaymentUsecase, secretHash string, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, secretHash: secretHash, log: log}
}

func (h *PaymentHandler) InitiateDelivery(w http.ResponseWriter, r *http.Request) {
	var req usecase.DeliveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.SenderID = ActorID(r)

	res, err := h.payments.InitiateDelivery(r.Context(), req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, res)
}

func (h *PaymentHandler) InitiateCheckout(w http.ResponseWriter, r *http.Request) {
	var req usecase.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.CustomerID = ActorID(r)

	res, err := h.payments.InitiateCheckout(r.Context(), req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, res)
}

func (h *PaymentHandler) InitiateTopup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := h.payments.InitiateTopup(r.Context(), ActorID(r), req.Amount)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, res)
}

// webhookPayload is the shape the gateway posts on charge events.
type webhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		TxRef  string          `json:"tx_ref"`
		FlwRef string          `json:"flw_ref"`
		Status string          `json:"status"`
		Amount decimal.Decimal `json:"amount"`
	} `json:"data"`
}

// Webhook verifies the gateway signature and enqueues the payment for
// background ingestion. It answers quickly; all heavy work happens in the
// worker. Always 200 for authenticated-but-ignorable events so the gateway
// does not retry them.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	signature := r.Header.Get("verif-hash")
	if h.secretHash == "" || !hmac.Equal([]byte(signature), []byte(h.secretHash)) {
		h.log.Warn("webhook signature invalid", zap.String("remote", r.RemoteAddr))
		response.Error(w, http.StatusUnauthorized, "invalid webhook signature")
		return
	}

	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.log.Error("webhook parse failed", zap.Error(err))
		response.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	if payload.Data.Status != "successful" {
		h.log.Debug("webhook event ignored", zap.String("status", payload.Data.Status))
		response.JSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if payload.Data.TxRef == "" {
		response.Error(w, http.StatusBadRequest, "missing tx_ref")
		return
	}

	h.log.Info("webhook received",
		zap.String("event", payload.Event),
		zap.String("tx_ref", payload.Data.TxRef),
		zap.String("flw_ref", payload.Data.FlwRef))

	if err := h.payments.Enqueue(r.Context(), payload.Data.TxRef, payload.Data.FlwRef, payload.Data.Amount); err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]string{"status": "queued"})
}

// Process is the internal relay: a trusted caller behind the X-Internal-Key
// gate runs ingestion synchronously instead of waiting for a worker.
func (h *PaymentHandler) Process(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TxRef         string               `json:"tx_ref"`
		GatewayRef    string               `json:"gateway_ref,omitempty"`
		Amount        decimal.Decimal      `json:"amount"`
		PaymentMethod domain.PaymentMethod `json:"payment_method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.PaymentMethod == "" {
		body.PaymentMethod = domain.MethodCard
	}

	order, err := h.payments.Process(r.Context(), body.TxRef, body.GatewayRef, body.Amount, body.PaymentMethod)
	if errors.Is(err, xerrors.ErrAlreadyProcessed) {
		// Replays are settled facts, not conflicts, for the internal relay.
		response.JSON(w, http.StatusOK, map[string]any{
			"status": "already_processed", "tx_ref": body.TxRef, "order": order,
		})
		return
	}
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"status": "processed", "tx_ref": body.TxRef, "order": order,
	})
}
