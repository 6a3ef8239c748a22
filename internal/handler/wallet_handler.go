package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"escrow-service/internal/pkg/response"
	"escrow-service/internal/usecase"
)

type WalletHandler struct {
	wallets *usecase.WalletUsecase
}

func NewWalletHandler(wallets *usecase.WalletUsecase) *WalletHandler {
	return &WalletHandler{wallets: wallets}
}

func (h *WalletHandler) Create(w http.ResponseWriter, r *http.Request) {
	wallet, err := h.wallets.CreateWallet(r.Context(), ActorID(r))
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, wallet)
}

func (h *WalletHandler) Details(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	details, err := h.wallets.Details(r.Context(), ActorID(r), limit, offset)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, details)
}

func (h *WalletHandler) Pay(w http.ResponseWriter, r *http.Request) {
	var req usecase.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.CustomerID = ActorID(r)

	order, err := h.wallets.PayWithWallet(r.Context(), req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, order)
}

func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var body struct {
		BankCode      string `json:"bank_code"`
		AccountNumber string `json:"account_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	tr, err := h.wallets.WithdrawAll(r.Context(), ActorID(r), body.BankCode, body.AccountNumber)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, tr)
}
