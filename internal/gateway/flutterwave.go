package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"escrow-service/internal/pkg/xerrors"
)

// VerifyResult is the gateway's view of a charge.
type VerifyResult struct {
	TxRef      string
	GatewayRef string
	Status     string
	Amount     decimal.Decimal
	Currency   string
}

// Successful reports whether the gateway settled the charge.
func (v VerifyResult) Successful() bool {
	return v.Status == "successful"
}

// Client verifies charges and pays out withdrawals. Implementations must
// distinguish unreachable-gateway errors (retryable) from verified-failed
// charges (terminal).
type Client interface {
	VerifyByTxRef(ctx context.Context, txRef string) (*VerifyResult, error)
	Transfer(ctx context.Context, req TransferRequest) error
}

// TransferRequest is a bank payout for a withdrawal.
type TransferRequest struct {
	Reference     string          `json:"reference"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	BankCode      string          `json:"account_bank"`
	AccountNumber string          `json:"account_number"`
	Narration     string          `json:"narration"`
}

type FlutterwaveClient struct {
	BaseURL    string
	SecretKey  string
	HttpClient *http.Client
}

func NewFlutterwaveClient(baseURL, secretKey string) *FlutterwaveClient {
	return &FlutterwaveClient{
		BaseURL:    baseURL,
		SecretKey:  secretKey,
		HttpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *FlutterwaveClient) VerifyByTxRef(ctx context.Context, txRef string) (*VerifyResult, error) {
	endpoint := fmt.Sprintf("%s/transactions/verify_by_reference?tx_ref=%s",
		c.BaseURL, url.QueryEscape(txRef))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)

	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrGatewayUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: gateway returned %d: %s",
			xerrors.ErrGatewayUnreachable, resp.StatusCode, string(body))
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: tx_ref %s", xerrors.ErrUnknownTxRef, txRef)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: gateway returned %d: %s",
			xerrors.ErrVerificationFail, resp.StatusCode, string(body))
	}

	var res struct {
		Status string `json:"status"`
		Data   struct {
			TxRef    string          `json:"tx_ref"`
			FlwRef   string          `json:"flw_ref"`
			Status   string          `json:"status"`
			Amount   decimal.Decimal `json:"amount"`
			Currency string          `json:"currency"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("%w: decode verify response: %v", xerrors.ErrVerificationFail, err)
	}
	if res.Status != "success" {
		return nil, fmt.Errorf("%w: tx_ref %s", xerrors.ErrUnknownTxRef, txRef)
	}

	return &VerifyResult{
		TxRef:      res.Data.TxRef,
		GatewayRef: res.Data.FlwRef,
		Status:     res.Data.Status,
		Amount:     res.Data.Amount,
		Currency:   res.Data.Currency,
	}, nil
}

func (c *FlutterwaveClient) Transfer(ctx context.Context, tr TransferRequest) error {
	payload, err := json.Marshal(tr)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/transfers", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", xerrors.ErrGatewayUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: gateway returned %d", xerrors.ErrGatewayUnreachable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("transfer rejected: %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
