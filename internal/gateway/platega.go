package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// Platega — клиент шлюза Platega (СБП/карты).
type Platega struct {
	merchant   string
	secretKey  string
	apiURL     string
	httpClient *http.Client
}

// NewPlatega создаёт новый клиент Platega.
func NewPlatega(merchant, secretKey string) *Platega {
	return &Platega{
		merchant:   merchant,
		secretKey:  secretKey,
		apiURL:     "https://app.platega.io",
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Name возвращает имя шлюза.
func (c *Platega) Name() string { return "platega" }

type plategaCreateRequest struct {
	PaymentMethod int    `json:"paymentMethod"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	ReturnURL     string `json:"return"`
}

type plategaCreateResponse struct {
	TransactionID string `json:"transactionId"`
	Redirect      string `json:"redirect"`
}

// CreateTransaction создаёт транзакцию и возвращает ссылку на оплату.
func (c *Platega) CreateTransaction(ctx context.Context, amount decimal.Decimal, currency, returnURL string) (string, string, error) {
	reqBody := plategaCreateRequest{
		PaymentMethod: 2,
		Amount:        amount.StringFixed(2),
		Currency:      currency,
		ReturnURL:     returnURL,
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/transaction/process", &buf)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("X-MerchantId", c.merchant)
	req.Header.Set("X-Secret", c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", "", errors.New("platega: unexpected status " + resp.Status)
	}

	var paymentResp plategaCreateResponse
	if err := json.NewDecoder(resp.Body).Decode(&paymentResp); err != nil {
		return "", "", err
	}
	return paymentResp.Redirect, paymentResp.TransactionID, nil
}
