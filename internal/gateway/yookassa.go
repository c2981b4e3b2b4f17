package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Yookassa — клиент ЮKassa.
type Yookassa struct {
	shopID     string
	secretKey  string
	apiURL     string
	httpClient *http.Client
}

// NewYookassa создаёт новый клиент ЮKassa.
func NewYookassa(shopID, secretKey string) *Yookassa {
	return &Yookassa{
		shopID:     shopID,
		secretKey:  secretKey,
		apiURL:     "https://api.yookassa.ru/v3",
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Name возвращает имя шлюза.
func (c *Yookassa) Name() string { return "yookassa" }

type yookassaAmount struct {
	Value    string `json:"value"`    // сумма, например "200.00"
	Currency string `json:"currency"` // валюта, например "RUB"
}

type yookassaCreateRequest struct {
	Amount       yookassaAmount `json:"amount"`
	Capture      bool           `json:"capture"`
	Confirmation struct {
		Type      string `json:"type"`
		ReturnURL string `json:"return_url"`
	} `json:"confirmation"`
}

type yookassaCreateResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Confirmation struct {
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation"`
}

// CreateTransaction создаёт платёж и возвращает ссылку подтверждения.
func (c *Yookassa) CreateTransaction(ctx context.Context, amount decimal.Decimal, currency, returnURL string) (string, string, error) {
	reqBody := yookassaCreateRequest{
		Amount:  yookassaAmount{Value: amount.StringFixed(2), Currency: currency},
		Capture: true,
	}
	reqBody.Confirmation.Type = "redirect"
	reqBody.Confirmation.ReturnURL = returnURL

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
		return "", "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/payments", &buf)
	if err != nil {
		return "", "", err
	}
	auth := base64.StdEncoding.EncodeToString([]byte(c.shopID + ":" + c.secretKey))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotence-Key", uuid.New().String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", "", errors.New("yookassa: unexpected status " + resp.Status)
	}

	var paymentResp yookassaCreateResponse
	if err := json.NewDecoder(resp.Body).Decode(&paymentResp); err != nil {
		return "", "", err
	}
	return paymentResp.Confirmation.ConfirmationURL, paymentResp.ID, nil
}
