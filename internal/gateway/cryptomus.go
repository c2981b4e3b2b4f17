package gateway

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cryptomus — клиент криптоплатёжного шлюза Cryptomus.
type Cryptomus struct {
	merchant   string
	apiKey     string
	apiURL     string
	httpClient *http.Client
}

// NewCryptomus создаёт новый клиент Cryptomus.
func NewCryptomus(merchant, apiKey string) *Cryptomus {
	return &Cryptomus{
		merchant:   merchant,
		apiKey:     apiKey,
		apiURL:     "https://api.cryptomus.com/v1",
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Name возвращает имя шлюза.
func (c *Cryptomus) Name() string { return "cryptomus" }

type cryptomusCreateRequest struct {
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	OrderID   string `json:"order_id"`
	URLReturn string `json:"url_return"`
}

type cryptomusCreateResponse struct {
	State  int `json:"state"`
	Result struct {
		UUID string `json:"uuid"`
		URL  string `json:"url"`
	} `json:"result"`
}

// sign считает подпись запроса: md5(base64(body) + apiKey).
func (c *Cryptomus) sign(body []byte) string {
	encoded := base64.StdEncoding.EncodeToString(body)
	sum := md5.Sum([]byte(encoded + c.apiKey))
	return hex.EncodeToString(sum[:])
}

// CreateTransaction создаёт счёт и возвращает ссылку на оплату.
func (c *Cryptomus) CreateTransaction(ctx context.Context, amount decimal.Decimal, currency, returnURL string) (string, string, error) {
	reqBody := cryptomusCreateRequest{
		Amount:    amount.StringFixed(2),
		Currency:  currency,
		OrderID:   uuid.New().String(),
		URLReturn: returnURL,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/payment", bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("merchant", c.merchant)
	req.Header.Set("sign", c.sign(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", "", errors.New("cryptomus: unexpected status " + resp.Status)
	}

	var paymentResp cryptomusCreateResponse
	if err := json.NewDecoder(resp.Body).Decode(&paymentResp); err != nil {
		return "", "", err
	}
	if paymentResp.State != 0 {
		return "", "", errors.New("cryptomus: request rejected")
	}
	return paymentResp.Result.URL, paymentResp.Result.UUID, nil
}
