package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/maksimkurganov/vpn-backoffice/internal/errs"
	"github.com/maksimkurganov/vpn-backoffice/internal/models"
)

// Client — HTTP-клиент панели. Сетевые вызовы проходят через circuit
// breaker: открытый контур сразу возвращает ErrRemoteUnavailable,
// не дожидаясь таймаутов.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewClient создаёт клиента панели.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "panel",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do выполняет запрос через breaker и возвращает тело ответа.
// Коды 5xx и сетевые ошибки считаются отказами и двигают breaker к
// открытию; 404 и 409 — штатные ответы панели, отказами не являются.
func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	result, err := c.breaker.Execute(func() (any, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrRemoteUnavailable, err)
		}
		defer func() {
			_ = resp.Body.Close()
		}()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrRemoteUnavailable, err)
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: status %s", errs.ErrRemoteUnavailable, resp.Status)
		}
		return httpResult{status: resp.StatusCode, body: respBody}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit open", errs.ErrRemoteUnavailable)
		}
		return nil, err
	}

	res := result.(httpResult)
	switch {
	case res.status == http.StatusNotFound:
		return nil, errs.ErrNotFound
	case res.status == http.StatusConflict:
		return nil, errs.ErrRemoteConflict
	case res.status >= http.StatusBadRequest:
		// Панель сообщает о коллизии имени кодом 400 с текстом ошибки.
		if bytes.Contains(bytes.ToLower(res.body), []byte("already exists")) {
			return nil, errs.ErrRemoteConflict
		}
		return nil, fmt.Errorf("panel: unexpected status %d: %s", res.status, res.body)
	}
	return res.body, nil
}

type httpResult struct {
	status int
	body   []byte
}

// GetSubscriberByUUID возвращает подписчика по uuid.
func (c *Client) GetSubscriberByUUID(ctx context.Context, uuid string) (*models.RemoteSubscriber, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/users/"+uuid, nil)
	if err != nil {
		return nil, err
	}
	return decodeSubscriber(body)
}

// GetSubscriberByTelegramID ищет подписчика по идентификатору Telegram.
func (c *Client) GetSubscriberByTelegramID(ctx context.Context, telegramID int64) (*models.RemoteSubscriber, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/users/by-telegram-id/"+strconv.FormatInt(telegramID, 10), nil)
	if err != nil {
		return nil, err
	}
	return firstOfList(body)
}

// GetSubscriberByEmail ищет подписчика по электронной почте.
func (c *Client) GetSubscriberByEmail(ctx context.Context, email string) (*models.RemoteSubscriber, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/users/by-email/"+email, nil)
	if err != nil {
		return nil, err
	}
	return firstOfList(body)
}

// GetSubscriberByUsername ищет подписчика по имени пользователя.
func (c *Client) GetSubscriberByUsername(ctx context.Context, username string) (*models.RemoteSubscriber, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/users/by-username/"+username, nil)
	if err != nil {
		return nil, err
	}
	return decodeSubscriber(body)
}

func firstOfList(body []byte) (*models.RemoteSubscriber, error) {
	list, err := decodeSubscriberList(body)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, errs.ErrNotFound
	}
	return list[0], nil
}

// CreateSubscriber создаёт подписчика с нулевым доступом.
func (c *Client) CreateSubscriber(ctx context.Context, req CreateSubscriberRequest) (*models.RemoteSubscriber, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/users", req)
	if err != nil {
		return nil, err
	}
	return decodeSubscriber(body)
}

// UpdateSubscriber выполняет полное замещение состояния подписчика:
// срок, лимиты, стратегия сброса и набор сквадов устанавливаются целиком.
// Массовых операций над сквадами клиент не выполняет.
func (c *Client) UpdateSubscriber(ctx context.Context, req UpdateSubscriberRequest) (*models.RemoteSubscriber, error) {
	body, err := c.do(ctx, http.MethodPatch, "/api/users", req)
	if err != nil {
		return nil, err
	}
	return decodeSubscriber(body)
}

// RevokeSubscription отзывает подписку подписчика.
func (c *Client) RevokeSubscription(ctx context.Context, uuid string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/users/"+uuid+"/actions/revoke", nil)
	return err
}

// EnableSubscriber включает подписчика.
func (c *Client) EnableSubscriber(ctx context.Context, uuid string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/users/"+uuid+"/actions/enable", nil)
	return err
}

// DisableSubscriber выключает подписчика.
func (c *Client) DisableSubscriber(ctx context.Context, uuid string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/users/"+uuid+"/actions/disable", nil)
	return err
}

// ResetTraffic обнуляет счётчик трафика подписчика.
func (c *Client) ResetTraffic(ctx context.Context, uuid string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/users/"+uuid+"/actions/reset-traffic", nil)
	return err
}
