package panel

import (
	"context"

	"github.com/maksimkurganov/vpn-backoffice/internal/models"
)

// SubscriberCache — внешний TTL-кэш состояния подписчиков.
type SubscriberCache interface {
	GetSubscriber(ctx context.Context, uuid string, result any) (bool, error)
	SetSubscriber(ctx context.Context, uuid string, value any) error
	DropSubscriber(ctx context.Context, uuid string) error
}

// CachedClient оборачивает клиента панели кэшем чтений по UUID. Движок
// рассылок гоняет большие выборки кандидатов, и они не должны бить по
// панели на каждом прогоне. Запись в панель сбрасывает кэш подписчика.
// Ошибка кэша не фатальна, чтение уходит на панель.
type CachedClient struct {
	client *Client
	cache  SubscriberCache
}

// NewCachedClient создает новый экземпляр CachedClient.
func NewCachedClient(client *Client, cache SubscriberCache) *CachedClient {
	return &CachedClient{
		client: client,
		cache:  cache,
	}
}

// GetSubscriberByUUID возвращает подписчика из кэша либо с панели.
func (c *CachedClient) GetSubscriberByUUID(ctx context.Context, uuid string) (*models.RemoteSubscriber, error) {
	var cached models.RemoteSubscriber
	if ok, err := c.cache.GetSubscriber(ctx, uuid, &cached); err == nil && ok {
		return &cached, nil
	}

	sub, err := c.client.GetSubscriberByUUID(ctx, uuid)
	if err != nil {
		return nil, err
	}
	_ = c.cache.SetSubscriber(ctx, uuid, sub)
	return sub, nil
}

// GetSubscriberByTelegramID идет напрямую на панель: поиск по альтернативным
// идентификаторам выполняется один раз при резолве и кэша не стоит.
func (c *CachedClient) GetSubscriberByTelegramID(ctx context.Context, telegramID int64) (*models.RemoteSubscriber, error) {
	return c.client.GetSubscriberByTelegramID(ctx, telegramID)
}

func (c *CachedClient) GetSubscriberByEmail(ctx context.Context, email string) (*models.RemoteSubscriber, error) {
	return c.client.GetSubscriberByEmail(ctx, email)
}

func (c *CachedClient) GetSubscriberByUsername(ctx context.Context, username string) (*models.RemoteSubscriber, error) {
	return c.client.GetSubscriberByUsername(ctx, username)
}

// CreateSubscriber делегирует создание панели и прогревает кэш.
func (c *CachedClient) CreateSubscriber(ctx context.Context, req CreateSubscriberRequest) (*models.RemoteSubscriber, error) {
	sub, err := c.client.CreateSubscriber(ctx, req)
	if err != nil {
		return nil, err
	}
	_ = c.cache.SetSubscriber(ctx, sub.UUID, sub)
	return sub, nil
}

// UpdateSubscriber делегирует запись панели и сбрасывает кэш подписчика,
// чтобы следующий прогон рассылок увидел свежее состояние.
func (c *CachedClient) UpdateSubscriber(ctx context.Context, req UpdateSubscriberRequest) (*models.RemoteSubscriber, error) {
	sub, err := c.client.UpdateSubscriber(ctx, req)
	if err != nil {
		return nil, err
	}
	_ = c.cache.DropSubscriber(ctx, req.UUID)
	return sub, nil
}
