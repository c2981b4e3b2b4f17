package payment

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maksimkurganov/vpn-backoffice/internal/errs"
	"github.com/maksimkurganov/vpn-backoffice/internal/gateway"
	"github.com/maksimkurganov/vpn-backoffice/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) GetClientByID(ctx context.Context, id int64) (*models.Client, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*models.Client)
	return c, args.Error(1)
}

func (m *RepoMock) GetTariffByID(ctx context.Context, id int64) (*models.Tariff, error) {
	args := m.Called(ctx, id)
	t, _ := args.Get(0).(*models.Tariff)
	return t, args.Error(1)
}

func (m *RepoMock) CreatePayment(ctx context.Context, p *models.Payment) error {
	return m.Called(ctx, p).Error(0)
}

func (m *RepoMock) ListPaymentsByClient(ctx context.Context, clientID int64, limit, offset int) ([]*models.Payment, error) {
	args := m.Called(ctx, clientID, limit, offset)
	rows, _ := args.Get(0).([]*models.Payment)
	return rows, args.Error(1)
}

type PromoMock struct{ mock.Mock }

func (m *PromoMock) ValidateCode(ctx context.Context, code string, clientID int64) (*models.PromoCode, error) {
	args := m.Called(ctx, code, clientID)
	c, _ := args.Get(0).(*models.PromoCode)
	return c, args.Error(1)
}

func (m *PromoMock) RedeemCode(ctx context.Context, code string, clientID int64, grant models.Grant) (*models.PromoCode, error) {
	args := m.Called(ctx, code, clientID, grant)
	c, _ := args.Get(0).(*models.PromoCode)
	return c, args.Error(1)
}

type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) Name() string { return "testpay" }

func (m *GatewayMock) CreateTransaction(ctx context.Context, amount decimal.Decimal, currency, returnURL string) (string, string, error) {
	args := m.Called(ctx, amount, currency, returnURL)
	return args.String(0), args.String(1), args.Error(2)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

type fixture struct {
	repo  *RepoMock
	promo *PromoMock
	gw    *GatewayMock
	svc   *Service
}

func newFixture() *fixture {
	f := &fixture{
		repo:  new(RepoMock),
		promo: new(PromoMock),
		gw:    new(GatewayMock),
	}
	f.svc = New(f.repo, gateway.NewRegistry(f.gw), f.promo, "https://shop.example/return", newNoopLogger())
	return f
}

func tariffID(id int64) *int64 { return &id }

func TestCheckout_TariffThroughGateway(t *testing.T) {
	f := newFixture()
	tariff := &models.Tariff{
		ID: 7, Kind: models.TariffKindVPN, Price: decimal.NewFromInt(300), Active: true,
	}

	f.repo.On("GetClientByID", mock.Anything, int64(1)).Return(&models.Client{ID: 1}, nil)
	f.repo.On("GetTariffByID", mock.Anything, int64(7)).Return(tariff, nil)
	f.gw.On("CreateTransaction", mock.Anything, decimal.NewFromInt(300), "RUB", "https://shop.example/return").
		Return("https://pay.example/tx-1", "tx-1", nil).Once()
	f.repo.On("CreatePayment", mock.Anything, mock.MatchedBy(func(p *models.Payment) bool {
		return p.ClientID == 1 &&
			p.Status == models.PaymentStatusPending &&
			p.Purpose == models.PurposeTariff &&
			p.Gateway == "testpay" &&
			p.ExternalID != nil && *p.ExternalID == "tx-1" &&
			p.Amount.Equal(decimal.NewFromInt(300))
	})).Return(nil).Once()

	result, err := f.svc.Checkout(context.Background(), CheckoutRequest{
		ClientID: 1, TariffID: tariffID(7), Currency: "RUB", Gateway: "testpay",
	})

	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/tx-1", result.PaymentURL)
	assert.NotEmpty(t, result.Payment.ID)
	f.repo.AssertExpectations(t)
	f.gw.AssertExpectations(t)
}

func TestCheckout_DiscountReducesAmount(t *testing.T) {
	f := newFixture()
	tariff := &models.Tariff{
		ID: 7, Kind: models.TariffKindVPN, Price: decimal.NewFromInt(300), Active: true,
	}
	code := &models.PromoCode{
		ID: 2, Code: "MINUS20", Type: models.PromoCodeDiscount, DiscountPercent: 20, Active: true,
	}
	discounted := decimal.NewFromInt(240)

	f.repo.On("GetClientByID", mock.Anything, int64(1)).Return(&models.Client{ID: 1}, nil)
	f.repo.On("GetTariffByID", mock.Anything, int64(7)).Return(tariff, nil)
	f.promo.On("ValidateCode", mock.Anything, "MINUS20", int64(1)).Return(code, nil)
	f.gw.On("CreateTransaction", mock.Anything, mock.MatchedBy(func(a decimal.Decimal) bool {
		return a.Equal(discounted)
	}), "RUB", mock.Anything).Return("https://pay.example/tx-1", "tx-1", nil)
	f.repo.On("CreatePayment", mock.Anything, mock.MatchedBy(func(p *models.Payment) bool {
		return p.Amount.Equal(discounted)
	})).Return(nil)
	f.promo.On("RedeemCode", mock.Anything, "MINUS20", int64(1), models.Grant{}).
		Return(code, nil).Once()

	_, err := f.svc.Checkout(context.Background(), CheckoutRequest{
		ClientID: 1, TariffID: tariffID(7), Currency: "RUB", Gateway: "testpay", PromoCode: "MINUS20",
	})

	require.NoError(t, err)
	f.promo.AssertExpectations(t)
}

func TestCheckout_LostDiscountRaceDoesNotCancel(t *testing.T) {
	f := newFixture()
	tariff := &models.Tariff{
		ID: 7, Kind: models.TariffKindVPN, Price: decimal.NewFromInt(100), Active: true,
	}
	code := &models.PromoCode{
		ID: 2, Code: "LAST", Type: models.PromoCodeDiscount, DiscountPercent: 10, Active: true, MaxUses: 1,
	}

	f.repo.On("GetClientByID", mock.Anything, int64(1)).Return(&models.Client{ID: 1}, nil)
	f.repo.On("GetTariffByID", mock.Anything, int64(7)).Return(tariff, nil)
	f.promo.On("ValidateCode", mock.Anything, "LAST", int64(1)).Return(code, nil)
	f.gw.On("CreateTransaction", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("https://pay.example/tx-1", "tx-1", nil)
	f.repo.On("CreatePayment", mock.Anything, mock.Anything).Return(nil)
	f.promo.On("RedeemCode", mock.Anything, "LAST", int64(1), models.Grant{}).
		Return(nil, errs.ErrConflict)

	_, err := f.svc.Checkout(context.Background(), CheckoutRequest{
		ClientID: 1, TariffID: tariffID(7), Currency: "RUB", Gateway: "testpay", PromoCode: "LAST",
	})

	assert.NoError(t, err)
}

func TestCheckout_FreeDaysCodeRejected(t *testing.T) {
	f := newFixture()
	tariff := &models.Tariff{
		ID: 7, Kind: models.TariffKindVPN, Price: decimal.NewFromInt(100), Active: true,
	}
	code := &models.PromoCode{
		ID: 3, Code: "WEEK", Type: models.PromoCodeFreeDays, FreeDays: 7, Active: true,
	}

	f.repo.On("GetClientByID", mock.Anything, int64(1)).Return(&models.Client{ID: 1}, nil)
	f.repo.On("GetTariffByID", mock.Anything, int64(7)).Return(tariff, nil)
	f.promo.On("ValidateCode", mock.Anything, "WEEK", int64(1)).Return(code, nil)

	_, err := f.svc.Checkout(context.Background(), CheckoutRequest{
		ClientID: 1, TariffID: tariffID(7), Currency: "RUB", Gateway: "testpay", PromoCode: "WEEK",
	})

	assert.ErrorIs(t, err, errs.ErrValidation)
	f.repo.AssertNotCalled(t, "CreatePayment")
}

func TestCheckout_InactiveTariff(t *testing.T) {
	f := newFixture()
	f.repo.On("GetClientByID", mock.Anything, int64(1)).Return(&models.Client{ID: 1}, nil)
	f.repo.On("GetTariffByID", mock.Anything, int64(7)).
		Return(&models.Tariff{ID: 7, Price: decimal.NewFromInt(100)}, nil)

	_, err := f.svc.Checkout(context.Background(), CheckoutRequest{
		ClientID: 1, TariffID: tariffID(7), Currency: "RUB", Gateway: "testpay",
	})

	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestCheckout_TopUpFromBalanceRejected(t *testing.T) {
	f := newFixture()
	f.repo.On("GetClientByID", mock.Anything, int64(1)).Return(&models.Client{ID: 1}, nil)

	_, err := f.svc.Checkout(context.Background(), CheckoutRequest{
		ClientID: 1, Amount: decimal.NewFromInt(500), Currency: "RUB", FromBalance: true,
	})

	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestCheckout_FromBalanceSkipsGateway(t *testing.T) {
	f := newFixture()
	tariff := &models.Tariff{
		ID: 7, Kind: models.TariffKindVPN, Price: decimal.NewFromInt(300), Active: true,
	}

	f.repo.On("GetClientByID", mock.Anything, int64(1)).Return(&models.Client{ID: 1}, nil)
	f.repo.On("GetTariffByID", mock.Anything, int64(7)).Return(tariff, nil)
	f.repo.On("CreatePayment", mock.Anything, mock.MatchedBy(func(p *models.Payment) bool {
		return p.Gateway == "balance" && p.FromBalance && p.ExternalID == nil
	})).Return(nil).Once()

	result, err := f.svc.Checkout(context.Background(), CheckoutRequest{
		ClientID: 1, TariffID: tariffID(7), Currency: "RUB", FromBalance: true,
	})

	require.NoError(t, err)
	assert.Empty(t, result.PaymentURL)
	f.gw.AssertNotCalled(t, "CreateTransaction")
}

func TestCheckout_UnknownGateway(t *testing.T) {
	f := newFixture()
	f.repo.On("GetClientByID", mock.Anything, int64(1)).Return(&models.Client{ID: 1}, nil)

	_, err := f.svc.Checkout(context.Background(), CheckoutRequest{
		ClientID: 1, Amount: decimal.NewFromInt(500), Currency: "RUB", Gateway: "кошелёк",
	})

	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestCheckout_ProxyTariffPurpose(t *testing.T) {
	f := newFixture()
	tariff := &models.Tariff{
		ID: 8, Kind: models.TariffKindProxy, Price: decimal.NewFromInt(150), Active: true,
	}

	f.repo.On("GetClientByID", mock.Anything, int64(1)).Return(&models.Client{ID: 1}, nil)
	f.repo.On("GetTariffByID", mock.Anything, int64(8)).Return(tariff, nil)
	f.gw.On("CreateTransaction", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("https://pay.example/tx-2", "tx-2", nil)
	f.repo.On("CreatePayment", mock.Anything, mock.MatchedBy(func(p *models.Payment) bool {
		return p.Purpose == models.PurposeProxyTariff
	})).Return(nil).Once()

	_, err := f.svc.Checkout(context.Background(), CheckoutRequest{
		ClientID: 1, TariffID: tariffID(8), Currency: "RUB", Gateway: "testpay",
	})

	require.NoError(t, err)
	f.repo.AssertExpectations(t)
}

func TestApplyDiscount(t *testing.T) {
	tests := []struct {
		name    string
		amount  int64
		percent int
		want    string
	}{
		{"двадцать процентов", 300, 20, "240"},
		{"ноль не меняет сумму", 300, 0, "300"},
		{"сто процентов обнуляет", 300, 100, "0"},
		{"за пределами диапазона игнорируется", 300, 150, "300"},
		{"округление до копеек", 299, 33, "200.33"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := applyDiscount(decimal.NewFromInt(tc.amount), tc.percent)
			want, err := decimal.NewFromString(tc.want)
			require.NoError(t, err)
			assert.True(t, got.Equal(want), "got %s, want %s", got, want)
		})
	}
}

func TestListByClient_ClampsLimit(t *testing.T) {
	f := newFixture()
	f.repo.On("ListPaymentsByClient", mock.Anything, int64(1), 50, 0).
		Return([]*models.Payment{}, nil).Twice()

	_, err := f.svc.ListByClient(context.Background(), 1, 0, -5)
	require.NoError(t, err)

	_, err = f.svc.ListByClient(context.Background(), 1, 1000, 0)
	require.NoError(t, err)
	f.repo.AssertExpectations(t)
}
