package referral

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
	"github.com/maksimkurganov/vpn-backoffice/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) GetPaymentByID(ctx context.Context, id string) (*models.Payment, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*models.Payment)
	return p, args.Error(1)
}

func (m *RepoMock) GetClientByID(ctx context.Context, id int64) (*models.Client, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*models.Client)
	return c, args.Error(1)
}

func (m *RepoMock) ListCreditsByPayment(ctx context.Context, paymentID string) ([]*models.ReferralCredit, error) {
	args := m.Called(ctx, paymentID)
	rows, _ := args.Get(0).([]*models.ReferralCredit)
	return rows, args.Error(1)
}

func (m *RepoMock) CreditReferral(ctx context.Context, credit *models.ReferralCredit) error {
	return m.Called(ctx, credit).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func newDistributor(repo *RepoMock) *Distributor {
	return NewDistributor(repo, Percents{Level1: 10, Level2: 5, Level3: 2}, newNoopLogger())
}

func ref(id int64) *int64 { return &id }

func TestDistribute_ThreeLevels(t *testing.T) {
	repo := new(RepoMock)
	d := newDistributor(repo)

	payment := &models.Payment{
		ID:       "pay-1",
		ClientID: 1,
		Amount:   decimal.NewFromInt(1000),
		Status:   models.PaymentStatusPaid,
		Purpose:  models.PurposeTariff,
	}
	repo.On("GetPaymentByID", mock.Anything, "pay-1").Return(payment, nil)
	repo.On("ListCreditsByPayment", mock.Anything, "pay-1").Return(nil, nil).Once()
	repo.On("GetClientByID", mock.Anything, int64(1)).Return(&models.Client{ID: 1, ReferrerID: ref(2)}, nil)
	repo.On("GetClientByID", mock.Anything, int64(2)).Return(&models.Client{ID: 2, ReferrerID: ref(3)}, nil)
	repo.On("GetClientByID", mock.Anything, int64(3)).Return(&models.Client{ID: 3, ReferrerID: ref(4)}, nil)
	repo.On("GetClientByID", mock.Anything, int64(4)).Return(&models.Client{ID: 4}, nil)
	repo.On("CreditReferral", mock.Anything, mock.Anything).Return(nil).Times(3)

	result, err := d.Distribute(context.Background(), "pay-1")

	require.NoError(t, err)
	require.Len(t, result.Credits, 3)
	assert.False(t, result.AlreadyDistributed)

	assert.Equal(t, int64(2), result.Credits[0].ReferrerID)
	assert.Equal(t, 1, result.Credits[0].Level)
	assert.True(t, result.Credits[0].Amount.Equal(decimal.NewFromInt(100)))

	assert.Equal(t, int64(3), result.Credits[1].ReferrerID)
	assert.True(t, result.Credits[1].Amount.Equal(decimal.NewFromInt(50)))

	assert.Equal(t, int64(4), result.Credits[2].ReferrerID)
	assert.True(t, result.Credits[2].Amount.Equal(decimal.NewFromInt(20)))
	repo.AssertExpectations(t)
}

func TestDistribute_PersonalPercentOverridesLevelOne(t *testing.T) {
	repo := new(RepoMock)
	d := newDistributor(repo)

	personal := 25
	payment := &models.Payment{
		ID:       "pay-1",
		ClientID: 1,
		Amount:   decimal.NewFromInt(200),
		Status:   models.PaymentStatusPaid,
		Purpose:  models.PurposeTariff,
	}
	repo.On("GetPaymentByID", mock.Anything, "pay-1").Return(payment, nil)
	repo.On("ListCreditsByPayment", mock.Anything, "pay-1").Return(nil, nil)
	repo.On("GetClientByID", mock.Anything, int64(1)).
		Return(&models.Client{ID: 1, ReferrerID: ref(2), ReferralPercent: &personal}, nil)
	repo.On("GetClientByID", mock.Anything, int64(2)).Return(&models.Client{ID: 2}, nil)
	repo.On("CreditReferral", mock.Anything, mock.Anything).Return(nil).Once()

	result, err := d.Distribute(context.Background(), "pay-1")

	require.NoError(t, err)
	require.Len(t, result.Credits, 1)
	assert.Equal(t, 25, result.Credits[0].Percent)
	assert.True(t, result.Credits[0].Amount.Equal(decimal.NewFromInt(50)))
}

func TestDistribute_ChainStopsWithoutReferrer(t *testing.T) {
	repo := new(RepoMock)
	d := newDistributor(repo)

	payment := &models.Payment{
		ID:       "pay-1",
		ClientID: 1,
		Amount:   decimal.NewFromInt(100),
		Status:   models.PaymentStatusPaid,
		Purpose:  models.PurposeTariff,
	}
	repo.On("GetPaymentByID", mock.Anything, "pay-1").Return(payment, nil)
	repo.On("ListCreditsByPayment", mock.Anything, "pay-1").Return(nil, nil)
	repo.On("GetClientByID", mock.Anything, int64(1)).Return(&models.Client{ID: 1}, nil)

	result, err := d.Distribute(context.Background(), "pay-1")

	require.NoError(t, err)
	assert.Empty(t, result.Credits)
	repo.AssertNotCalled(t, "CreditReferral")
}

func TestDistribute_NotPaid(t *testing.T) {
	repo := new(RepoMock)
	d := newDistributor(repo)

	repo.On("GetPaymentByID", mock.Anything, "pay-1").
		Return(&models.Payment{ID: "pay-1", Status: models.PaymentStatusPending}, nil)

	_, err := d.Distribute(context.Background(), "pay-1")

	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestDistribute_BalanceTopUpSkipped(t *testing.T) {
	repo := new(RepoMock)
	d := newDistributor(repo)

	payment := &models.Payment{
		ID:          "pay-1",
		ClientID:    1,
		Amount:      decimal.NewFromInt(500),
		Status:      models.PaymentStatusPaid,
		Purpose:     models.PurposeTopUp,
		FromBalance: true,
	}
	repo.On("GetPaymentByID", mock.Anything, "pay-1").Return(payment, nil)

	result, err := d.Distribute(context.Background(), "pay-1")

	require.NoError(t, err)
	assert.Empty(t, result.Credits)
	repo.AssertNotCalled(t, "ListCreditsByPayment")
}

func TestDistribute_AlreadyDistributed(t *testing.T) {
	repo := new(RepoMock)
	d := newDistributor(repo)

	payment := &models.Payment{
		ID:       "pay-1",
		ClientID: 1,
		Amount:   decimal.NewFromInt(100),
		Status:   models.PaymentStatusPaid,
		Purpose:  models.PurposeTariff,
	}
	existing := []*models.ReferralCredit{{ID: 7, ReferrerID: 2, Level: 1}}
	repo.On("GetPaymentByID", mock.Anything, "pay-1").Return(payment, nil)
	repo.On("ListCreditsByPayment", mock.Anything, "pay-1").Return(existing, nil)

	result, err := d.Distribute(context.Background(), "pay-1")

	require.NoError(t, err)
	assert.True(t, result.AlreadyDistributed)
	assert.Equal(t, existing, result.Credits)
	repo.AssertNotCalled(t, "GetClientByID")
}

func TestDistribute_ConcurrentConflictRereads(t *testing.T) {
	repo := new(RepoMock)
	d := newDistributor(repo)

	payment := &models.Payment{
		ID:       "pay-1",
		ClientID: 1,
		Amount:   decimal.NewFromInt(100),
		Status:   models.PaymentStatusPaid,
		Purpose:  models.PurposeTariff,
	}
	winner := []*models.ReferralCredit{{ID: 9, ReferrerID: 2, Level: 1}}
	repo.On("GetPaymentByID", mock.Anything, "pay-1").Return(payment, nil)
	repo.On("ListCreditsByPayment", mock.Anything, "pay-1").Return(nil, nil).Once()
	repo.On("GetClientByID", mock.Anything, int64(1)).Return(&models.Client{ID: 1, ReferrerID: ref(2)}, nil)
	repo.On("GetClientByID", mock.Anything, int64(2)).Return(&models.Client{ID: 2}, nil)
	repo.On("CreditReferral", mock.Anything, mock.Anything).Return(errs.ErrConflict).Once()
	repo.On("ListCreditsByPayment", mock.Anything, "pay-1").Return(winner, nil).Once()

	result, err := d.Distribute(context.Background(), "pay-1")

	require.NoError(t, err)
	assert.True(t, result.AlreadyDistributed)
	assert.Equal(t, winner, result.Credits)
}
