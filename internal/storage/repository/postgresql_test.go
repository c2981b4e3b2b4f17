package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maksimkurganov/vpn-backoffice/internal/errs"
	"github.com/maksimkurganov/vpn-backoffice/internal/models"
)

func TestMarkPaid_Idempotent(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)
	ctx := context.Background()

	clientID := factory.CreateClient(t, 100, decimal.Zero)
	paymentID := factory.CreatePendingPayment(t, clientID, decimal.NewFromInt(300), "tariff")

	flipped, err := storage.MarkPaid(ctx, paymentID)
	require.NoError(t, err)
	assert.True(t, flipped)

	// Повтор вебхука: статус уже paid, переход не выполняется.
	flipped, err = storage.MarkPaid(ctx, paymentID)
	require.NoError(t, err)
	assert.False(t, flipped)
	assert.Equal(t, "paid", factory.PaymentStatus(t, paymentID))
}

func TestMarkPaidWithBalanceDebit(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)
	ctx := context.Background()

	clientID := factory.CreateClient(t, 100, decimal.NewFromInt(500))
	paymentID := factory.CreatePendingPayment(t, clientID, decimal.NewFromInt(300), "tariff")

	flipped, err := storage.MarkPaidWithBalanceDebit(ctx, paymentID, clientID, decimal.NewFromInt(300))
	require.NoError(t, err)
	assert.True(t, flipped)
	assert.True(t, factory.Balance(t, clientID).Equal(decimal.NewFromInt(200)))

	// Повтор не списывает второй раз.
	flipped, err = storage.MarkPaidWithBalanceDebit(ctx, paymentID, clientID, decimal.NewFromInt(300))
	require.NoError(t, err)
	assert.False(t, flipped)
	assert.True(t, factory.Balance(t, clientID).Equal(decimal.NewFromInt(200)))
}

func TestMarkPaidWithBalanceDebit_InsufficientFunds(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)
	ctx := context.Background()

	clientID := factory.CreateClient(t, 100, decimal.NewFromInt(100))
	paymentID := factory.CreatePendingPayment(t, clientID, decimal.NewFromInt(300), "tariff")

	_, err := storage.MarkPaidWithBalanceDebit(ctx, paymentID, clientID, decimal.NewFromInt(300))
	assert.ErrorIs(t, err, errs.ErrInsufficientFunds)

	// Транзакция откатилась целиком: ни статус, ни баланс не изменились.
	assert.Equal(t, "pending", factory.PaymentStatus(t, paymentID))
	assert.True(t, factory.Balance(t, clientID).Equal(decimal.NewFromInt(100)))
}

func TestMarkPaidWithTopUp(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)
	ctx := context.Background()

	clientID := factory.CreateClient(t, 100, decimal.NewFromInt(50))
	paymentID := factory.CreatePendingPayment(t, clientID, decimal.NewFromInt(500), "top_up")

	flipped, err := storage.MarkPaidWithTopUp(ctx, paymentID, clientID, decimal.NewFromInt(500))
	require.NoError(t, err)
	assert.True(t, flipped)
	assert.True(t, factory.Balance(t, clientID).Equal(decimal.NewFromInt(550)))

	flipped, err = storage.MarkPaidWithTopUp(ctx, paymentID, clientID, decimal.NewFromInt(500))
	require.NoError(t, err)
	assert.False(t, flipped)
	assert.True(t, factory.Balance(t, clientID).Equal(decimal.NewFromInt(550)))
}

func TestMarkTrialUsed_OnlyOnce(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)
	ctx := context.Background()

	clientID := factory.CreateClient(t, 100, decimal.Zero)

	require.NoError(t, storage.MarkTrialUsed(ctx, clientID))
	assert.ErrorIs(t, storage.MarkTrialUsed(ctx, clientID), errs.ErrConflict)
}

func TestSetRemoteSubscriberID_WriteOnce(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)
	ctx := context.Background()

	clientID := factory.CreateClient(t, 100, decimal.Zero)

	require.NoError(t, storage.SetRemoteSubscriberID(ctx, clientID, "first-uuid"))
	require.NoError(t, storage.SetRemoteSubscriberID(ctx, clientID, "second-uuid"))

	client, err := storage.GetClientByID(ctx, clientID)
	require.NoError(t, err)
	require.NotNil(t, client.RemoteSubscriberID)
	assert.Equal(t, "first-uuid", *client.RemoteSubscriberID)
}

func TestInsertCodeUsage_LastSlotRace(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)
	ctx := context.Background()

	first := factory.CreateClient(t, 100, decimal.Zero)
	second := factory.CreateClient(t, 101, decimal.Zero)
	codeID := factory.CreatePromoCode(t, "LAST", "discount", 1, 0)

	// Два клиента бьются за последний слот: блокировка строки промокода
	// гарантирует ровно одну запись.
	var wg sync.WaitGroup
	errsCh := make(chan error, 2)
	for _, clientID := range []int64{first, second} {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			errsCh <- storage.InsertCodeUsage(ctx, codeID, id)
		}(clientID)
	}
	wg.Wait()
	close(errsCh)

	var okCount, conflictCount int
	for err := range errsCh {
		switch {
		case err == nil:
			okCount++
		case assert.ErrorIs(t, err, errs.ErrConflict):
			conflictCount++
		}
	}
	assert.Equal(t, 1, okCount)
	assert.Equal(t, 1, conflictCount)

	total, _, err := storage.CountCodeUsages(ctx, codeID, first)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestInsertCodeUsage_PerClientLimit(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)
	ctx := context.Background()

	clientID := factory.CreateClient(t, 100, decimal.Zero)
	codeID := factory.CreatePromoCode(t, "ONCE", "free_days", 0, 1)

	require.NoError(t, storage.InsertCodeUsage(ctx, codeID, clientID))
	assert.ErrorIs(t, storage.InsertCodeUsage(ctx, codeID, clientID), errs.ErrConflict)
}

func TestInsertGroupActivation_UniquePair(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)
	ctx := context.Background()

	clientID := factory.CreateClient(t, 100, decimal.Zero)
	groupID := factory.CreatePromoGroup(t, "LAUNCH", 0)

	activated, err := storage.HasGroupActivation(ctx, groupID, clientID)
	require.NoError(t, err)
	assert.False(t, activated)

	require.NoError(t, storage.InsertGroupActivation(ctx, groupID, clientID))
	assert.ErrorIs(t, storage.InsertGroupActivation(ctx, groupID, clientID), errs.ErrConflict)

	activated, err = storage.HasGroupActivation(ctx, groupID, clientID)
	require.NoError(t, err)
	assert.True(t, activated)

	other := factory.CreateClient(t, 101, decimal.Zero)
	activated, err = storage.HasGroupActivation(ctx, groupID, other)
	require.NoError(t, err)
	assert.False(t, activated)
}

func TestInsertBroadcastLog_Dedupe(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)
	ctx := context.Background()

	clientID := factory.CreateClient(t, 100, decimal.Zero)
	ruleID := factory.CreateBroadcastRule(t, "no_payment", 3, true)

	inserted, err := storage.InsertBroadcastLog(ctx, ruleID, clientID)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = storage.InsertBroadcastLog(ctx, ruleID, clientID)
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestCreditReferral_UniqueLevel(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)
	ctx := context.Background()

	referrerID := factory.CreateClient(t, 100, decimal.Zero)
	payerID := factory.CreateReferredClient(t, 101, referrerID)
	paymentID := factory.CreatePendingPayment(t, payerID, decimal.NewFromInt(1000), "tariff")

	credit := &models.ReferralCredit{
		ReferrerID:      referrerID,
		ClientID:        payerID,
		Level:           1,
		Percent:         10,
		Amount:          decimal.NewFromInt(100),
		SourcePaymentID: paymentID,
	}
	require.NoError(t, storage.CreditReferral(ctx, credit))

	// Повторная раздача того же уровня по тому же платежу отсечена.
	assert.ErrorIs(t, storage.CreditReferral(ctx, credit), errs.ErrConflict)

	rows, err := storage.ListCreditsByPayment(ctx, paymentID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Amount.Equal(decimal.NewFromInt(100)))
}

func TestOperators(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	id, err := storage.CreateOperator(ctx, "admin", "hash", "admin")
	require.NoError(t, err)
	assert.Positive(t, id)

	operator, err := storage.GetOperatorByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, "admin", operator.Username)
	assert.Equal(t, "admin", operator.Role)

	_, err = storage.CreateOperator(ctx, "admin", "hash2", "operator")
	assert.ErrorIs(t, err, errs.ErrConflict)

	_, err = storage.GetOperatorByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestListPaymentsByClient_Pagination(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)
	ctx := context.Background()

	clientID := factory.CreateClient(t, 100, decimal.Zero)
	for range 5 {
		factory.CreatePendingPayment(t, clientID, decimal.NewFromInt(100), "tariff")
	}

	page, err := storage.ListPaymentsByClient(ctx, clientID, 3, 0)
	require.NoError(t, err)
	assert.Len(t, page, 3)

	rest, err := storage.ListPaymentsByClient(ctx, clientID, 3, 3)
	require.NoError(t, err)
	assert.Len(t, rest, 2)
}
