package broadcast

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maksimkurganov/vpn-backoffice/internal/errs"
	"github.com/maksimkurganov/vpn-backoffice/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) ListEnabledRules(ctx context.Context) ([]*models.BroadcastRule, error) {
	args := m.Called(ctx)
	rules, _ := args.Get(0).([]*models.BroadcastRule)
	return rules, args.Error(1)
}

func (m *RepoMock) GetRuleByID(ctx context.Context, id int64) (*models.BroadcastRule, error) {
	args := m.Called(ctx, id)
	rule, _ := args.Get(0).(*models.BroadcastRule)
	return rule, args.Error(1)
}

func (m *RepoMock) ListBroadcastCandidates(ctx context.Context, rule *models.BroadcastRule) ([]*models.Client, error) {
	args := m.Called(ctx, rule)
	clients, _ := args.Get(0).([]*models.Client)
	return clients, args.Error(1)
}

func (m *RepoMock) InsertBroadcastLog(ctx context.Context, ruleID, clientID int64) (bool, error) {
	args := m.Called(ctx, ruleID, clientID)
	return args.Bool(0), args.Error(1)
}

type PanelMock struct{ mock.Mock }

func (m *PanelMock) GetSubscriberByUUID(ctx context.Context, uuid string) (*models.RemoteSubscriber, error) {
	args := m.Called(ctx, uuid)
	sub, _ := args.Get(0).(*models.RemoteSubscriber)
	return sub, args.Error(1)
}

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) PublishBroadcast(ctx context.Context, msg models.BroadcastMessage) error {
	return m.Called(ctx, msg).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func newEngine(repo *RepoMock, panel *PanelMock, pub *PublisherMock) *Engine {
	e := New(repo, panel, pub, newNoopLogger())
	e.now = func() time.Time { return time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC) }
	return e
}

func subID(id string) *string { return &id }

func TestRunRule_PublishesOncePerClient(t *testing.T) {
	repo := new(RepoMock)
	pub := new(PublisherMock)
	e := newEngine(repo, new(PanelMock), pub)

	rule := &models.BroadcastRule{
		ID: 1, Trigger: models.TriggerNoPayment, DelayDays: 3,
		Channel: "telegram", Message: "привет",
	}
	candidates := []*models.Client{
		{ID: 10, TelegramID: 100},
		{ID: 11, TelegramID: 101},
	}

	repo.On("GetRuleByID", mock.Anything, int64(1)).Return(rule, nil)
	repo.On("ListBroadcastCandidates", mock.Anything, rule).Return(candidates, nil)
	repo.On("InsertBroadcastLog", mock.Anything, int64(1), int64(10)).Return(true, nil).Once()
	repo.On("InsertBroadcastLog", mock.Anything, int64(1), int64(11)).Return(false, nil).Once()
	pub.On("PublishBroadcast", mock.Anything, models.BroadcastMessage{
		RuleID: 1, ClientID: 10, TelegramID: 100, Channel: "telegram", Text: "привет",
	}).Return(nil).Once()

	res, err := e.RunRule(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, 2, res.Candidates)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Skipped)
	pub.AssertExpectations(t)
}

func TestRunRule_ConcurrentRunConflicts(t *testing.T) {
	repo := new(RepoMock)
	e := newEngine(repo, new(PanelMock), new(PublisherMock))

	rule := &models.BroadcastRule{ID: 1, Trigger: models.TriggerNoPayment}
	repo.On("GetRuleByID", mock.Anything, int64(1)).Return(rule, nil)

	started := make(chan struct{})
	release := make(chan struct{})
	repo.On("ListBroadcastCandidates", mock.Anything, rule).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).Return(nil, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = e.RunRule(context.Background(), 1)
	}()

	<-started
	_, err := e.RunRule(context.Background(), 1)
	assert.ErrorIs(t, err, errs.ErrConflict)

	close(release)
	wg.Wait()
}

func TestRunRule_PanelErrorSkipsWithoutLogRow(t *testing.T) {
	repo := new(RepoMock)
	panel := new(PanelMock)
	pub := new(PublisherMock)
	e := newEngine(repo, panel, pub)

	rule := &models.BroadcastRule{ID: 2, Trigger: models.TriggerInactivity, DelayDays: 7}
	candidates := []*models.Client{{ID: 10, RemoteSubscriberID: subID("sub-10")}}

	repo.On("GetRuleByID", mock.Anything, int64(2)).Return(rule, nil)
	repo.On("ListBroadcastCandidates", mock.Anything, rule).Return(candidates, nil)
	panel.On("GetSubscriberByUUID", mock.Anything, "sub-10").
		Return(nil, errs.ErrRemoteUnavailable)

	res, err := e.RunRule(context.Background(), 2)

	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, res.Sent)
	repo.AssertNotCalled(t, "InsertBroadcastLog")
}

func TestRunRule_PublishFailureKeepsLogRow(t *testing.T) {
	repo := new(RepoMock)
	pub := new(PublisherMock)
	e := newEngine(repo, new(PanelMock), pub)

	rule := &models.BroadcastRule{ID: 3, Trigger: models.TriggerAfterRegistration, Channel: "telegram"}
	candidates := []*models.Client{{ID: 10, TelegramID: 100}}

	repo.On("GetRuleByID", mock.Anything, int64(3)).Return(rule, nil)
	repo.On("ListBroadcastCandidates", mock.Anything, rule).Return(candidates, nil)
	repo.On("InsertBroadcastLog", mock.Anything, int64(3), int64(10)).Return(true, nil).Once()
	pub.On("PublishBroadcast", mock.Anything, mock.Anything).Return(assert.AnError).Once()

	res, err := e.RunRule(context.Background(), 3)

	require.NoError(t, err)
	assert.Zero(t, res.Sent)
	repo.AssertExpectations(t)
}

func TestMatchesRemote(t *testing.T) {
	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	recent := now.AddDate(0, 0, -1)
	old := now.AddDate(0, 0, -30)

	tests := []struct {
		name string
		rule *models.BroadcastRule
		sub  *models.RemoteSubscriber
		want bool
	}{
		{
			name: "неактивность: давно не был онлайн",
			rule: &models.BroadcastRule{Trigger: models.TriggerInactivity, DelayDays: 7},
			sub:  &models.RemoteSubscriber{OnlineAt: &old},
			want: true,
		},
		{
			name: "неактивность: был недавно",
			rule: &models.BroadcastRule{Trigger: models.TriggerInactivity, DelayDays: 7},
			sub:  &models.RemoteSubscriber{OnlineAt: &recent},
			want: false,
		},
		{
			name: "неактивность: никогда не подключался",
			rule: &models.BroadcastRule{Trigger: models.TriggerInactivity, DelayDays: 7},
			sub:  &models.RemoteSubscriber{},
			want: true,
		},
		{
			name: "нет трафика",
			rule: &models.BroadcastRule{Trigger: models.TriggerNoTraffic, DelayDays: 3},
			sub:  &models.RemoteSubscriber{UsedTrafficBytes: 0},
			want: true,
		},
		{
			name: "трафик есть",
			rule: &models.BroadcastRule{Trigger: models.TriggerNoTraffic, DelayDays: 3},
			sub:  &models.RemoteSubscriber{UsedTrafficBytes: 1024},
			want: false,
		},
		{
			name: "триал не подключён",
			rule: &models.BroadcastRule{Trigger: models.TriggerTrialNotConnected, DelayDays: 1},
			sub:  &models.RemoteSubscriber{},
			want: true,
		},
		{
			name: "подписка истекла в окне",
			rule: &models.BroadcastRule{Trigger: models.TriggerSubscriptionExpired, DelayDays: 7},
			sub:  &models.RemoteSubscriber{ExpireAt: now.AddDate(0, 0, -2)},
			want: true,
		},
		{
			name: "подписка истекла слишком давно",
			rule: &models.BroadcastRule{Trigger: models.TriggerSubscriptionExpired, DelayDays: 7},
			sub:  &models.RemoteSubscriber{ExpireAt: now.AddDate(0, 0, -30)},
			want: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := new(RepoMock)
			panel := new(PanelMock)
			pub := new(PublisherMock)
			e := newEngine(repo, panel, pub)

			candidates := []*models.Client{{ID: 10, TelegramID: 100, RemoteSubscriberID: subID("sub-10")}}
			repo.On("GetRuleByID", mock.Anything, mock.Anything).Return(tc.rule, nil)
			repo.On("ListBroadcastCandidates", mock.Anything, tc.rule).Return(candidates, nil)
			panel.On("GetSubscriberByUUID", mock.Anything, "sub-10").Return(tc.sub, nil)
			repo.On("InsertBroadcastLog", mock.Anything, mock.Anything, mock.Anything).
				Return(true, nil).Maybe()
			pub.On("PublishBroadcast", mock.Anything, mock.Anything).Return(nil).Maybe()

			res, err := e.RunRule(context.Background(), tc.rule.ID)

			require.NoError(t, err)
			if tc.want {
				assert.Equal(t, 1, res.Sent)
			} else {
				assert.Equal(t, 1, res.Skipped)
			}
		})
	}
}

func TestMatchesRemote_NoStoredSubscriber(t *testing.T) {
	repo := new(RepoMock)
	panel := new(PanelMock)
	e := newEngine(repo, panel, new(PublisherMock))

	rule := &models.BroadcastRule{ID: 4, Trigger: models.TriggerNoTraffic, DelayDays: 3}
	repo.On("GetRuleByID", mock.Anything, int64(4)).Return(rule, nil)
	repo.On("ListBroadcastCandidates", mock.Anything, rule).
		Return([]*models.Client{{ID: 10}}, nil)

	res, err := e.RunRule(context.Background(), 4)

	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	panel.AssertNotCalled(t, "GetSubscriberByUUID")
}

func TestRunAllRules_FailureIsolation(t *testing.T) {
	repo := new(RepoMock)
	pub := new(PublisherMock)
	e := newEngine(repo, new(PanelMock), pub)

	broken := &models.BroadcastRule{ID: 1, Trigger: models.TriggerNoPayment, Enabled: true}
	healthy := &models.BroadcastRule{ID: 2, Trigger: models.TriggerAfterRegistration, Enabled: true}

	repo.On("ListEnabledRules", mock.Anything).
		Return([]*models.BroadcastRule{broken, healthy}, nil)
	repo.On("ListBroadcastCandidates", mock.Anything, broken).Return(nil, assert.AnError)
	repo.On("ListBroadcastCandidates", mock.Anything, healthy).
		Return([]*models.Client{{ID: 10, TelegramID: 100}}, nil)
	repo.On("InsertBroadcastLog", mock.Anything, int64(2), int64(10)).Return(true, nil)
	pub.On("PublishBroadcast", mock.Anything, mock.Anything).Return(nil)

	results, err := e.RunAllRules(context.Background())

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(2), results[0].RuleID)
	assert.Equal(t, 1, results[0].Sent)
}
