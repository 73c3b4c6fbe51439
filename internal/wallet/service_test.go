package wallet_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/commercepay/e-wallet-service/internal/events"
	"github.com/commercepay/e-wallet-service/internal/models"
	"github.com/commercepay/e-wallet-service/internal/storage/memory"
	"github.com/commercepay/e-wallet-service/internal/wallet"
)

type capturingPublisher struct {
	mu     sync.Mutex
	events []events.WalletEvent
}

func (p *capturingPublisher) Publish(_ context.Context, ev events.WalletEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *capturingPublisher) Close() error { return nil }

func newService(t *testing.T) (*wallet.Service, *memory.Store, *capturingPublisher) {
	t.Helper()
	store := memory.NewStore()
	publisher := &capturingPublisher{}
	return wallet.NewService(store, publisher, zap.NewNop()), store, publisher
}

func TestCreditIncreasesBalanceAndAppendsEntry(t *testing.T) {
	svc, store, publisher := newService(t)
	store.CreateAccount(1, 50)

	balance, err := svc.Credit(context.Background(), 1, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(150), balance)

	entries, err := store.Entries(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(100), entries[0].Amount)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, events.TypeCredited, publisher.events[0].Type)
	assert.Equal(t, int64(150), publisher.events[0].Balance)
}

func TestCreditRejectsNonPositiveAmount(t *testing.T) {
	svc, store, _ := newService(t)
	store.CreateAccount(1, 50)

	for _, amount := range []int64{0, -1, -100} {
		_, err := svc.Credit(context.Background(), 1, amount)
		assert.ErrorIs(t, err, wallet.ErrInvalidAmount)
	}

	balance, err := svc.Balance(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)

	entries, err := svc.History(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCreditUnknownAccount(t *testing.T) {
	svc, _, publisher := newService(t)

	_, err := svc.Credit(context.Background(), 42, 100)
	assert.ErrorIs(t, err, wallet.ErrAccountNotFound)
	assert.Empty(t, publisher.events)
}

func TestTransferMovesMoneyAndPairsEntries(t *testing.T) {
	svc, store, publisher := newService(t)
	store.CreateAccount(1, 100)
	store.CreateAccount(2, 0)

	senderBalance, err := svc.Transfer(context.Background(), models.Transfer{
		SenderID: 1, ReceiverID: 2, Amount: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(70), senderBalance)

	balance, err := svc.Balance(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(70), balance)

	balance, err = svc.Balance(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(30), balance)

	senderEntries, err := svc.History(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, senderEntries, 1)
	assert.Equal(t, int64(-30), senderEntries[0].Amount)

	receiverEntries, err := svc.History(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, receiverEntries, 1)
	assert.Equal(t, int64(30), receiverEntries[0].Amount)

	// Both legs share one logical timestamp and conserve value.
	assert.True(t, senderEntries[0].Timestamp.Equal(receiverEntries[0].Timestamp))
	assert.Zero(t, senderEntries[0].Amount+receiverEntries[0].Amount)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, events.TypeTransferred, publisher.events[0].Type)
	assert.Equal(t, int64(2), publisher.events[0].CounterpartyID)
}

func TestTransferInsufficientFundsLeavesNoTrace(t *testing.T) {
	svc, store, publisher := newService(t)
	store.CreateAccount(1, 10)
	store.CreateAccount(2, 5)

	_, err := svc.Transfer(context.Background(), models.Transfer{
		SenderID: 1, ReceiverID: 2, Amount: 11,
	})
	assert.ErrorIs(t, err, wallet.ErrInsufficientFunds)

	balance, err := svc.Balance(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)

	balance, err = svc.Balance(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), balance)

	for _, id := range []int64{1, 2} {
		entries, err := svc.History(context.Background(), id)
		require.NoError(t, err)
		assert.Empty(t, entries)
	}
	assert.Empty(t, publisher.events)
}

func TestTransferMissingReceiverRollsBackDebit(t *testing.T) {
	svc, store, _ := newService(t)
	store.CreateAccount(1, 100)

	_, err := svc.Transfer(context.Background(), models.Transfer{
		SenderID: 1, ReceiverID: 999, Amount: 30,
	})
	assert.ErrorIs(t, err, wallet.ErrAccountNotFound)

	// No partial debit may survive the abort.
	balance, err := svc.Balance(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)

	entries, err := svc.History(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTransferRejectsNonPositiveAmount(t *testing.T) {
	svc, store, _ := newService(t)
	store.CreateAccount(1, 100)
	store.CreateAccount(2, 0)

	_, err := svc.Transfer(context.Background(), models.Transfer{SenderID: 1, ReceiverID: 2, Amount: 0})
	assert.ErrorIs(t, err, wallet.ErrInvalidAmount)
	_, err = svc.Transfer(context.Background(), models.Transfer{SenderID: 1, ReceiverID: 2, Amount: -5})
	assert.ErrorIs(t, err, wallet.ErrInvalidAmount)
}

func TestTransferToSelfNetsToZero(t *testing.T) {
	svc, store, _ := newService(t)
	store.CreateAccount(1, 100)

	balance, err := svc.Transfer(context.Background(), models.Transfer{
		SenderID: 1, ReceiverID: 1, Amount: 40,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(60), balance)

	final, err := svc.Balance(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), final)

	entries, err := svc.History(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestConcurrentTransfersConvergeWithoutLostUpdates(t *testing.T) {
	svc, store, _ := newService(t)

	const n = 50
	store.CreateAccount(1, n)
	store.CreateAccount(2, 0)

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Transfer(context.Background(), models.Transfer{
				SenderID: 1, ReceiverID: 2, Amount: 1,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	balance, err := svc.Balance(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	balance, err = svc.Balance(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(n), balance)

	senderEntries, err := svc.History(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, senderEntries, n)

	receiverEntries, err := svc.History(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, receiverEntries, n)
}

func TestOppositeDirectionTransfersDoNotDeadlock(t *testing.T) {
	svc, store, _ := newService(t)
	store.CreateAccount(1, 1000)
	store.CreateAccount(2, 1000)

	const pairs = 20
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, pairs*2)
	for i := 0; i < pairs; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.Transfer(ctx, models.Transfer{SenderID: 1, ReceiverID: 2, Amount: 1})
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := svc.Transfer(ctx, models.Transfer{SenderID: 2, ReceiverID: 1, Amount: 1})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// Equal flow in both directions nets to the starting balances.
	for _, id := range []int64{1, 2} {
		balance, err := svc.Balance(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), balance)

		entries, err := svc.History(ctx, id)
		require.NoError(t, err)
		assert.Len(t, entries, pairs*2)
	}
}

func TestHistoryOrderedNewestFirst(t *testing.T) {
	svc, store, _ := newService(t)
	store.CreateAccount(1, 0)

	for _, amount := range []int64{10, 20, 30} {
		_, err := svc.Credit(context.Background(), 1, amount)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	entries, err := svc.History(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, int64(30), entries[0].Amount)
	assert.Equal(t, int64(10), entries[2].Amount)
	for i := 1; i < len(entries); i++ {
		assert.False(t, entries[i-1].Timestamp.Before(entries[i].Timestamp))
	}
}

func TestHistoryUnknownAccountIsEmpty(t *testing.T) {
	svc, _, _ := newService(t)

	entries, err := svc.History(context.Background(), 404)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
