package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloud-wave-best-zizon/pharmacy-pos/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testPOS struct {
	svc       *POSService
	catalog   *fakeCatalog
	dispenser *fakeDispenser
	creds     *fakeCredentials
	journal   *fakeJournal
	publisher *fakePublisher
	history   *fakeHistory
	directory *fakeDirectory
}

func newTestPOS(t *testing.T) *testPOS {
	t.Helper()
	logger := zap.NewNop()
	tp := &testPOS{
		catalog:   &fakeCatalog{products: testProducts()},
		dispenser: newFakeDispenser(),
		creds:     &fakeCredentials{},
		journal:   &fakeJournal{},
		publisher: &fakePublisher{},
		history:   &fakeHistory{},
	}
	tp.directory = &fakeDirectory{patients: map[string]domain.Patient{"12345678-9": testPatient()}}
	cache := NewSnapshotCache(tp.catalog, logger)
	_, err := cache.Refresh(context.Background())
	require.NoError(t, err)

	committer := NewCommitter(tp.dispenser, tp.dispenser, tp.creds, newMemoryLedger(), logger)
	tp.svc = NewPOSService(cache, tp.directory, tp.history, committer, NewReconciler(cache, logger), logger)
	tp.svc.SetSaleJournal(tp.journal)
	tp.svc.SetSalePublisher(tp.publisher)
	return tp
}

func TestAddToCart_UsesSnapshotPriceAndCeiling(t *testing.T) {
	tp := newTestPOS(t)
	sess := tp.svc.OpenSession()

	view, err := tp.svc.AddToCart(sess.SessionID, 3, 2)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, "Losartan 50mg", view.Lines[0].Name)
	assert.Equal(t, 2, view.Lines[0].StockCeiling)
	assert.Equal(t, "10400.00", view.Total.StringFixed(2))

	_, err = tp.svc.AddToCart(sess.SessionID, 3, 1)
	assert.ErrorIs(t, err, domain.ErrStockExceeded)

	_, err = tp.svc.AddToCart(sess.SessionID, 99, 1)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	_, err = tp.svc.AddToCart("missing", 1, 1)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestCheckout_RefreshesSnapshotExactlyOnceForEveryOutcome(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(tp *testPOS, sessionID string)
		wantErr error
		full    bool
	}{
		{
			name: "full commit",
			setup: func(tp *testPOS, id string) {
				_, _ = tp.svc.BindPatient(context.Background(), id, "12345678-9")
				_, _ = tp.svc.AddToCart(id, 1, 1)
				_, _ = tp.svc.AddToCart(id, 2, 1)
			},
			full: true,
		},
		{
			name: "partial failure",
			setup: func(tp *testPOS, id string) {
				tp.dispenser.reject[2] = errStockGone
				_, _ = tp.svc.BindPatient(context.Background(), id, "12345678-9")
				_, _ = tp.svc.AddToCart(id, 1, 1)
				_, _ = tp.svc.AddToCart(id, 2, 1)
			},
			wantErr: domain.ErrLineCommitFailed,
		},
		{
			name: "empty cart",
			setup: func(tp *testPOS, id string) {
				_, _ = tp.svc.BindPatient(context.Background(), id, "12345678-9")
			},
			wantErr: domain.ErrPreconditionFailed,
		},
		{
			name: "no patient",
			setup: func(tp *testPOS, id string) {
				_, _ = tp.svc.AddToCart(id, 1, 1)
			},
			wantErr: domain.ErrPreconditionFailed,
		},
		{
			name: "authentication failure",
			setup: func(tp *testPOS, id string) {
				tp.creds.err = errors.New("invalid_client")
				_, _ = tp.svc.BindPatient(context.Background(), id, "12345678-9")
				_, _ = tp.svc.AddToCart(id, 1, 1)
			},
			wantErr: domain.ErrAuthenticationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp := newTestPOS(t)
			sess := tp.svc.OpenSession()
			tt.setup(tp, sess.SessionID)
			before := tp.catalog.callCount()

			res, err := tp.svc.Checkout(context.Background(), sess.SessionID, "auth0|seller")
			require.NoError(t, err)

			assert.Equal(t, before+1, tp.catalog.callCount())
			assert.NoError(t, res.ReconciliationErr)
			assert.Equal(t, tt.full, res.Transaction.FullyCommitted)
			if tt.wantErr != nil {
				assert.ErrorIs(t, res.Transaction.Err, tt.wantErr)
			} else {
				assert.NoError(t, res.Transaction.Err)
			}
		})
	}
}

func TestCheckout_ReconciliationFailureIsSeparate(t *testing.T) {
	tp := newTestPOS(t)
	sess := tp.svc.OpenSession()
	_, err := tp.svc.BindPatient(context.Background(), sess.SessionID, "12345678-9")
	require.NoError(t, err)
	_, err = tp.svc.AddToCart(sess.SessionID, 1, 2)
	require.NoError(t, err)

	tp.catalog.set(nil, errors.New("inventory unreachable"))
	res, err := tp.svc.Checkout(context.Background(), sess.SessionID, "auth0|seller")

	require.NoError(t, err)
	assert.True(t, res.Transaction.FullyCommitted)
	assert.NoError(t, res.Transaction.Err)
	assert.ErrorIs(t, res.ReconciliationErr, domain.ErrSnapshotUnavailable)
	assert.True(t, tp.svc.Snapshot().Stale)
}

func TestCheckout_FullCommitClearsCartAndBinding(t *testing.T) {
	tp := newTestPOS(t)
	sess := tp.svc.OpenSession()
	_, err := tp.svc.BindPatient(context.Background(), sess.SessionID, "12345678-9")
	require.NoError(t, err)
	_, err = tp.svc.AddToCart(sess.SessionID, 1, 1)
	require.NoError(t, err)

	_, err = tp.svc.Checkout(context.Background(), sess.SessionID, "auth0|seller")
	require.NoError(t, err)

	view, err := tp.svc.GetSession(sess.SessionID)
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
	assert.Nil(t, view.Patient)
	assert.False(t, view.Committing)
}

func TestCheckout_PartialFailureKeepsBindingForRetry(t *testing.T) {
	tp := newTestPOS(t)
	tp.dispenser.reject[2] = errStockGone
	sess := tp.svc.OpenSession()
	_, err := tp.svc.BindPatient(context.Background(), sess.SessionID, "12345678-9")
	require.NoError(t, err)
	_, _ = tp.svc.AddToCart(sess.SessionID, 1, 1)
	_, _ = tp.svc.AddToCart(sess.SessionID, 2, 1)

	_, err = tp.svc.Checkout(context.Background(), sess.SessionID, "auth0|seller")
	require.NoError(t, err)

	view, _ := tp.svc.GetSession(sess.SessionID)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, int64(2), view.Lines[0].ProductID)
	require.NotNil(t, view.Patient)

	delete(tp.dispenser.reject, 2)
	res, err := tp.svc.Checkout(context.Background(), sess.SessionID, "auth0|seller")
	require.NoError(t, err)
	assert.True(t, res.Transaction.FullyCommitted)
	assert.Equal(t, 3, tp.dispenser.callCount())
}

func TestCheckout_JournalsAndPublishesAttemptedSales(t *testing.T) {
	tp := newTestPOS(t)
	tp.dispenser.reject[2] = errStockGone
	sess := tp.svc.OpenSession()
	_, _ = tp.svc.BindPatient(context.Background(), sess.SessionID, "12345678-9")
	_, _ = tp.svc.AddToCart(sess.SessionID, 1, 2)
	_, _ = tp.svc.AddToCart(sess.SessionID, 2, 1)

	res, err := tp.svc.Checkout(context.Background(), sess.SessionID, "auth0|seller")
	require.NoError(t, err)

	require.Len(t, tp.journal.sales, 1)
	sale := tp.journal.sales[0]
	assert.Equal(t, res.Transaction.TransactionID, sale.SaleID)
	assert.Equal(t, "auth0|seller", sale.SellerID)
	assert.Equal(t, "3980.00", sale.Total)
	assert.False(t, sale.FullyCommitted)
	require.Len(t, sale.Lines, 2)
	assert.Equal(t, domain.LineFailed, sale.Lines[1].Status)
	require.Len(t, tp.publisher.sales, 1)
}

func TestCheckout_PreconditionFailureIsNotJournaled(t *testing.T) {
	tp := newTestPOS(t)
	sess := tp.svc.OpenSession()

	_, err := tp.svc.Checkout(context.Background(), sess.SessionID, "auth0|seller")
	require.NoError(t, err)

	assert.Empty(t, tp.journal.sales)
	assert.Empty(t, tp.publisher.sales)
}

func TestCheckout_JournalFailureDoesNotChangeResult(t *testing.T) {
	tp := newTestPOS(t)
	tp.journal.err = errors.New("dynamodb throttled")
	sess := tp.svc.OpenSession()
	_, _ = tp.svc.BindPatient(context.Background(), sess.SessionID, "12345678-9")
	_, _ = tp.svc.AddToCart(sess.SessionID, 1, 1)

	res, err := tp.svc.Checkout(context.Background(), sess.SessionID, "auth0|seller")

	require.NoError(t, err)
	assert.True(t, res.Transaction.FullyCommitted)
}

func TestCheckout_RejectsMutationsWhileCommitting(t *testing.T) {
	tp := newTestPOS(t)
	tp.dispenser.block = make(chan struct{})
	sess := tp.svc.OpenSession()
	_, _ = tp.svc.BindPatient(context.Background(), sess.SessionID, "12345678-9")
	_, _ = tp.svc.AddToCart(sess.SessionID, 1, 1)

	done := make(chan *CheckoutResult)
	go func() {
		res, _ := tp.svc.Checkout(context.Background(), sess.SessionID, "auth0|seller")
		done <- res
	}()

	require.Eventually(t, func() bool {
		view, _ := tp.svc.GetSession(sess.SessionID)
		return view.Committing
	}, time.Second, 5*time.Millisecond)

	_, err := tp.svc.AddToCart(sess.SessionID, 2, 1)
	assert.ErrorIs(t, err, domain.ErrCommitInProgress)
	_, err = tp.svc.SetQuantity(sess.SessionID, 1, 2)
	assert.ErrorIs(t, err, domain.ErrCommitInProgress)
	_, err = tp.svc.Checkout(context.Background(), sess.SessionID, "auth0|seller")
	assert.ErrorIs(t, err, domain.ErrCommitInProgress)
	assert.ErrorIs(t, tp.svc.ClearPatient(sess.SessionID), domain.ErrCommitInProgress)
	assert.ErrorIs(t, tp.svc.CloseSession(sess.SessionID), domain.ErrCommitInProgress)

	close(tp.dispenser.block)
	res := <-done
	require.NotNil(t, res)
	assert.True(t, res.Transaction.FullyCommitted)

	_, err = tp.svc.AddToCart(sess.SessionID, 2, 1)
	assert.NoError(t, err)
}

func TestCheckout_WaitsForBindInFlight(t *testing.T) {
	tp := newTestPOS(t)
	other := domain.Patient{PatientID: 77, Name: "Luis Soto", RUT: "98765432-1", BirthDate: "1975-01-20"}
	tp.directory.patients[other.RUT] = other

	sess := tp.svc.OpenSession()
	_, err := tp.svc.BindPatient(context.Background(), sess.SessionID, "12345678-9")
	require.NoError(t, err)
	_, _ = tp.svc.AddToCart(sess.SessionID, 1, 1)

	release := make(chan struct{})
	tp.directory.mu.Lock()
	tp.directory.block = release
	tp.directory.mu.Unlock()

	bound := make(chan error, 1)
	go func() {
		_, err := tp.svc.BindPatient(context.Background(), sess.SessionID, other.RUT)
		bound <- err
	}()
	require.Eventually(t, func() bool { return tp.directory.callCount() == 2 }, time.Second, 5*time.Millisecond)

	done := make(chan *CheckoutResult, 1)
	go func() {
		res, _ := tp.svc.Checkout(context.Background(), sess.SessionID, "auth0|seller")
		done <- res
	}()
	assert.Never(t, func() bool { return len(done) > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	close(release)
	require.NoError(t, <-bound)
	res := <-done
	require.NotNil(t, res)

	assert.True(t, res.Transaction.FullyCommitted)
	assert.Equal(t, other.PatientID, res.Transaction.PatientID)
	for _, req := range tp.dispenser.requests {
		assert.Equal(t, other.PatientID, req.PatientID)
	}
}

func TestCloseSession(t *testing.T) {
	tp := newTestPOS(t)
	sess := tp.svc.OpenSession()

	require.NoError(t, tp.svc.CloseSession(sess.SessionID))

	_, err := tp.svc.GetSession(sess.SessionID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRecentDispensationAlert(t *testing.T) {
	tp := newTestPOS(t)
	tp.history.alert = &domain.DispensationAlert{Alert: true, Message: "retirado 1 vez"}
	tp.svc.SetAlertWindowDays(15)
	sess := tp.svc.OpenSession()

	_, err := tp.svc.RecentDispensationAlert(context.Background(), sess.SessionID, 1)
	assert.ErrorIs(t, err, domain.ErrPreconditionFailed)

	_, err = tp.svc.BindPatient(context.Background(), sess.SessionID, "12345678-9")
	require.NoError(t, err)
	alert, err := tp.svc.RecentDispensationAlert(context.Background(), sess.SessionID, 1)
	require.NoError(t, err)
	assert.True(t, alert.Alert)
	assert.Equal(t, 15, tp.history.days)
}

func TestSale_ReadsJournal(t *testing.T) {
	tp := newTestPOS(t)
	sess := tp.svc.OpenSession()
	_, _ = tp.svc.BindPatient(context.Background(), sess.SessionID, "12345678-9")
	_, _ = tp.svc.AddToCart(sess.SessionID, 1, 1)

	res, err := tp.svc.Checkout(context.Background(), sess.SessionID, "auth0|seller")
	require.NoError(t, err)

	sale, err := tp.svc.Sale(context.Background(), res.Transaction.TransactionID)
	require.NoError(t, err)
	assert.True(t, sale.FullyCommitted)

	_, err = tp.svc.Sale(context.Background(), "unknown")
	assert.ErrorIs(t, err, domain.ErrSaleNotFound)
}
