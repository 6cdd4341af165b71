package service

import (
	"context"
	"sync"
	"time"

	"github.com/cloud-wave-best-zizon/pharmacy-pos/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Session is one point-of-sale cart session. While a commit is outstanding
// every mutation and a second commit are refused.
type Session struct {
	ID        string
	CreatedAt time.Time

	cart    *domain.Cart
	binding *PatientBinding

	// bindMu serializes binding changes with the start of a commit, so a
	// binding never lands after the commit has read it.
	bindMu sync.Mutex

	mu         sync.Mutex
	committing bool
}

type CheckoutResult struct {
	Transaction       *domain.TransactionResult
	ReconciliationErr error
}

type POSService struct {
	cache      *SnapshotCache
	directory  PatientDirectory
	history    DispensationHistory
	committer  *Committer
	reconciler *Reconciler
	logger     *zap.Logger

	journal         SaleJournal
	publisher       SalePublisher
	alertWindowDays int

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewPOSService(cache *SnapshotCache, directory PatientDirectory, history DispensationHistory, committer *Committer, reconciler *Reconciler, logger *zap.Logger) *POSService {
	return &POSService{
		cache:           cache,
		directory:       directory,
		history:         history,
		committer:       committer,
		reconciler:      reconciler,
		logger:          logger,
		alertWindowDays: 30,
		sessions:        make(map[string]*Session),
	}
}

func (s *POSService) SetSaleJournal(j SaleJournal) {
	s.journal = j
}

func (s *POSService) SetSalePublisher(p SalePublisher) {
	s.publisher = p
}

func (s *POSService) SetAlertWindowDays(days int) {
	if days > 0 {
		s.alertWindowDays = days
	}
}

func (s *POSService) OpenSession() domain.SessionView {
	sess := &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		cart:      domain.NewCart(),
		binding:   NewPatientBinding(s.directory, s.logger),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.logger.Info("Session opened", zap.String("session_id", sess.ID))
	return s.view(sess)
}

// CloseSession abandons the session. Lines already committed stay committed.
func (s *POSService) CloseSession(sessionID string) error {
	sess, err := s.session(sessionID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.committing {
		return domain.ErrCommitInProgress
	}
	sess.cart.Clear()
	sess.binding.Clear()

	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	s.logger.Info("Session closed", zap.String("session_id", sessionID))
	return nil
}

func (s *POSService) GetSession(sessionID string) (domain.SessionView, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return domain.SessionView{}, err
	}
	return s.view(sess), nil
}

// AddToCart validates against the snapshot's last known stock and price.
func (s *POSService) AddToCart(sessionID string, productID int64, quantity int) (domain.SessionView, error) {
	product, ok := s.cache.Lookup(productID)
	if !ok {
		return domain.SessionView{}, domain.ErrProductNotFound
	}
	return s.mutate(sessionID, func(cart *domain.Cart) error {
		return cart.AddOrIncrement(productID, quantity, product.Price, product.Stock)
	})
}

func (s *POSService) SetQuantity(sessionID string, productID int64, quantity int) (domain.SessionView, error) {
	return s.mutate(sessionID, func(cart *domain.Cart) error {
		return cart.SetQuantity(productID, quantity)
	})
}

func (s *POSService) RemoveFromCart(sessionID string, productID int64) (domain.SessionView, error) {
	return s.mutate(sessionID, func(cart *domain.Cart) error {
		cart.Remove(productID)
		return nil
	})
}

func (s *POSService) mutate(sessionID string, fn func(cart *domain.Cart) error) (domain.SessionView, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return domain.SessionView{}, err
	}

	sess.mu.Lock()
	if sess.committing {
		sess.mu.Unlock()
		return domain.SessionView{}, domain.ErrCommitInProgress
	}
	err = fn(sess.cart)
	sess.mu.Unlock()
	if err != nil {
		return domain.SessionView{}, err
	}
	return s.view(sess), nil
}

func (s *POSService) BindPatient(ctx context.Context, sessionID, rut string) (*domain.Patient, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	sess.bindMu.Lock()
	defer sess.bindMu.Unlock()
	if sess.isCommitting() {
		return nil, domain.ErrCommitInProgress
	}
	return sess.binding.Bind(ctx, rut)
}

func (s *POSService) ClearPatient(sessionID string) error {
	sess, err := s.session(sessionID)
	if err != nil {
		return err
	}

	sess.bindMu.Lock()
	defer sess.bindMu.Unlock()
	if sess.isCommitting() {
		return domain.ErrCommitInProgress
	}
	sess.binding.Clear()
	return nil
}

// Checkout commits the session's cart and then always reconciles the
// snapshot. The reconciliation error is returned beside the transaction.
func (s *POSService) Checkout(ctx context.Context, sessionID, sellerID string) (*CheckoutResult, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	sess.bindMu.Lock()
	sess.mu.Lock()
	if sess.committing {
		sess.mu.Unlock()
		sess.bindMu.Unlock()
		return nil, domain.ErrCommitInProgress
	}
	sess.committing = true
	var patient *domain.Patient
	if p, ok := sess.binding.Current(); ok {
		patient = &p
	}
	sess.mu.Unlock()
	sess.bindMu.Unlock()

	defer func() {
		sess.mu.Lock()
		sess.committing = false
		sess.mu.Unlock()
	}()

	result := s.committer.Commit(ctx, sess.cart, patient)

	ctx = context.WithoutCancel(ctx)
	reconErr := s.reconciler.Reconcile(ctx, result.TransactionID)

	if result.Attempted() {
		s.recordSale(ctx, result, sellerID)
	}
	if result.FullyCommitted {
		sess.binding.Clear()
	}

	return &CheckoutResult{
		Transaction:       result,
		ReconciliationErr: reconErr,
	}, nil
}

func (s *POSService) recordSale(ctx context.Context, result *domain.TransactionResult, sellerID string) {
	sale := domain.NewSale(result, sellerID)

	if s.journal != nil {
		if err := s.journal.SaveSale(ctx, sale); err != nil {
			s.logger.Error("Failed to journal sale",
				zap.String("sale_id", sale.SaleID),
				zap.Error(err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.PublishSaleRecorded(ctx, sale); err != nil {
			s.logger.Error("Failed to publish sale event",
				zap.String("sale_id", sale.SaleID),
				zap.Error(err))
		}
	}
}

func (s *POSService) Sale(ctx context.Context, saleID string) (*domain.Sale, error) {
	if s.journal == nil {
		return nil, domain.ErrSaleNotFound
	}
	return s.journal.GetSale(ctx, saleID)
}

func (s *POSService) RefreshSnapshot(ctx context.Context) ([]domain.Product, error) {
	return s.cache.Refresh(ctx)
}

func (s *POSService) Snapshot() domain.SnapshotResponse {
	products := s.cache.Products()
	resp := domain.SnapshotResponse{
		Products:  make([]domain.ProductResponse, 0, len(products)),
		FetchedAt: s.cache.FetchedAt(),
		Stale:     s.cache.Stale(),
	}
	for _, p := range products {
		resp.Products = append(resp.Products, domain.NewProductResponse(p))
	}
	return resp
}

func (s *POSService) DispensationHistory(ctx context.Context, patientID int64) ([]domain.DispensationRecord, error) {
	return s.history.ListDispensations(ctx, patientID)
}

// RecentDispensationAlert is advisory; it never blocks a commit.
func (s *POSService) RecentDispensationAlert(ctx context.Context, sessionID string, productID int64) (*domain.DispensationAlert, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	patient, ok := sess.binding.Current()
	if !ok {
		return nil, &domain.PreconditionError{Reason: "no patient bound"}
	}
	return s.history.RecentDispensationAlert(ctx, patient.PatientID, productID, s.alertWindowDays)
}

func (s *POSService) session(sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

func (s *POSService) view(sess *Session) domain.SessionView {
	lines := sess.cart.Lines()
	v := domain.SessionView{
		SessionID:  sess.ID,
		Lines:      make([]domain.CartLineView, 0, len(lines)),
		Total:      decimal.Zero,
		Committing: sess.isCommitting(),
		CreatedAt:  sess.CreatedAt,
	}
	for _, l := range lines {
		lv := domain.CartLineView{CartLine: l, Subtotal: l.Subtotal()}
		v.Total = v.Total.Add(lv.Subtotal)
		if p, ok := s.cache.Lookup(l.ProductID); ok {
			lv.Name = p.Name
		}
		v.Lines = append(v.Lines, lv)
	}
	if p, ok := sess.binding.Current(); ok {
		pr := domain.NewPatientResponse(p)
		v.Patient = &pr
	}
	return v
}

func (sess *Session) isCommitting() bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.committing
}
