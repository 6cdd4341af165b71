package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cloud-wave-best-zizon/pharmacy-pos/internal/domain"
	"github.com/shopspring/decimal"
)

type fakeCatalog struct {
	mu       sync.Mutex
	products []domain.Product
	err      error
	calls    int
}

func (f *fakeCatalog) ListProducts(ctx context.Context) ([]domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Product, len(f.products))
	copy(out, f.products)
	return out, nil
}

func (f *fakeCatalog) set(products []domain.Product, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products = products
	f.err = err
}

func (f *fakeCatalog) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeDirectory struct {
	mu       sync.Mutex
	patients map[string]domain.Patient
	err      error
	calls    int
	block    chan struct{}
}

func (f *fakeDirectory) FindByRUT(ctx context.Context, rut string) (*domain.Patient, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.patients[rut]
	if !ok {
		return nil, domain.ErrPatientNotFound
	}
	return &p, nil
}

func (f *fakeDirectory) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeHistory struct {
	records []domain.DispensationRecord
	alert   *domain.DispensationAlert
	days    int
}

func (f *fakeHistory) ListDispensations(ctx context.Context, patientID int64) ([]domain.DispensationRecord, error) {
	return f.records, nil
}

func (f *fakeHistory) RecentDispensationAlert(ctx context.Context, patientID, productID int64, days int) (*domain.DispensationAlert, error) {
	f.days = days
	return f.alert, nil
}

var fakeDispensedAt = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

// fakeDispenser accepts requests until a product listed in reject is reached.
// A product listed in lose is committed server-side once but its response
// never arrives.
type fakeDispenser struct {
	mu        sync.Mutex
	reject    map[int64]error
	lose      map[int64]bool
	requests  []domain.DispensationRequest
	dispensed []domain.DispensationRecord
	listErr   error
	nextID    int64
	block     chan struct{}
}

func newFakeDispenser() *fakeDispenser {
	return &fakeDispenser{reject: map[int64]error{}, lose: map[int64]bool{}, nextID: 100}
}

func (f *fakeDispenser) CreateDispensation(ctx context.Context, req domain.DispensationRequest) (*domain.DispensationRecord, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if err, ok := f.reject[req.ProductID]; ok {
		return nil, err
	}
	f.nextID++
	rec := domain.DispensationRecord{
		DispensationID: f.nextID,
		PatientID:      req.PatientID,
		ProductID:      req.ProductID,
		Quantity:       req.Quantity,
		DispensedAt:    fakeDispensedAt,
	}
	f.dispensed = append(f.dispensed, rec)
	if f.lose[req.ProductID] {
		delete(f.lose, req.ProductID)
		return nil, errNetwork
	}
	return &rec, nil
}

func (f *fakeDispenser) ListDispensations(ctx context.Context, patientID int64) ([]domain.DispensationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.DispensationRecord
	for _, r := range f.dispensed {
		if r.PatientID == patientID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeDispenser) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeDispenser) dispensedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dispensed)
}

type fakeCredentials struct {
	err   error
	calls int
}

func (f *fakeCredentials) Token(ctx context.Context) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "token", nil
}

type memoryLedger struct {
	mu    sync.Mutex
	marks map[string]domain.CommitMark
	err   error
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{marks: map[string]domain.CommitMark{}}
}

func (l *memoryLedger) Reserve(ctx context.Context, key string, at time.Time) (domain.CommitMark, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return domain.CommitMark{}, l.err
	}
	if m, ok := l.marks[key]; ok {
		return m, nil
	}
	l.marks[key] = domain.CommitMark{PendingSince: at}
	return domain.CommitMark{}, nil
}

func (l *memoryLedger) Remember(ctx context.Context, key string, record *domain.DispensationRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	rec := *record
	l.marks[key] = domain.CommitMark{Record: &rec}
	return nil
}

func (l *memoryLedger) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	delete(l.marks, key)
	return nil
}

func (l *memoryLedger) mark(key string) (domain.CommitMark, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.marks[key]
	return m, ok
}

type fakeJournal struct {
	mu    sync.Mutex
	sales []*domain.Sale
	err   error
}

func (f *fakeJournal) SaveSale(ctx context.Context, sale *domain.Sale) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sales = append(f.sales, sale)
	return f.err
}

func (f *fakeJournal) GetSale(ctx context.Context, saleID string) (*domain.Sale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sales {
		if s.SaleID == saleID {
			return s, nil
		}
	}
	return nil, domain.ErrSaleNotFound
}

type fakePublisher struct {
	mu    sync.Mutex
	sales []*domain.Sale
}

func (f *fakePublisher) PublishSaleRecorded(ctx context.Context, sale *domain.Sale) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sales = append(f.sales, sale)
	return nil
}

var errStockGone = &domain.RejectionError{
	Kind:       domain.RejectionInsufficientStock,
	StatusCode: 409,
	Detail:     "stock insuficiente",
}

var errNetwork = errors.New("connection reset by peer")

func testProducts() []domain.Product {
	return []domain.Product{
		{ProductID: 1, Name: "Paracetamol 500mg", Price: decimal.RequireFromString("1990"), Stock: 10},
		{ProductID: 2, Name: "Ibuprofeno 400mg", Price: decimal.RequireFromString("2490.50"), Stock: 5},
		{ProductID: 3, Name: "Losartan 50mg", Price: decimal.RequireFromString("5200"), Stock: 2},
	}
}

func testPatient() domain.Patient {
	return domain.Patient{PatientID: 42, Name: "Ana Rojas", RUT: "12345678-9", BirthDate: "1980-04-02"}
}
