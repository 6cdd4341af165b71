package service

import (
	"context"
	"time"

	"github.com/cloud-wave-best-zizon/pharmacy-pos/internal/domain"
)

// ProductCatalog returns the full product list of the inventory collaborator.
type ProductCatalog interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

// PatientDirectory resolves patients by natural key (RUT).
type PatientDirectory interface {
	FindByRUT(ctx context.Context, rut string) (*domain.Patient, error)
}

type DispensationLister interface {
	ListDispensations(ctx context.Context, patientID int64) ([]domain.DispensationRecord, error)
}

type DispensationHistory interface {
	DispensationLister
	RecentDispensationAlert(ctx context.Context, patientID, productID int64, days int) (*domain.DispensationAlert, error)
}

// Dispenser creates one dispensation record per call.
type Dispenser interface {
	CreateDispensation(ctx context.Context, req domain.DispensationRequest) (*domain.DispensationRecord, error)
}

type CredentialSource interface {
	Token(ctx context.Context) (string, error)
}

// CommitLedger tracks each idempotency key from the moment its request is
// issued. Reserve marks a key pending and reports what an earlier attempt
// left behind; Remember stores the record once it is known; Release forgets
// a key the collaborator refused.
type CommitLedger interface {
	Reserve(ctx context.Context, idempotencyKey string, at time.Time) (domain.CommitMark, error)
	Remember(ctx context.Context, idempotencyKey string, record *domain.DispensationRecord) error
	Release(ctx context.Context, idempotencyKey string) error
}

// SaleJournal keeps one entry per commit attempt that reached the collaborator.
type SaleJournal interface {
	SaveSale(ctx context.Context, sale *domain.Sale) error
	GetSale(ctx context.Context, saleID string) (*domain.Sale, error)
}

type SalePublisher interface {
	PublishSaleRecorded(ctx context.Context, sale *domain.Sale) error
}
