package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cloud-wave-best-zizon/pharmacy-pos/internal/domain"
	"go.uber.org/zap"
)

// PatientBinding holds the patient a transaction is attributed to.
type PatientBinding struct {
	directory PatientDirectory
	logger    *zap.Logger

	mu      sync.RWMutex
	patient *domain.Patient
}

func NewPatientBinding(directory PatientDirectory, logger *zap.Logger) *PatientBinding {
	return &PatientBinding{
		directory: directory,
		logger:    logger,
	}
}

// Bind resolves rut with a single lookup. A failed lookup leaves any earlier
// binding in place.
func (b *PatientBinding) Bind(ctx context.Context, rut string) (*domain.Patient, error) {
	if rut == "" {
		return nil, fmt.Errorf("empty lookup key: %w", domain.ErrPatientNotFound)
	}

	patient, err := b.directory.FindByRUT(ctx, rut)
	if err != nil {
		if !errors.Is(err, domain.ErrPatientNotFound) {
			b.logger.Error("Failed to look up patient", zap.String("rut", rut), zap.Error(err))
		}
		return nil, err
	}
	if patient == nil {
		return nil, domain.ErrPatientNotFound
	}

	b.mu.Lock()
	bound := *patient
	b.patient = &bound
	b.mu.Unlock()

	b.logger.Info("Patient bound",
		zap.Int64("patient_id", patient.PatientID),
		zap.String("rut", patient.RUT))

	return patient, nil
}

func (b *PatientBinding) Current() (domain.Patient, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.patient == nil {
		return domain.Patient{}, false
	}
	return *b.patient, true
}

func (b *PatientBinding) Clear() {
	b.mu.Lock()
	b.patient = nil
	b.mu.Unlock()
}
