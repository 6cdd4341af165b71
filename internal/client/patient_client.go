package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/cloud-wave-best-zizon/pharmacy-pos/internal/domain"
	"go.uber.org/zap"
)

// PatientClient talks to the patients collaborator: lookup by RUT,
// dispensation creation and the dispensation history endpoints.
type PatientClient struct {
	rest restClient
}

func NewPatientClient(baseURL string, httpClient *http.Client, tokens TokenSource, logger *zap.Logger) *PatientClient {
	return &PatientClient{rest: newRESTClient(baseURL, httpClient, tokens, logger)}
}

func (c *PatientClient) FindByRUT(ctx context.Context, rut string) (*domain.Patient, error) {
	var p patientWire
	err := c.rest.do(ctx, http.MethodGet, "/rut/"+url.PathEscape(rut), nil, nil, &p)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrPatientNotFound
		}
		return nil, fmt.Errorf("failed to find patient: %w", err)
	}
	return p.toDomain(), nil
}

// CreateDispensation registers one dispensation. The idempotency key travels
// in the Idempotency-Key header.
func (c *PatientClient) CreateDispensation(ctx context.Context, req domain.DispensationRequest) (*domain.DispensationRecord, error) {
	var headers map[string]string
	if req.IdempotencyKey != "" {
		headers = map[string]string{"Idempotency-Key": req.IdempotencyKey}
	}

	body := dispensationCreateWire{ProductoID: req.ProductID, Cantidad: req.Quantity}
	var d dispensationWire
	path := fmt.Sprintf("/%d/dispensaciones", req.PatientID)
	if err := c.rest.do(ctx, http.MethodPost, path, headers, body, &d); err != nil {
		return nil, err
	}

	record := d.toDomain()
	return &record, nil
}

func (c *PatientClient) ListDispensations(ctx context.Context, patientID int64) ([]domain.DispensationRecord, error) {
	var items []dispensationWire
	path := fmt.Sprintf("/%d/dispensaciones", patientID)
	if err := c.rest.do(ctx, http.MethodGet, path, nil, nil, &items); err != nil {
		if isNotFound(err) {
			return nil, domain.ErrPatientNotFound
		}
		return nil, fmt.Errorf("failed to list dispensations: %w", err)
	}

	records := make([]domain.DispensationRecord, 0, len(items))
	for _, it := range items {
		records = append(records, it.toDomain())
	}
	return records, nil
}

func (c *PatientClient) RecentDispensationAlert(ctx context.Context, patientID, productID int64, days int) (*domain.DispensationAlert, error) {
	q := url.Values{}
	q.Set("producto_id", strconv.FormatInt(productID, 10))
	q.Set("dias", strconv.Itoa(days))

	var a alertWire
	path := fmt.Sprintf("/%d/alertas?%s", patientID, q.Encode())
	if err := c.rest.do(ctx, http.MethodGet, path, nil, nil, &a); err != nil {
		return nil, fmt.Errorf("failed to check dispensation alert: %w", err)
	}
	return a.toDomain(), nil
}
