package client

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloud-wave-best-zizon/pharmacy-pos/internal/domain"
	"github.com/shopspring/decimal"
)

// Collaborator payloads. Field names follow the collaborators' JSON.

type patientWire struct {
	ID              int64  `json:"id"`
	Nombre          string `json:"nombre"`
	RUT             string `json:"rut"`
	FechaNacimiento string `json:"fecha_nacimiento"`
}

func (p patientWire) toDomain() *domain.Patient {
	return &domain.Patient{
		PatientID: p.ID,
		Name:      p.Nombre,
		RUT:       p.RUT,
		BirthDate: p.FechaNacimiento,
	}
}

type dispensationCreateWire struct {
	ProductoID int64 `json:"producto_id"`
	Cantidad   int   `json:"cantidad"`
}

type dispensationWire struct {
	ID                int64    `json:"id"`
	PacienteID        int64    `json:"paciente_id"`
	ProductoID        int64    `json:"producto_id"`
	Cantidad          int      `json:"cantidad"`
	FechaDispensacion wireTime `json:"fecha_dispensacion"`
}

func (d dispensationWire) toDomain() domain.DispensationRecord {
	return domain.DispensationRecord{
		DispensationID: d.ID,
		PatientID:      d.PacienteID,
		ProductID:      d.ProductoID,
		Quantity:       d.Cantidad,
		DispensedAt:    d.FechaDispensacion.Time,
	}
}

type alertWire struct {
	Alerta  bool   `json:"alerta"`
	Mensaje string `json:"mensaje"`
	Retiros []struct {
		IDDispensacion int64    `json:"id_dispensacion"`
		Fecha          wireTime `json:"fecha"`
	} `json:"retiros"`
}

func (a alertWire) toDomain() *domain.DispensationAlert {
	alert := &domain.DispensationAlert{Alert: a.Alerta, Message: a.Mensaje}
	for _, r := range a.Retiros {
		alert.Withdrawals = append(alert.Withdrawals, domain.RecentWithdrawal{
			DispensationID: r.IDDispensacion,
			DispensedAt:    r.Fecha.Time,
		})
	}
	return alert
}

type productWire struct {
	ID          int64           `json:"id"`
	Nombre      string          `json:"nombre"`
	Descripcion *string         `json:"descripcion"`
	PrecioVenta decimal.Decimal `json:"precio_venta"`
	Stock       int             `json:"stock"`
}

func (p productWire) toDomain() domain.Product {
	prod := domain.Product{
		ProductID: p.ID,
		Name:      p.Nombre,
		Price:     p.PrecioVenta,
		Stock:     p.Stock,
	}
	if p.Descripcion != nil {
		prod.Description = *p.Descripcion
	}
	return prod
}

// wireTime accepts RFC 3339 timestamps and the zone-less ISO form the
// collaborators emit, which is read as UTC.
type wireTime struct {
	time.Time
}

var zonelessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func (t *wireTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = parsed
		return nil
	}
	for _, layout := range zonelessLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}
