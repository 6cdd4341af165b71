package domain

type Patient struct {
	PatientID int64  `json:"patient_id"`
	Name      string `json:"name"`
	RUT       string `json:"rut"`
	BirthDate string `json:"birth_date"`
}

type BindPatientRequest struct {
	RUT string `json:"rut" binding:"required"`
}

type PatientResponse struct {
	PatientID int64  `json:"patient_id"`
	Name      string `json:"name"`
	RUT       string `json:"rut"`
}

func NewPatientResponse(p Patient) PatientResponse {
	return PatientResponse{
		PatientID: p.PatientID,
		Name:      p.Name,
		RUT:       p.RUT,
	}
}
