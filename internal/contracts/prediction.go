package contracts

import "time"

// Prediction is a forecast for one date and source
type Prediction struct {
	ID                int64     `json:"id"`
	FechaPrediccion   time.Time `json:"fecha_prediccion"`
	Fuente            string    `json:"fuente"`
	HorizonteDias     int       `json:"horizonte_dias"`
	ValorGWhPredicho  float64   `json:"valor_gwh_predicho"`
	IntervaloInferior *float64  `json:"intervalo_inferior,omitempty"`
	IntervaloSuperior *float64  `json:"intervalo_superior,omitempty"`
	Modelo            string    `json:"modelo"`
}

// Contains reports whether v falls inside the confidence interval.
// A prediction without an interval never contains anything.
func (p Prediction) Contains(v float64) bool {
	if p.IntervaloInferior == nil || p.IntervaloSuperior == nil {
		return false
	}
	return v >= *p.IntervaloInferior && v <= *p.IntervaloSuperior
}

// Observation is a realized daily value to compare predictions against
type Observation struct {
	Fecha time.Time
	Valor float64
}
