package contracts

import "time"

// Resource is one entry of an XM resource listing
type Resource struct {
	Catalogo           string    `json:"catalogo"`
	Codigo             string    `json:"codigo"`
	Nombre             string    `json:"nombre"`
	Tipo               string    `json:"tipo"`
	Region             string    `json:"region"`
	Capacidad          *float64  `json:"capacidad,omitempty"`
	FechaActualizacion time.Time `json:"fecha_actualizacion"`
}
