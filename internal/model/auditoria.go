package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Auditoria is one consumed caja event, persisted by the audit worker.
// Rows are written once and never updated.
type Auditoria struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	Evento   string    `gorm:"type:varchar(40);not null;index"`
	CajaID   string    `gorm:"type:varchar(50);not null;index"`
	SesionID uuid.UUID `gorm:"type:uuid;not null;index"`
	// Detalle is the full event snapshot as emitted by the core.
	Detalle      json.RawMessage `gorm:"type:jsonb"`
	RegistradaEn time.Time       `gorm:"not null"`
}
