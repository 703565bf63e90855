package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EstadoSesion is the lifecycle state of a cash register session.
// There are exactly two: a register is either open or closed.
// No suspend, no pause, no reopen.
type EstadoSesion string

const (
	EstadoAbierta EstadoSesion = "abierta"
	EstadoCerrada EstadoSesion = "cerrada"
)

// MetodoPago is the closed set of payment channels a movement can belong to.
// Adding a channel means adding a constant here — never an ad-hoc string.
type MetodoPago string

const (
	MetodoEfectivo  MetodoPago = "efectivo"
	MetodoTarjeta   MetodoPago = "tarjeta"
	MetodoBilletera MetodoPago = "billetera_digital"
	MetodoOtros     MetodoPago = "otros"
)

// MetodosPago returns every recognized channel, in a stable order.
func MetodosPago() []MetodoPago {
	return []MetodoPago{MetodoEfectivo, MetodoTarjeta, MetodoBilletera, MetodoOtros}
}

// Valido reports whether m is one of the recognized channels.
func (m MetodoPago) Valido() bool {
	switch m {
	case MetodoEfectivo, MetodoTarjeta, MetodoBilletera, MetodoOtros:
		return true
	}
	return false
}

// TipoMovimiento classifies a ledger entry. The amount is always positive;
// the sign is implied by the tipo. A transferencia between channels is
// stored as a paired egreso+ingreso, never as a single entry.
type TipoMovimiento string

const (
	TipoIngreso       TipoMovimiento = "ingreso"
	TipoEgreso        TipoMovimiento = "egreso"
	TipoTransferencia TipoMovimiento = "transferencia"
)

// Montos maps each payment channel to a decimal amount.
type Montos map[MetodoPago]decimal.Decimal

// Total sums the amounts over all channels.
func (m Montos) Total() decimal.Decimal {
	total := decimal.Zero
	for _, v := range m {
		total = total.Add(v)
	}
	return total
}

// Normalizado returns a copy with every recognized channel present,
// missing ones filled with zero.
func (m Montos) Normalizado() Montos {
	out := make(Montos, len(MetodosPago()))
	for _, metodo := range MetodosPago() {
		if v, ok := m[metodo]; ok {
			out[metodo] = v
		} else {
			out[metodo] = decimal.Zero
		}
	}
	return out
}

// ResultadoArqueo is the outcome of reconciling a declared closing amount
// against the ledger-derived expected total. Tolerancia snapshots the
// margin that was in force when the arqueo ran, so later config changes
// never rewrite history.
// Clasificacion: "normal" | "advertencia" | "critico" (by deviation percentage).
type ResultadoArqueo struct {
	TotalEsperado      decimal.Decimal `json:"total_esperado"`
	TotalDeclarado     decimal.Decimal `json:"total_declarado"`
	Diferencia         decimal.Decimal `json:"diferencia"`
	DiferenciaPct      decimal.Decimal `json:"diferencia_pct"`
	DentroDeTolerancia bool            `json:"dentro_de_tolerancia"`
	Tolerancia         decimal.Decimal `json:"tolerancia"`
	Clasificacion      string          `json:"clasificacion"`
}

// SesionCaja represents one open-to-close cycle of a register.
// Once Estado flips to cerrada the row is never touched again —
// the next cycle creates a new session.
type SesionCaja struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	CajaID        string    `gorm:"type:varchar(50);not null;index"`
	UsuarioID     uuid.UUID `gorm:"type:uuid;not null"`
	UsuarioNombre string    `gorm:"not null"`
	// MontosIniciales is the declared opening float per channel.
	MontosIniciales Montos          `gorm:"type:jsonb;serializer:json;not null"`
	TotalInicial    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Estado          EstadoSesion    `gorm:"type:varchar(20);not null;default:'abierta'"`
	AbiertaEn       time.Time       `gorm:"not null"`
	CerradaEn       *time.Time
	TotalDeclarado  *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Arqueo          *ResultadoArqueo `gorm:"type:jsonb;serializer:json"`
	// CierreForzado marks a close that was authorized despite an
	// out-of-tolerance arqueo.
	CierreForzado bool `gorm:"not null;default:false"`
	Observaciones *string
}

// MovimientoCaja is an immutable entry in the session ledger.
// Movements are NEVER modified or deleted — corrections create
// compensating entries.
type MovimientoCaja struct {
	ID       uuid.UUID      `gorm:"type:uuid;primaryKey"`
	SesionID uuid.UUID      `gorm:"type:uuid;not null;index"`
	CajaID   string         `gorm:"type:varchar(50);not null;index"`
	Tipo     TipoMovimiento `gorm:"type:varchar(20);not null"`
	Concepto string         `gorm:"not null"`
	Metodo   MetodoPago     `gorm:"type:varchar(20);not null"`
	// Monto is strictly positive; the sign is implied by Tipo.
	Monto decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// Referencia links related entries — the two legs of a transferencia
	// share one reference.
	Referencia   *string
	Notas        *string
	UsuarioID    uuid.UUID `gorm:"type:uuid;not null"`
	RegistradoEn time.Time `gorm:"not null;index"`
}
