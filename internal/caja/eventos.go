package caja

import (
	"github.com/google/uuid"

	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/model"
)

// Evento is a structured fact emitted by a successful state transition.
// The core never performs I/O: events are returned to the caller, which
// publishes them AFTER the transition (and its persistence) commit.
// Each event carries an immutable snapshot, not a live pointer.
type Evento interface {
	Nombre() string
	CajaID() string
	SesionID() uuid.UUID
}

const (
	EventoSesionAbierta        = "sesion_abierta"
	EventoMovimientoRegistrado = "movimiento_registrado"
	EventoSesionCerrada        = "sesion_cerrada"
)

// SesionAbierta is emitted once per successful Abrir.
type SesionAbierta struct {
	Sesion model.SesionCaja `json:"sesion"`
}

func (e SesionAbierta) Nombre() string      { return EventoSesionAbierta }
func (e SesionAbierta) CajaID() string      { return e.Sesion.CajaID }
func (e SesionAbierta) SesionID() uuid.UUID { return e.Sesion.ID }

// MovimientoRegistrado is emitted once per appended movement — a
// transferencia emits one per leg.
type MovimientoRegistrado struct {
	Movimiento model.MovimientoCaja `json:"movimiento"`
}

func (e MovimientoRegistrado) Nombre() string      { return EventoMovimientoRegistrado }
func (e MovimientoRegistrado) CajaID() string      { return e.Movimiento.CajaID }
func (e MovimientoRegistrado) SesionID() uuid.UUID { return e.Movimiento.SesionID }

// SesionCerrada is emitted once per successful close, normal or forced.
// The embedded session carries the arqueo result.
type SesionCerrada struct {
	Sesion  model.SesionCaja `json:"sesion"`
	Forzado bool             `json:"forzado"`
}

func (e SesionCerrada) Nombre() string      { return EventoSesionCerrada }
func (e SesionCerrada) CajaID() string      { return e.Sesion.CajaID }
func (e SesionCerrada) SesionID() uuid.UUID { return e.Sesion.ID }
