package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/model"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type AbrirCajaRequest struct {
	CajaID string `json:"caja_id" validate:"required,min=1,max=50"`
	// MontosIniciales maps channel name to opening amount. Channel names
	// and amounts are validated against the closed enum by the core.
	MontosIniciales map[string]decimal.Decimal `json:"montos_iniciales"`
}

type MovimientoRequest struct {
	SesionID   string          `json:"sesion_id" validate:"required,uuid"`
	Tipo       string          `json:"tipo"      validate:"required,oneof=ingreso egreso"`
	Metodo     string          `json:"metodo"    validate:"required,oneof=efectivo tarjeta billetera_digital otros"`
	Monto      decimal.Decimal `json:"monto"     validate:"required,gt=0"`
	Concepto   string          `json:"concepto"  validate:"required,min=3"`
	Referencia *string         `json:"referencia"`
	Notas      *string         `json:"notas"`
}

type TransferenciaRequest struct {
	SesionID string          `json:"sesion_id" validate:"required,uuid"`
	Origen   string          `json:"origen"    validate:"required,oneof=efectivo tarjeta billetera_digital otros"`
	Destino  string          `json:"destino"   validate:"required,oneof=efectivo tarjeta billetera_digital otros"`
	Monto    decimal.Decimal `json:"monto"     validate:"required,gt=0"`
	Concepto string          `json:"concepto"  validate:"required,min=3"`
}

type CerrarCajaRequest struct {
	SesionID       string          `json:"sesion_id"       validate:"required,uuid"`
	TotalDeclarado decimal.Decimal `json:"total_declarado" validate:"min=0"`
	Observaciones  *string         `json:"observaciones"`
}

type CerrarForzadoRequest struct {
	SesionID       string          `json:"sesion_id"       validate:"required,uuid"`
	TotalDeclarado decimal.Decimal `json:"total_declarado" validate:"min=0"`
	// Observaciones are mandatory on a forced close.
	Observaciones string `json:"observaciones" validate:"required,min=5"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ArqueoResponse struct {
	TotalEsperado      decimal.Decimal `json:"total_esperado"`
	TotalDeclarado     decimal.Decimal `json:"total_declarado"`
	Diferencia         decimal.Decimal `json:"diferencia"`
	DiferenciaPct      decimal.Decimal `json:"diferencia_pct"`
	DentroDeTolerancia bool            `json:"dentro_de_tolerancia"`
	Tolerancia         decimal.Decimal `json:"tolerancia"`
	Clasificacion      string          `json:"clasificacion"`
}

type SesionResponse struct {
	SesionID        string                     `json:"sesion_id"`
	CajaID          string                     `json:"caja_id"`
	Usuario         string                     `json:"usuario"`
	MontosIniciales map[string]decimal.Decimal `json:"montos_iniciales"`
	TotalInicial    decimal.Decimal            `json:"total_inicial"`
	Estado          string                     `json:"estado"`
	AbiertaEn       string                     `json:"abierta_en"`
	CerradaEn       *string                    `json:"cerrada_en"`
	TotalDeclarado  *decimal.Decimal           `json:"total_declarado"`
	Arqueo          *ArqueoResponse            `json:"arqueo"`
	CierreForzado   bool                       `json:"cierre_forzado"`
	Observaciones   *string                    `json:"observaciones"`
}

type MovimientoResponse struct {
	MovimientoID string          `json:"movimiento_id"`
	SesionID     string          `json:"sesion_id"`
	CajaID       string          `json:"caja_id"`
	Tipo         string          `json:"tipo"`
	Metodo       string          `json:"metodo"`
	Monto        decimal.Decimal `json:"monto"`
	Concepto     string          `json:"concepto"`
	Referencia   *string         `json:"referencia"`
	Notas        *string         `json:"notas"`
	RegistradoEn string          `json:"registrado_en"`
}

type EstadoCajaResponse struct {
	CajaID   string  `json:"caja_id"`
	Estado   string  `json:"estado"`
	SesionID *string `json:"sesion_id"`
}

type ReporteCajaResponse struct {
	Sesion              SesionResponse             `json:"sesion"`
	Balances            map[string]decimal.Decimal `json:"balances"`
	TotalEsperado       decimal.Decimal            `json:"total_esperado"`
	CantidadMovimientos int                        `json:"cantidad_movimientos"`
}

// ─── Mappers ─────────────────────────────────────────────────────────────────

func NewArqueoResponse(r model.ResultadoArqueo) ArqueoResponse {
	return ArqueoResponse{
		TotalEsperado:      r.TotalEsperado,
		TotalDeclarado:     r.TotalDeclarado,
		Diferencia:         r.Diferencia,
		DiferenciaPct:      r.DiferenciaPct,
		DentroDeTolerancia: r.DentroDeTolerancia,
		Tolerancia:         r.Tolerancia,
		Clasificacion:      r.Clasificacion,
	}
}

func NewSesionResponse(s model.SesionCaja) SesionResponse {
	montos := make(map[string]decimal.Decimal, len(s.MontosIniciales))
	for metodo, monto := range s.MontosIniciales {
		montos[string(metodo)] = monto
	}
	resp := SesionResponse{
		SesionID:        s.ID.String(),
		CajaID:          s.CajaID,
		Usuario:         s.UsuarioNombre,
		MontosIniciales: montos,
		TotalInicial:    s.TotalInicial,
		Estado:          string(s.Estado),
		AbiertaEn:       s.AbiertaEn.UTC().Format(time.RFC3339),
		TotalDeclarado:  s.TotalDeclarado,
		CierreForzado:   s.CierreForzado,
		Observaciones:   s.Observaciones,
	}
	if s.CerradaEn != nil {
		ts := s.CerradaEn.UTC().Format(time.RFC3339)
		resp.CerradaEn = &ts
	}
	if s.Arqueo != nil {
		arqueo := NewArqueoResponse(*s.Arqueo)
		resp.Arqueo = &arqueo
	}
	return resp
}

func NewMovimientoResponse(m model.MovimientoCaja) MovimientoResponse {
	return MovimientoResponse{
		MovimientoID: m.ID.String(),
		SesionID:     m.SesionID.String(),
		CajaID:       m.CajaID,
		Tipo:         string(m.Tipo),
		Metodo:       string(m.Metodo),
		Monto:        m.Monto,
		Concepto:     m.Concepto,
		Referencia:   m.Referencia,
		Notas:        m.Notas,
		RegistradoEn: m.RegistradoEn.UTC().Format(time.RFC3339),
	}
}
