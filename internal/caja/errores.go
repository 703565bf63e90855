package caja

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/model"
)

// Sentinel errors — match with errors.Is. Every failed operation leaves
// registry state exactly as it was before the call.
var (
	// ErrCajaYaAbierta: the register already has an open session.
	ErrCajaYaAbierta = errors.New("la caja ya tiene una sesión abierta")

	// ErrSinSesionAbierta: the session does not exist or is not open
	// (close / read against an unknown or finished cycle).
	ErrSinSesionAbierta = errors.New("no hay sesión de caja abierta")

	// ErrSesionNoAbierta: a movement was appended against a session whose
	// estado is not abierta.
	ErrSesionNoAbierta = errors.New("la sesión de caja no está abierta")

	// ErrSesionNoEncontrada: read against a session id the registry has
	// never seen.
	ErrSesionNoEncontrada = errors.New("sesión de caja no encontrada")

	// ErrConceptoVacio: blank movement concept.
	ErrConceptoVacio = errors.New("el concepto del movimiento no puede estar vacío")

	// ErrMetodoInvalido: payment channel outside the closed enumeration.
	ErrMetodoInvalido = errors.New("método de pago no reconocido")

	// ErrTipoInvalido: movement kind outside ingreso/egreso/transferencia.
	ErrTipoInvalido = errors.New("tipo de movimiento no reconocido")

	// ErrTransferenciaDirecta: tipo transferencia cannot be appended as a
	// single entry — use Transferir, which records the paired legs.
	ErrTransferenciaDirecta = errors.New("una transferencia se registra con Transferir, no como movimiento simple")

	// ErrMismoMetodo: transfer source and destination channels must differ.
	ErrMismoMetodo = errors.New("la transferencia requiere métodos de origen y destino distintos")

	// ErrObservacionesRequeridas: a forced close needs supervisor notes.
	ErrObservacionesRequeridas = errors.New("el cierre forzado requiere observaciones")
)

// MontoInvalidoError reports a non-positive or otherwise malformed amount,
// carrying the offending field so the caller can surface it.
type MontoInvalidoError struct {
	Campo string
	Monto decimal.Decimal
}

func (e *MontoInvalidoError) Error() string {
	return fmt.Sprintf("monto inválido en %s: %s", e.Campo, e.Monto.String())
}

// FueraDeToleranciaError is returned by Cerrar when the declared amount
// falls outside the tolerance margin. It carries the full arqueo result so
// the caller can present it and decide whether to authorize a forced close.
// This is the one expected error callers handle specially.
type FueraDeToleranciaError struct {
	Resultado model.ResultadoArqueo
}

func (e *FueraDeToleranciaError) Error() string {
	return fmt.Sprintf("arqueo fuera de tolerancia: diferencia %s excede el margen %s",
		e.Resultado.Diferencia.String(), e.Resultado.Tolerancia.String())
}
