package caja

// arqueo.go — reconciliation of a declared closing amount against the
// expected total. Pure: the verdict depends only on the inputs.

import (
	"github.com/shopspring/decimal"

	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/model"
)

var cien = decimal.NewFromInt(100)

// Reconciliar compares declarado against esperado under tolerancia.
// The tolerance interval is CLOSED: a discrepancy exactly equal to the
// margin is still within tolerance. Whether an out-of-tolerance close may
// proceed is the caller's policy, not this function's.
func Reconciliar(esperado, declarado, tolerancia decimal.Decimal) model.ResultadoArqueo {
	diferencia := declarado.Sub(esperado)

	var pct decimal.Decimal
	if !esperado.IsZero() {
		pct = diferencia.Div(esperado).Mul(cien).Round(2)
	}

	return model.ResultadoArqueo{
		TotalEsperado:      esperado,
		TotalDeclarado:     declarado,
		Diferencia:         diferencia,
		DiferenciaPct:      pct,
		DentroDeTolerancia: diferencia.Abs().LessThanOrEqual(tolerancia),
		Tolerancia:         tolerancia,
		Clasificacion:      clasificarDesvio(pct),
	}
}

// clasificarDesvio buckets the deviation percentage for reporting.
// normal: |pct| <= 1, advertencia: <= 5, critico: > 5
func clasificarDesvio(pct decimal.Decimal) string {
	abs := pct.Abs()
	switch {
	case abs.LessThanOrEqual(decimal.NewFromInt(1)):
		return "normal"
	case abs.LessThanOrEqual(decimal.NewFromInt(5)):
		return "advertencia"
	default:
		return "critico"
	}
}
