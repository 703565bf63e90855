package caja

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestReconciliarExacto(t *testing.T) {
	res := Reconciliar(decimal.RequireFromString("700.50"), decimal.RequireFromString("700.50"), decimal.NewFromInt(1))

	assert.True(t, res.DentroDeTolerancia)
	assert.Equal(t, "0", res.Diferencia.String())
	assert.Equal(t, "normal", res.Clasificacion)
	assert.Equal(t, "1", res.Tolerancia.String())
}

func TestReconciliarBordeDeTolerancia(t *testing.T) {
	esperado := decimal.NewFromInt(1000)
	margen := decimal.RequireFromString("1.00")

	// Discrepancy exactly equal to the margin: still within (closed interval)
	enElBorde := Reconciliar(esperado, decimal.RequireFromString("1001.00"), margen)
	assert.True(t, enElBorde.DentroDeTolerancia)

	// One cent beyond: out
	unCentavoMas := Reconciliar(esperado, decimal.RequireFromString("1001.01"), margen)
	assert.False(t, unCentavoMas.DentroDeTolerancia)

	// Symmetric on the shortage side
	faltante := Reconciliar(esperado, decimal.RequireFromString("999.00"), margen)
	assert.True(t, faltante.DentroDeTolerancia)
	faltanteMas := Reconciliar(esperado, decimal.RequireFromString("998.99"), margen)
	assert.False(t, faltanteMas.DentroDeTolerancia)
}

func TestReconciliarDiferenciaNegativa(t *testing.T) {
	res := Reconciliar(decimal.RequireFromString("700.50"), decimal.NewFromInt(650), decimal.NewFromInt(1))

	assert.False(t, res.DentroDeTolerancia)
	assert.Equal(t, "-50.5", res.Diferencia.String())
	assert.True(t, res.Diferencia.IsNegative())
	assert.Equal(t, "critico", res.Clasificacion)
}

func TestReconciliarEsperadoCero(t *testing.T) {
	// No division by zero when the expected total is zero
	res := Reconciliar(decimal.Zero, decimal.NewFromInt(5), decimal.NewFromInt(10))
	assert.True(t, res.DentroDeTolerancia)
	assert.True(t, res.DiferenciaPct.IsZero())
}

func TestClasificarDesvio(t *testing.T) {
	casos := []struct {
		pct  string
		want string
	}{
		{"0", "normal"},
		{"1", "normal"},
		{"-1", "normal"},
		{"1.01", "advertencia"},
		{"-4.5", "advertencia"},
		{"5", "advertencia"},
		{"5.01", "critico"},
		{"-10", "critico"},
	}
	for _, c := range casos {
		assert.Equal(t, c.want, clasificarDesvio(decimal.RequireFromString(c.pct)), "pct=%s", c.pct)
	}
}
