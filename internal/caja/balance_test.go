package caja

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/model"
)

func sesionConApertura(montos model.Montos) model.SesionCaja {
	iniciales := montos.Normalizado()
	return model.SesionCaja{
		ID:              uuid.New(),
		CajaID:          "CAJA-01",
		MontosIniciales: iniciales,
		TotalInicial:    iniciales.Total(),
		Estado:          model.EstadoAbierta,
	}
}

func TestBalanceCerrado(t *testing.T) {
	sesion := sesionConApertura(model.Montos{
		model.MetodoEfectivo: decimal.RequireFromString("500.00"),
		model.MetodoTarjeta:  decimal.RequireFromString("100.00"),
	})
	movs := []model.MovimientoCaja{
		{Tipo: model.TipoIngreso, Metodo: model.MetodoEfectivo, Monto: decimal.RequireFromString("200.50")},
		{Tipo: model.TipoEgreso, Metodo: model.MetodoEfectivo, Monto: decimal.RequireFromString("50.25")},
		{Tipo: model.TipoIngreso, Metodo: model.MetodoTarjeta, Monto: decimal.RequireFromString("300.00")},
	}

	assert.Equal(t, "650.25", BalancePorMetodo(sesion, movs, model.MetodoEfectivo).String())
	assert.Equal(t, "400", BalancePorMetodo(sesion, movs, model.MetodoTarjeta).String())
	assert.Equal(t, "0", BalancePorMetodo(sesion, movs, model.MetodoBilletera).String())
	assert.Equal(t, "1050.25", TotalEsperado(sesion, movs).String())

	balances := Balances(sesion, movs)
	require.Len(t, balances, len(model.MetodosPago()))
	assert.Equal(t, "1050.25", balances.Total().String())
}

func TestBalanceSinDeriva(t *testing.T) {
	// 10,000 movements of 0.01 must sum exactly — no binary float drift.
	sesion := sesionConApertura(model.Montos{})
	centavo := decimal.RequireFromString("0.01")

	movs := make([]model.MovimientoCaja, 0, 10000)
	for i := 0; i < 10000; i++ {
		movs = append(movs, model.MovimientoCaja{
			Tipo: model.TipoIngreso, Metodo: model.MetodoEfectivo, Monto: centavo,
		})
	}

	assert.Equal(t, "100", TotalEsperado(sesion, movs).String())
	assert.Equal(t, "100", BalancePorMetodo(sesion, movs, model.MetodoEfectivo).String())
}

func TestBalanceIgnoraOtrosCanales(t *testing.T) {
	sesion := sesionConApertura(model.Montos{model.MetodoEfectivo: decimal.NewFromInt(100)})
	movs := []model.MovimientoCaja{
		{Tipo: model.TipoIngreso, Metodo: model.MetodoTarjeta, Monto: decimal.NewFromInt(999)},
	}
	assert.Equal(t, "100", BalancePorMetodo(sesion, movs, model.MetodoEfectivo).String())
}
