package caja

// balance.go — pure balance derivation. Balances are always computed by
// replaying the ledger against the opening amounts; there is no stored
// balance field that can drift out of sync.

import (
	"github.com/shopspring/decimal"

	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/model"
)

// BalancePorMetodo returns the expected balance for one channel:
// opening amount + ingresos − egresos on that channel. Transfer legs are
// plain ingreso/egreso entries, so they fall out of the same sum.
func BalancePorMetodo(sesion model.SesionCaja, movimientos []model.MovimientoCaja, metodo model.MetodoPago) decimal.Decimal {
	balance := sesion.MontosIniciales[metodo]
	for _, m := range movimientos {
		if m.Metodo != metodo {
			continue
		}
		switch m.Tipo {
		case model.TipoIngreso:
			balance = balance.Add(m.Monto)
		case model.TipoEgreso:
			balance = balance.Sub(m.Monto)
		}
	}
	return balance
}

// Balances derives the expected balance for every recognized channel.
func Balances(sesion model.SesionCaja, movimientos []model.MovimientoCaja) model.Montos {
	out := make(model.Montos, len(model.MetodosPago()))
	for _, metodo := range model.MetodosPago() {
		out[metodo] = BalancePorMetodo(sesion, movimientos, metodo)
	}
	return out
}

// TotalEsperado is the aggregate expected balance across all channels:
// opening total + Σingresos − Σegresos.
func TotalEsperado(sesion model.SesionCaja, movimientos []model.MovimientoCaja) decimal.Decimal {
	total := sesion.TotalInicial
	for _, m := range movimientos {
		switch m.Tipo {
		case model.TipoIngreso:
			total = total.Add(m.Monto)
		case model.TipoEgreso:
			total = total.Sub(m.Monto)
		}
	}
	return total
}
