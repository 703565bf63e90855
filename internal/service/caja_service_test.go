package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/caja"
	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/config"
	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/dto"
	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/model"
)

// ── Full in-memory CajaRepository ────────────────────────────────────────────

type fullCajaRepo struct {
	sesiones    map[uuid.UUID]model.SesionCaja
	movimientos []model.MovimientoCaja

	failCreateSesion bool
}

func newFullCajaRepo() *fullCajaRepo {
	return &fullCajaRepo{sesiones: make(map[uuid.UUID]model.SesionCaja)}
}

func (r *fullCajaRepo) CreateSesion(_ context.Context, s *model.SesionCaja) error {
	if r.failCreateSesion {
		return errors.New("db down")
	}
	r.sesiones[s.ID] = *s
	return nil
}

func (r *fullCajaRepo) UpdateSesion(_ context.Context, s *model.SesionCaja) error {
	r.sesiones[s.ID] = *s
	return nil
}

func (r *fullCajaRepo) FindSesionByID(_ context.Context, id uuid.UUID) (*model.SesionCaja, error) {
	s, ok := r.sesiones[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return &s, nil
}

func (r *fullCajaRepo) FindSesionesAbiertas(_ context.Context) ([]model.SesionCaja, error) {
	var abiertas []model.SesionCaja
	for _, s := range r.sesiones {
		if s.Estado == model.EstadoAbierta {
			abiertas = append(abiertas, s)
		}
	}
	return abiertas, nil
}

func (r *fullCajaRepo) CreateMovimientos(_ context.Context, movs []model.MovimientoCaja) error {
	r.movimientos = append(r.movimientos, movs...)
	return nil
}

func (r *fullCajaRepo) ListMovimientos(_ context.Context, sesionID uuid.UUID) ([]model.MovimientoCaja, error) {
	var result []model.MovimientoCaja
	for _, m := range r.movimientos {
		if m.SesionID == sesionID {
			result = append(result, m)
		}
	}
	return result, nil
}

func (r *fullCajaRepo) ListSesionesCerradas(_ context.Context, page, limit int) ([]model.SesionCaja, int64, error) {
	var cerradas []model.SesionCaja
	for _, s := range r.sesiones {
		if s.Estado == model.EstadoCerrada {
			cerradas = append(cerradas, s)
		}
	}
	return cerradas, int64(len(cerradas)), nil
}

// ── Fake publisher ───────────────────────────────────────────────────────────

type fakePublisher struct {
	publicados []caja.Evento
	fail       bool
}

func (p *fakePublisher) Publicar(_ context.Context, ev caja.Evento) error {
	if p.fail {
		return errors.New("redis down")
	}
	p.publicados = append(p.publicados, ev)
	return nil
}

// ── Helpers ──────────────────────────────────────────────────────────────────

func newTestService(t *testing.T) (CajaService, *fullCajaRepo, *fakePublisher) {
	t.Helper()
	repo := newFullCajaRepo()
	pub := &fakePublisher{}
	registro := caja.Nuevo(caja.Opciones{PermitirAperturaEnCero: true})
	cfg := &config.Config{ToleranciaArqueo: decimal.RequireFromString("1.00")}
	return NewCajaService(registro, repo, pub, cfg), repo, pub
}

func abrirSesion(t *testing.T, svc CajaService, cajaID string) *dto.SesionResponse {
	t.Helper()
	resp, err := svc.Abrir(context.Background(), uuid.New(), "Cajero Test", dto.AbrirCajaRequest{
		CajaID: cajaID,
		MontosIniciales: map[string]decimal.Decimal{
			"efectivo": decimal.RequireFromString("100.00"),
		},
	})
	require.NoError(t, err)
	return resp
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestAbrirPersisteYPublica(t *testing.T) {
	svc, repo, pub := newTestService(t)

	resp := abrirSesion(t, svc, "caja-1")

	assert.Equal(t, "abierta", resp.Estado)
	assert.Len(t, repo.sesiones, 1)
	require.Len(t, pub.publicados, 1)
	assert.Equal(t, caja.EventoSesionAbierta, pub.publicados[0].Nombre())
}

func TestAbrirDuplicadaNoPersiste(t *testing.T) {
	svc, repo, _ := newTestService(t)
	abrirSesion(t, svc, "caja-1")

	_, err := svc.Abrir(context.Background(), uuid.New(), "Otro", dto.AbrirCajaRequest{
		CajaID:          "caja-1",
		MontosIniciales: map[string]decimal.Decimal{"efectivo": decimal.RequireFromString("50.00")},
	})

	assert.ErrorIs(t, err, caja.ErrCajaYaAbierta)
	assert.Len(t, repo.sesiones, 1)
}

func TestAbrirFallaPersistencia(t *testing.T) {
	svc, repo, pub := newTestService(t)
	repo.failCreateSesion = true

	_, err := svc.Abrir(context.Background(), uuid.New(), "Cajero", dto.AbrirCajaRequest{
		CajaID:          "caja-1",
		MontosIniciales: map[string]decimal.Decimal{"efectivo": decimal.RequireFromString("50.00")},
	})

	require.Error(t, err)
	// Nothing published when persistence failed.
	assert.Empty(t, pub.publicados)
}

func TestRegistrarMovimientoPersisteYPublica(t *testing.T) {
	svc, repo, pub := newTestService(t)
	sesion := abrirSesion(t, svc, "caja-1")

	resp, err := svc.RegistrarMovimiento(context.Background(), uuid.New(), dto.MovimientoRequest{
		SesionID: sesion.SesionID,
		Tipo:     "ingreso",
		Metodo:   "efectivo",
		Monto:    decimal.RequireFromString("250.00"),
		Concepto: "venta mostrador",
	})

	require.NoError(t, err)
	assert.Equal(t, "ingreso", resp.Tipo)
	assert.Len(t, repo.movimientos, 1)
	require.Len(t, pub.publicados, 2)
	assert.Equal(t, caja.EventoMovimientoRegistrado, pub.publicados[1].Nombre())
}

func TestTransferirPersisteAmbosLados(t *testing.T) {
	svc, repo, pub := newTestService(t)
	sesion := abrirSesion(t, svc, "caja-1")

	legs, err := svc.Transferir(context.Background(), uuid.New(), dto.TransferenciaRequest{
		SesionID: sesion.SesionID,
		Origen:   "efectivo",
		Destino:  "tarjeta",
		Monto:    decimal.RequireFromString("40.00"),
		Concepto: "deposito en terminal",
	})

	require.NoError(t, err)
	require.Len(t, legs, 2)
	assert.Equal(t, "egreso", legs[0].Tipo)
	assert.Equal(t, "ingreso", legs[1].Tipo)
	require.NotNil(t, legs[0].Referencia)
	require.NotNil(t, legs[1].Referencia)
	assert.Equal(t, *legs[0].Referencia, *legs[1].Referencia)
	assert.Len(t, repo.movimientos, 2)
	assert.Len(t, pub.publicados, 3) // apertura + 2 legs
}

func TestCerrarActualizaYPublica(t *testing.T) {
	svc, repo, pub := newTestService(t)
	sesion := abrirSesion(t, svc, "caja-1")

	resp, err := svc.Cerrar(context.Background(), dto.CerrarCajaRequest{
		SesionID:       sesion.SesionID,
		TotalDeclarado: decimal.RequireFromString("100.00"),
	})

	require.NoError(t, err)
	assert.Equal(t, "cerrada", resp.Estado)
	require.NotNil(t, resp.Arqueo)
	assert.True(t, resp.Arqueo.DentroDeTolerancia)

	id := uuid.MustParse(sesion.SesionID)
	assert.Equal(t, model.EstadoCerrada, repo.sesiones[id].Estado)
	assert.Equal(t, caja.EventoSesionCerrada, pub.publicados[len(pub.publicados)-1].Nombre())
}

func TestCerrarFueraDeToleranciaNoPersiste(t *testing.T) {
	svc, repo, _ := newTestService(t)
	sesion := abrirSesion(t, svc, "caja-1")

	_, err := svc.Cerrar(context.Background(), dto.CerrarCajaRequest{
		SesionID:       sesion.SesionID,
		TotalDeclarado: decimal.RequireFromString("150.00"),
	})

	var fuera *caja.FueraDeToleranciaError
	require.ErrorAs(t, err, &fuera)
	assert.Equal(t, "50", fuera.Resultado.Diferencia.String())

	id := uuid.MustParse(sesion.SesionID)
	assert.Equal(t, model.EstadoAbierta, repo.sesiones[id].Estado)
}

func TestCerrarForzadoPersiste(t *testing.T) {
	svc, repo, _ := newTestService(t)
	sesion := abrirSesion(t, svc, "caja-1")

	resp, err := svc.CerrarForzado(context.Background(), dto.CerrarForzadoRequest{
		SesionID:       sesion.SesionID,
		TotalDeclarado: decimal.RequireFromString("150.00"),
		Observaciones:  "diferencia autorizada por supervisor",
	})

	require.NoError(t, err)
	assert.Equal(t, "cerrada", resp.Estado)
	assert.True(t, resp.CierreForzado)

	id := uuid.MustParse(sesion.SesionID)
	assert.Equal(t, model.EstadoCerrada, repo.sesiones[id].Estado)
}

func TestPublicacionFallidaNoRevierte(t *testing.T) {
	svc, repo, pub := newTestService(t)
	pub.fail = true

	resp := abrirSesion(t, svc, "caja-1")

	// The transition committed even though the event could not be published.
	assert.Equal(t, "abierta", resp.Estado)
	assert.Len(t, repo.sesiones, 1)
}

func TestEstadoYSesionActiva(t *testing.T) {
	svc, _, _ := newTestService(t)

	estado := svc.Estado(context.Background(), "caja-1")
	assert.Equal(t, "cerrada", estado.Estado)
	assert.Nil(t, estado.SesionID)

	sesion := abrirSesion(t, svc, "caja-1")

	estado = svc.Estado(context.Background(), "caja-1")
	assert.Equal(t, "abierta", estado.Estado)
	require.NotNil(t, estado.SesionID)
	assert.Equal(t, sesion.SesionID, *estado.SesionID)

	activa, err := svc.SesionActiva(context.Background(), "caja-1")
	require.NoError(t, err)
	require.NotNil(t, activa)
	assert.Equal(t, sesion.SesionID, activa.SesionID)

	ninguna, err := svc.SesionActiva(context.Background(), "caja-2")
	require.NoError(t, err)
	assert.Nil(t, ninguna)
}

func TestReporteDesdeRegistro(t *testing.T) {
	svc, _, _ := newTestService(t)
	sesion := abrirSesion(t, svc, "caja-1")

	_, err := svc.RegistrarMovimiento(context.Background(), uuid.New(), dto.MovimientoRequest{
		SesionID: sesion.SesionID,
		Tipo:     "ingreso",
		Metodo:   "tarjeta",
		Monto:    decimal.RequireFromString("75.50"),
		Concepto: "venta con tarjeta",
	})
	require.NoError(t, err)

	reporte, err := svc.Reporte(context.Background(), uuid.MustParse(sesion.SesionID))
	require.NoError(t, err)
	assert.Equal(t, "175.5", reporte.TotalEsperado.String())
	assert.Equal(t, "75.5", reporte.Balances["tarjeta"].String())
	assert.Equal(t, 1, reporte.CantidadMovimientos)
}

func TestMovimientosFallbackARepositorio(t *testing.T) {
	svc, repo, _ := newTestService(t)

	// Session that only exists in the database, as after a restart.
	sesionID := uuid.New()
	repo.sesiones[sesionID] = model.SesionCaja{
		ID:     sesionID,
		CajaID: "caja-9",
		Estado: model.EstadoCerrada,
	}
	repo.movimientos = append(repo.movimientos, model.MovimientoCaja{
		ID:       uuid.New(),
		SesionID: sesionID,
		CajaID:   "caja-9",
		Tipo:     model.TipoIngreso,
		Metodo:   model.MetodoEfectivo,
		Monto:    decimal.RequireFromString("10.00"),
		Concepto: "venta",
	})

	movs, err := svc.Movimientos(context.Background(), sesionID, caja.Filtro{})
	require.NoError(t, err)
	assert.Len(t, movs, 1)

	tipo := model.TipoEgreso
	vacios, err := svc.Movimientos(context.Background(), sesionID, caja.Filtro{Tipo: &tipo})
	require.NoError(t, err)
	assert.Empty(t, vacios)
}

func TestCargarAbiertasRehidrata(t *testing.T) {
	svc, repo, _ := newTestService(t)
	sesion := abrirSesion(t, svc, "caja-1")

	// Fresh registry simulating a process restart against the same repo.
	registro2 := caja.Nuevo(caja.Opciones{PermitirAperturaEnCero: true})
	svc2 := NewCajaService(registro2, repo, &fakePublisher{},
		&config.Config{ToleranciaArqueo: decimal.RequireFromString("1.00")})

	require.NoError(t, svc2.CargarAbiertas(context.Background()))

	estado := svc2.Estado(context.Background(), "caja-1")
	assert.Equal(t, "abierta", estado.Estado)
	require.NotNil(t, estado.SesionID)
	assert.Equal(t, sesion.SesionID, *estado.SesionID)
}
