//go:build integration

package router

// End-to-end tests against real Postgres + Redis via testcontainers.
// Run with: go test -tags integration ./internal/router/... -v

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"golang.org/x/crypto/bcrypt"

	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/caja"
	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/config"
	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/infra"
	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/model"
	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/repository"
	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/worker"
)

// ── Helpers ──────────────────────────────────────────────────────────────────

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func do(t *testing.T, srv *httptest.Server, method, path string, body *bytes.Buffer, token string) *http.Response {
	t.Helper()
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequest(method, srv.URL+path, body)
	} else {
		req, err = http.NewRequest(method, srv.URL+path, nil)
	}
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

// ── Test Suite Setup ─────────────────────────────────────────────────────────

type testEnv struct {
	server      *httptest.Server
	adminToken  string
	cajeroToken string
	db          repository.AuditoriaRepository
}

func seedUsuario(t *testing.T, db repository.UsuarioRepository, username, password, rol string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	require.NoError(t, err)
	require.NoError(t, db.Create(context.Background(), &model.Usuario{
		ID:           uuid.New(),
		Username:     username,
		Nombre:       username,
		PasswordHash: string(hash),
		Rol:          rol,
		Activo:       true,
	}))
}

func login(t *testing.T, srv *httptest.Server, username, password string) string {
	t.Helper()
	resp := do(t, srv, "POST", "/v1/auth/login",
		jsonBody(t, map[string]string{"username": username, "password": password}), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		AccessToken string `json:"access_token"`
	}
	decodeJSON(t, resp, &body)
	require.NotEmpty(t, body.AccessToken)
	return body.AccessToken
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcPostgres.WithDatabase("caja_test"),
		tcPostgres.WithUsername("caja"),
		tcPostgres.WithPassword("caja"),
		testcontainers.WithWaitStrategy(
			tcPostgres.BasicWaitStrategies()...,
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rdC, err := tcRedis.RunContainer(ctx,
		testcontainers.WithImage("redis:7-alpine"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })

	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := &config.Config{
		Port:               8000,
		Env:                "test",
		JWTSecret:          "test-secret-key",
		JWTExpirationHours: 8,
		JWTRefreshHours:    24,
		DatabaseURL:        pgURL,
		RedisURL:           rdURL,
		WorkerPoolSize:     1,
		ToleranciaArqueo:   decimal.RequireFromString("1.00"),
		AperturaEnCero:     true,
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	require.NoError(t, err)
	require.NoError(t, infra.RunMigrations(db))

	rdb, err := infra.NewRedis(cfg.RedisURL)
	require.NoError(t, err)

	usuarioRepo := repository.NewUsuarioRepository(db)
	seedUsuario(t, usuarioRepo, "admin@e2e.test", "admin-e2e-pass", "administrador")
	seedUsuario(t, usuarioRepo, "cajero@e2e.test", "cajero-e2e-pass", "cajero")

	workerCtx, workerCancel := context.WithCancel(ctx)
	t.Cleanup(workerCancel)
	auditoriaRepo := repository.NewAuditoriaRepository(db)
	worker.StartWorkerPool(workerCtx, rdb, auditoriaRepo, cfg.WorkerPoolSize)

	registro := caja.Nuevo(caja.Opciones{PermitirAperturaEnCero: cfg.AperturaEnCero})
	r, cajaSvc := New(cfg, db, rdb, registro)
	require.NoError(t, cajaSvc.CargarAbiertas(ctx))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testEnv{
		server:      srv,
		adminToken:  login(t, srv, "admin@e2e.test", "admin-e2e-pass"),
		cajeroToken: login(t, srv, "cajero@e2e.test", "cajero-e2e-pass"),
		db:          auditoriaRepo,
	}
}

// ── Tests ────────────────────────────────────────────────────────────────────

// Full register cycle: open, record movements, transfer, close within
// tolerance, then audit rows appear via the Redis worker.
func TestE2E_CicloCompletoDeCaja(t *testing.T) {
	env := setupTestEnv(t)

	abrirResp := do(t, env.server, "POST", "/v1/caja/abrir",
		jsonBody(t, map[string]any{
			"caja_id":          "caja-e2e-1",
			"montos_iniciales": map[string]string{"efectivo": "500.00"},
		}), env.cajeroToken)
	require.Equal(t, http.StatusCreated, abrirResp.StatusCode)
	var sesion struct {
		SesionID string `json:"sesion_id"`
	}
	decodeJSON(t, abrirResp, &sesion)

	movResp := do(t, env.server, "POST", "/v1/caja/movimiento",
		jsonBody(t, map[string]any{
			"sesion_id": sesion.SesionID,
			"tipo":      "ingreso",
			"metodo":    "efectivo",
			"monto":     "200.50",
			"concepto":  "venta mostrador",
		}), env.cajeroToken)
	require.Equal(t, http.StatusCreated, movResp.StatusCode)
	movResp.Body.Close()

	transResp := do(t, env.server, "POST", "/v1/caja/transferencia",
		jsonBody(t, map[string]any{
			"sesion_id": sesion.SesionID,
			"origen":    "efectivo",
			"destino":   "tarjeta",
			"monto":     "100.00",
			"concepto":  "deposito en terminal",
		}), env.cajeroToken)
	require.Equal(t, http.StatusCreated, transResp.StatusCode)
	transResp.Body.Close()

	reporteResp := do(t, env.server, "GET",
		"/v1/caja/sesiones/"+sesion.SesionID+"/reporte", nil, env.cajeroToken)
	require.Equal(t, http.StatusOK, reporteResp.StatusCode)
	var reporte struct {
		TotalEsperado string `json:"total_esperado"`
	}
	decodeJSON(t, reporteResp, &reporte)
	assert.Equal(t, "700.5", reporte.TotalEsperado)

	cerrarResp := do(t, env.server, "POST", "/v1/caja/cerrar",
		jsonBody(t, map[string]any{
			"sesion_id":       sesion.SesionID,
			"total_declarado": "700.50",
		}), env.cajeroToken)
	require.Equal(t, http.StatusOK, cerrarResp.StatusCode)
	var cierre struct {
		Estado string `json:"estado"`
		Arqueo struct {
			DentroDeTolerancia bool `json:"dentro_de_tolerancia"`
		} `json:"arqueo"`
	}
	decodeJSON(t, cerrarResp, &cierre)
	assert.Equal(t, "cerrada", cierre.Estado)
	assert.True(t, cierre.Arqueo.DentroDeTolerancia)

	// Audit rows flow through Redis asynchronously.
	sesionID := uuid.MustParse(sesion.SesionID)
	assert.Eventually(t, func() bool {
		auditorias, err := env.db.ListBySesion(context.Background(), sesionID)
		return err == nil && len(auditorias) >= 5 // apertura + 3 movimientos + cierre
	}, 10*time.Second, 200*time.Millisecond)
}

// Out-of-tolerance close is rejected for everyone and overridable only by
// supervisor or administrador via cerrar-forzado.
func TestE2E_CierreForzadoPorRol(t *testing.T) {
	env := setupTestEnv(t)

	abrirResp := do(t, env.server, "POST", "/v1/caja/abrir",
		jsonBody(t, map[string]any{
			"caja_id":          "caja-e2e-2",
			"montos_iniciales": map[string]string{"efectivo": "300.00"},
		}), env.cajeroToken)
	require.Equal(t, http.StatusCreated, abrirResp.StatusCode)
	var sesion struct {
		SesionID string `json:"sesion_id"`
	}
	decodeJSON(t, abrirResp, &sesion)

	cerrarResp := do(t, env.server, "POST", "/v1/caja/cerrar",
		jsonBody(t, map[string]any{
			"sesion_id":       sesion.SesionID,
			"total_declarado": "250.00",
		}), env.cajeroToken)
	require.Equal(t, http.StatusConflict, cerrarResp.StatusCode)
	var rechazo struct {
		Code string `json:"code"`
	}
	decodeJSON(t, cerrarResp, &rechazo)
	assert.Equal(t, "arqueo_fuera_de_tolerancia", rechazo.Code)

	forzadoBody := map[string]any{
		"sesion_id":       sesion.SesionID,
		"total_declarado": "250.00",
		"observaciones":   "faltante reconocido por supervisor",
	}

	cajeroResp := do(t, env.server, "POST", "/v1/caja/cerrar-forzado",
		jsonBody(t, forzadoBody), env.cajeroToken)
	require.Equal(t, http.StatusForbidden, cajeroResp.StatusCode)
	cajeroResp.Body.Close()

	adminResp := do(t, env.server, "POST", "/v1/caja/cerrar-forzado",
		jsonBody(t, forzadoBody), env.adminToken)
	require.Equal(t, http.StatusOK, adminResp.StatusCode)
	var cierre struct {
		Estado        string `json:"estado"`
		CierreForzado bool   `json:"cierre_forzado"`
	}
	decodeJSON(t, adminResp, &cierre)
	assert.Equal(t, "cerrada", cierre.Estado)
	assert.True(t, cierre.CierreForzado)
}

// Closed sessions survive restarts: historial comes from Postgres.
func TestE2E_HistorialRequiereSupervisor(t *testing.T) {
	env := setupTestEnv(t)

	cajeroResp := do(t, env.server, "GET", "/v1/caja/historial", nil, env.cajeroToken)
	require.Equal(t, http.StatusForbidden, cajeroResp.StatusCode)
	cajeroResp.Body.Close()

	adminResp := do(t, env.server, "GET", "/v1/caja/historial", nil, env.adminToken)
	require.Equal(t, http.StatusOK, adminResp.StatusCode)
	adminResp.Body.Close()
}
