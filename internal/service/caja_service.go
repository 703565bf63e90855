package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/caja"
	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/config"
	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/dto"
	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/model"
	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/repository"
)

// EventPublisher is how caja events leave the service after a transition
// commits. Satisfied by worker.Dispatcher; tests plug in a fake.
type EventPublisher interface {
	Publicar(ctx context.Context, ev caja.Evento) error
}

type CajaService interface {
	Abrir(ctx context.Context, usuarioID uuid.UUID, usuarioNombre string, req dto.AbrirCajaRequest) (*dto.SesionResponse, error)
	RegistrarMovimiento(ctx context.Context, usuarioID uuid.UUID, req dto.MovimientoRequest) (*dto.MovimientoResponse, error)
	Transferir(ctx context.Context, usuarioID uuid.UUID, req dto.TransferenciaRequest) ([]dto.MovimientoResponse, error)
	Cerrar(ctx context.Context, req dto.CerrarCajaRequest) (*dto.SesionResponse, error)
	CerrarForzado(ctx context.Context, req dto.CerrarForzadoRequest) (*dto.SesionResponse, error)
	// Estado is the gate collaborators use before operations that require
	// an open register (e.g. invoice issuance).
	Estado(ctx context.Context, cajaID string) dto.EstadoCajaResponse
	SesionActiva(ctx context.Context, cajaID string) (*dto.SesionResponse, error)
	Reporte(ctx context.Context, sesionID uuid.UUID) (*dto.ReporteCajaResponse, error)
	Movimientos(ctx context.Context, sesionID uuid.UUID, filtro caja.Filtro) ([]dto.MovimientoResponse, error)
	Historial(ctx context.Context, page, limit int) ([]dto.SesionResponse, int64, error)
	// CargarAbiertas rehydrates open sessions from the database into the
	// registry at boot.
	CargarAbiertas(ctx context.Context) error
}

type cajaService struct {
	registro *caja.Registro
	repo     repository.CajaRepository
	eventos  EventPublisher
	cfg      *config.Config
}

func NewCajaService(registro *caja.Registro, repo repository.CajaRepository, eventos EventPublisher, cfg *config.Config) CajaService {
	return &cajaService{registro: registro, repo: repo, eventos: eventos, cfg: cfg}
}

// ── Abrir ────────────────────────────────────────────────────────────────────

func (s *cajaService) Abrir(ctx context.Context, usuarioID uuid.UUID, usuarioNombre string, req dto.AbrirCajaRequest) (*dto.SesionResponse, error) {
	montos := make(model.Montos, len(req.MontosIniciales))
	for metodo, monto := range req.MontosIniciales {
		montos[model.MetodoPago(metodo)] = monto
	}

	sesion, evento, err := s.registro.Abrir(req.CajaID, usuarioID, usuarioNombre, montos)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateSesion(ctx, &sesion); err != nil {
		return nil, fmt.Errorf("persistir apertura: %w", err)
	}
	s.publicar(ctx, evento)

	resp := dto.NewSesionResponse(sesion)
	return &resp, nil
}

// ── Movimientos ──────────────────────────────────────────────────────────────

func (s *cajaService) RegistrarMovimiento(ctx context.Context, usuarioID uuid.UUID, req dto.MovimientoRequest) (*dto.MovimientoResponse, error) {
	sesionID, err := uuid.Parse(req.SesionID)
	if err != nil {
		return nil, fmt.Errorf("sesion_id inválido: %w", err)
	}

	mov, evento, err := s.registro.RegistrarMovimiento(sesionID,
		model.TipoMovimiento(req.Tipo), req.Concepto, model.MetodoPago(req.Metodo),
		req.Monto, req.Referencia, req.Notas, usuarioID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateMovimientos(ctx, []model.MovimientoCaja{mov}); err != nil {
		return nil, fmt.Errorf("persistir movimiento: %w", err)
	}
	s.publicar(ctx, evento)

	resp := dto.NewMovimientoResponse(mov)
	return &resp, nil
}

func (s *cajaService) Transferir(ctx context.Context, usuarioID uuid.UUID, req dto.TransferenciaRequest) ([]dto.MovimientoResponse, error) {
	sesionID, err := uuid.Parse(req.SesionID)
	if err != nil {
		return nil, fmt.Errorf("sesion_id inválido: %w", err)
	}

	legs, eventos, err := s.registro.Transferir(sesionID,
		model.MetodoPago(req.Origen), model.MetodoPago(req.Destino),
		req.Monto, req.Concepto, usuarioID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateMovimientos(ctx, legs); err != nil {
		return nil, fmt.Errorf("persistir transferencia: %w", err)
	}
	for _, ev := range eventos {
		s.publicar(ctx, ev)
	}

	out := make([]dto.MovimientoResponse, 0, len(legs))
	for _, leg := range legs {
		out = append(out, dto.NewMovimientoResponse(leg))
	}
	return out, nil
}

// ── Cierre ───────────────────────────────────────────────────────────────────

func (s *cajaService) Cerrar(ctx context.Context, req dto.CerrarCajaRequest) (*dto.SesionResponse, error) {
	sesionID, err := uuid.Parse(req.SesionID)
	if err != nil {
		return nil, fmt.Errorf("sesion_id inválido: %w", err)
	}

	sesion, evento, err := s.registro.Cerrar(sesionID, req.TotalDeclarado, s.cfg.ToleranciaArqueo, req.Observaciones)
	if err != nil {
		return nil, err
	}
	return s.finalizarCierre(ctx, sesion, evento)
}

func (s *cajaService) CerrarForzado(ctx context.Context, req dto.CerrarForzadoRequest) (*dto.SesionResponse, error) {
	sesionID, err := uuid.Parse(req.SesionID)
	if err != nil {
		return nil, fmt.Errorf("sesion_id inválido: %w", err)
	}

	sesion, evento, err := s.registro.CerrarForzado(sesionID, req.TotalDeclarado, s.cfg.ToleranciaArqueo, req.Observaciones)
	if err != nil {
		return nil, err
	}
	return s.finalizarCierre(ctx, sesion, evento)
}

func (s *cajaService) finalizarCierre(ctx context.Context, sesion model.SesionCaja, evento caja.SesionCerrada) (*dto.SesionResponse, error) {
	if err := s.repo.UpdateSesion(ctx, &sesion); err != nil {
		// The registry already closed the session; surface the error so an
		// operator reconciles the durable record instead of hiding it.
		log.Error().Err(err).Str("sesion_id", sesion.ID.String()).Msg("cierre aceptado pero no persistido")
		return nil, fmt.Errorf("persistir cierre: %w", err)
	}
	s.publicar(ctx, evento)

	resp := dto.NewSesionResponse(sesion)
	return &resp, nil
}

// ── Consultas ────────────────────────────────────────────────────────────────

func (s *cajaService) Estado(_ context.Context, cajaID string) dto.EstadoCajaResponse {
	resp := dto.EstadoCajaResponse{CajaID: cajaID, Estado: string(s.registro.Estado(cajaID))}
	if sesion, ok := s.registro.SesionActiva(cajaID); ok {
		id := sesion.ID.String()
		resp.SesionID = &id
	}
	return resp
}

func (s *cajaService) SesionActiva(_ context.Context, cajaID string) (*dto.SesionResponse, error) {
	sesion, ok := s.registro.SesionActiva(cajaID)
	if !ok {
		return nil, nil
	}
	resp := dto.NewSesionResponse(sesion)
	return &resp, nil
}

func (s *cajaService) Reporte(ctx context.Context, sesionID uuid.UUID) (*dto.ReporteCajaResponse, error) {
	sesion, movimientos, err := s.cargarSesion(ctx, sesionID)
	if err != nil {
		return nil, err
	}

	balances := caja.Balances(sesion, movimientos)
	porMetodo := make(map[string]decimal.Decimal, len(balances))
	for metodo, balance := range balances {
		porMetodo[string(metodo)] = balance
	}

	return &dto.ReporteCajaResponse{
		Sesion:              dto.NewSesionResponse(sesion),
		Balances:            porMetodo,
		TotalEsperado:       caja.TotalEsperado(sesion, movimientos),
		CantidadMovimientos: len(movimientos),
	}, nil
}

func (s *cajaService) Movimientos(ctx context.Context, sesionID uuid.UUID, filtro caja.Filtro) ([]dto.MovimientoResponse, error) {
	movimientos, err := s.registro.Filtrar(sesionID, filtro)
	if errors.Is(err, caja.ErrSesionNoEncontrada) {
		// Closed in a previous process: read the durable ledger instead.
		todos, repoErr := s.repo.ListMovimientos(ctx, sesionID)
		if repoErr != nil {
			return nil, caja.ErrSesionNoEncontrada
		}
		movimientos = movimientos[:0]
		for _, m := range todos {
			if filtro.Aplica(m) {
				movimientos = append(movimientos, m)
			}
		}
	} else if err != nil {
		return nil, err
	}

	out := make([]dto.MovimientoResponse, 0, len(movimientos))
	for _, m := range movimientos {
		out = append(out, dto.NewMovimientoResponse(m))
	}
	return out, nil
}

func (s *cajaService) Historial(ctx context.Context, page, limit int) ([]dto.SesionResponse, int64, error) {
	sesiones, total, err := s.repo.ListSesionesCerradas(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}
	out := make([]dto.SesionResponse, 0, len(sesiones))
	for _, sesion := range sesiones {
		out = append(out, dto.NewSesionResponse(sesion))
	}
	return out, total, nil
}

// ── Arranque ─────────────────────────────────────────────────────────────────

func (s *cajaService) CargarAbiertas(ctx context.Context) error {
	abiertas, err := s.repo.FindSesionesAbiertas(ctx)
	if err != nil {
		return fmt.Errorf("cargar sesiones abiertas: %w", err)
	}
	for _, sesion := range abiertas {
		movimientos, err := s.repo.ListMovimientos(ctx, sesion.ID)
		if err != nil {
			return fmt.Errorf("cargar movimientos de %s: %w", sesion.ID, err)
		}
		if err := s.registro.Rehidratar(sesion, movimientos); err != nil {
			return fmt.Errorf("rehidratar sesión %s: %w", sesion.ID, err)
		}
		log.Info().
			Str("caja_id", sesion.CajaID).
			Str("sesion_id", sesion.ID.String()).
			Int("movimientos", len(movimientos)).
			Msg("sesión abierta rehidratada")
	}
	return nil
}

// ── Internos ─────────────────────────────────────────────────────────────────

// cargarSesion reads a session and its ledger, preferring the registry and
// falling back to the database for cycles closed before this process started.
func (s *cajaService) cargarSesion(ctx context.Context, sesionID uuid.UUID) (model.SesionCaja, []model.MovimientoCaja, error) {
	sesion, err := s.registro.Sesion(sesionID)
	if err == nil {
		movimientos, merr := s.registro.Movimientos(sesionID)
		if merr != nil {
			return model.SesionCaja{}, nil, merr
		}
		return sesion, movimientos, nil
	}
	if !errors.Is(err, caja.ErrSesionNoEncontrada) {
		return model.SesionCaja{}, nil, err
	}

	persistida, repoErr := s.repo.FindSesionByID(ctx, sesionID)
	if repoErr != nil {
		return model.SesionCaja{}, nil, caja.ErrSesionNoEncontrada
	}
	movimientos, repoErr := s.repo.ListMovimientos(ctx, sesionID)
	if repoErr != nil {
		return model.SesionCaja{}, nil, repoErr
	}
	return *persistida, movimientos, nil
}

// publicar emits an event after a committed transition. A publish failure
// never rolls the transition back; it is logged for the audit pipeline.
func (s *cajaService) publicar(ctx context.Context, ev caja.Evento) {
	if s.eventos == nil {
		return
	}
	if err := s.eventos.Publicar(ctx, ev); err != nil {
		log.Error().Err(err).Str("evento", ev.Nombre()).Msg("no se pudo publicar evento de caja")
	}
}
