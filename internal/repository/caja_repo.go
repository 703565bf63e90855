package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/model"
)

// CajaRepository is the persistence collaborator for sessions and their
// ledgers. It is invoked by the service AFTER the in-memory core accepts a
// transition; the core itself never touches it. Movements only have
// Create — no update, no delete.
type CajaRepository interface {
	CreateSesion(ctx context.Context, s *model.SesionCaja) error
	UpdateSesion(ctx context.Context, s *model.SesionCaja) error
	FindSesionByID(ctx context.Context, id uuid.UUID) (*model.SesionCaja, error)
	// FindSesionesAbiertas returns every open session, used to rehydrate
	// the registry at boot.
	FindSesionesAbiertas(ctx context.Context) ([]model.SesionCaja, error)
	CreateMovimientos(ctx context.Context, movs []model.MovimientoCaja) error
	ListMovimientos(ctx context.Context, sesionID uuid.UUID) ([]model.MovimientoCaja, error)
	ListSesionesCerradas(ctx context.Context, page, limit int) ([]model.SesionCaja, int64, error)
}

type cajaRepo struct{ db *gorm.DB }

func NewCajaRepository(db *gorm.DB) CajaRepository { return &cajaRepo{db: db} }

func (r *cajaRepo) CreateSesion(ctx context.Context, s *model.SesionCaja) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *cajaRepo) UpdateSesion(ctx context.Context, s *model.SesionCaja) error {
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *cajaRepo) FindSesionByID(ctx context.Context, id uuid.UUID) (*model.SesionCaja, error) {
	var s model.SesionCaja
	err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error
	return &s, err
}

func (r *cajaRepo) FindSesionesAbiertas(ctx context.Context) ([]model.SesionCaja, error) {
	var sesiones []model.SesionCaja
	err := r.db.WithContext(ctx).Where("estado = ?", model.EstadoAbierta).Find(&sesiones).Error
	return sesiones, err
}

func (r *cajaRepo) CreateMovimientos(ctx context.Context, movs []model.MovimientoCaja) error {
	if len(movs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&movs).Error
}

func (r *cajaRepo) ListMovimientos(ctx context.Context, sesionID uuid.UUID) ([]model.MovimientoCaja, error) {
	var movs []model.MovimientoCaja
	err := r.db.WithContext(ctx).
		Where("sesion_id = ?", sesionID).
		Order("registrado_en ASC, id ASC").
		Find(&movs).Error
	return movs, err
}

func (r *cajaRepo) ListSesionesCerradas(ctx context.Context, page, limit int) ([]model.SesionCaja, int64, error) {
	var total int64
	q := r.db.WithContext(ctx).Model(&model.SesionCaja{}).Where("estado = ?", model.EstadoCerrada)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var sesiones []model.SesionCaja
	err := q.Order("cerrada_en DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&sesiones).Error
	return sesiones, total, err
}
