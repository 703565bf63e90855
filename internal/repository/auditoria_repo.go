package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/model"
)

// AuditoriaRepository persists consumed caja events. Insert-only.
type AuditoriaRepository interface {
	Create(ctx context.Context, a *model.Auditoria) error
	ListBySesion(ctx context.Context, sesionID uuid.UUID) ([]model.Auditoria, error)
}

type auditoriaRepo struct{ db *gorm.DB }

func NewAuditoriaRepository(db *gorm.DB) AuditoriaRepository { return &auditoriaRepo{db: db} }

func (r *auditoriaRepo) Create(ctx context.Context, a *model.Auditoria) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *auditoriaRepo) ListBySesion(ctx context.Context, sesionID uuid.UUID) ([]model.Auditoria, error) {
	var entradas []model.Auditoria
	err := r.db.WithContext(ctx).
		Where("sesion_id = ?", sesionID).
		Order("registrada_en ASC").
		Find(&entradas).Error
	return entradas, err
}
