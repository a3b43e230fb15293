package repository

import (
	"context"

	"metersquare/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MaintenanceFilter struct {
	Status     string
	CategoryID *uuid.UUID
	Page       int
	Limit      int
}

type MaintenanceRepository interface {
	CreateTx(tx *gorm.DB, m *model.AssetMaintenance) error
	UpdateTx(tx *gorm.DB, m *model.AssetMaintenance) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.AssetMaintenance, error)
	LockByIDTx(tx *gorm.DB, id uuid.UUID) (*model.AssetMaintenance, error)
	List(ctx context.Context, filter MaintenanceFilter) ([]model.AssetMaintenance, int64, error)
	// CountOpen counts records still pending or in progress.
	CountOpen(ctx context.Context) (int64, error)
	// OpenQuantities sums open maintenance quantity per category.
	OpenQuantities(ctx context.Context) (map[uuid.UUID]int64, error)

	DB() *gorm.DB
}

type maintenanceRepo struct{ db *gorm.DB }

func NewMaintenanceRepository(db *gorm.DB) MaintenanceRepository {
	return &maintenanceRepo{db: db}
}

func (r *maintenanceRepo) DB() *gorm.DB { return r.db }

func (r *maintenanceRepo) CreateTx(tx *gorm.DB, m *model.AssetMaintenance) error {
	return tx.Omit(clause.Associations).Create(m).Error
}

func (r *maintenanceRepo) UpdateTx(tx *gorm.DB, m *model.AssetMaintenance) error {
	return tx.Omit(clause.Associations).Save(m).Error
}

func (r *maintenanceRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.AssetMaintenance, error) {
	var m model.AssetMaintenance
	err := r.db.WithContext(ctx).
		Preload("Category").
		Preload("Item").
		Where("id = ?", id).
		First(&m).Error
	return &m, err
}

func (r *maintenanceRepo) LockByIDTx(tx *gorm.DB, id uuid.UUID) (*model.AssetMaintenance, error) {
	var m model.AssetMaintenance
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&m).Error
	return &m, err
}

func (r *maintenanceRepo) List(ctx context.Context, filter MaintenanceFilter) ([]model.AssetMaintenance, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.AssetMaintenance{}).
		Preload("Category").
		Preload("Item")
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.CategoryID != nil {
		q = q.Where("category_id = ?", *filter.CategoryID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := paginate(filter.Page, filter.Limit)
	var records []model.AssetMaintenance
	err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&records).Error
	return records, total, err
}

var openMaintenance = []model.MaintenanceStatus{model.MaintenancePending, model.MaintenanceInProgress}

func (r *maintenanceRepo) CountOpen(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.AssetMaintenance{}).
		Where("status IN ?", openMaintenance).
		Count(&n).Error
	return n, err
}

func (r *maintenanceRepo) OpenQuantities(ctx context.Context) (map[uuid.UUID]int64, error) {
	var rows []struct {
		CategoryID uuid.UUID
		Total      int64
	}
	err := r.db.WithContext(ctx).Model(&model.AssetMaintenance{}).
		Select("category_id, SUM(quantity) AS total").
		Where("status IN ?", openMaintenance).
		Group("category_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]int64, len(rows))
	for _, row := range rows {
		out[row.CategoryID] = row.Total
	}
	return out, nil
}
