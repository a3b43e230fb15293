package repository

import (
	"context"

	"metersquare/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ItemFilter narrows item listings.
type ItemFilter struct {
	CategoryID *uuid.UUID
	ProjectID  *uuid.UUID
	Status     string
	ActiveOnly bool
	Search     string
	Page       int
	Limit      int
}

// StatusCount is the number of items of a category in one status.
type StatusCount struct {
	CategoryID uuid.UUID
	Status     model.ItemStatus
	Count      int64
}

type ItemRepository interface {
	CreateTx(tx *gorm.DB, it *model.AssetItem) error
	UpdateTx(tx *gorm.DB, it *model.AssetItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.AssetItem, error)
	// LockByIDsTx locks the given items in id order. Missing ids are simply
	// absent from the result.
	LockByIDsTx(tx *gorm.DB, ids []uuid.UUID) ([]model.AssetItem, error)
	// LockAvailableTx locks up to n available items of a category, oldest first.
	LockAvailableTx(tx *gorm.DB, categoryID uuid.UUID, n int) ([]model.AssetItem, error)
	CodeExistsTx(tx *gorm.DB, code string) (bool, error)
	CountByCategoryTx(tx *gorm.DB, categoryID uuid.UUID) (int64, error)
	CountInStatusTx(tx *gorm.DB, categoryID uuid.UUID, status model.ItemStatus) (int64, error)
	CountByStatus(ctx context.Context) ([]StatusCount, error)
	List(ctx context.Context, filter ItemFilter) ([]model.AssetItem, int64, error)
	ListByCategory(ctx context.Context, categoryID uuid.UUID, activeOnly bool) ([]model.AssetItem, error)
	// ListDispatched returns dispatched items, optionally only those at one project.
	ListDispatched(ctx context.Context, projectID *uuid.UUID) ([]model.AssetItem, error)
}

type itemRepo struct{ db *gorm.DB }

func NewItemRepository(db *gorm.DB) ItemRepository { return &itemRepo{db: db} }

func (r *itemRepo) CreateTx(tx *gorm.DB, it *model.AssetItem) error {
	return tx.Omit(clause.Associations).Create(it).Error
}

func (r *itemRepo) UpdateTx(tx *gorm.DB, it *model.AssetItem) error {
	return tx.Omit(clause.Associations).Save(it).Error
}

func (r *itemRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.AssetItem, error) {
	var it model.AssetItem
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&it).Error
	return &it, err
}

func (r *itemRepo) LockByIDsTx(tx *gorm.DB, ids []uuid.UUID) ([]model.AssetItem, error) {
	var items []model.AssetItem
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id").
		Find(&items).Error
	return items, err
}

func (r *itemRepo) LockAvailableTx(tx *gorm.DB, categoryID uuid.UUID, n int) ([]model.AssetItem, error) {
	var items []model.AssetItem
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("category_id = ? AND current_status = ? AND is_active = true", categoryID, model.ItemAvailable).
		Order("created_at ASC, code ASC").
		Limit(n).
		Find(&items).Error
	return items, err
}

func (r *itemRepo) CodeExistsTx(tx *gorm.DB, code string) (bool, error) {
	var n int64
	err := tx.Model(&model.AssetItem{}).Where("UPPER(code) = UPPER(?)", code).Count(&n).Error
	return n > 0, err
}

func (r *itemRepo) CountByCategoryTx(tx *gorm.DB, categoryID uuid.UUID) (int64, error) {
	var n int64
	err := tx.Model(&model.AssetItem{}).Where("category_id = ?", categoryID).Count(&n).Error
	return n, err
}

func (r *itemRepo) CountInStatusTx(tx *gorm.DB, categoryID uuid.UUID, status model.ItemStatus) (int64, error) {
	var n int64
	err := tx.Model(&model.AssetItem{}).
		Where("category_id = ? AND current_status = ?", categoryID, status).
		Count(&n).Error
	return n, err
}

func (r *itemRepo) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	var rows []StatusCount
	err := r.db.WithContext(ctx).Model(&model.AssetItem{}).
		Select("category_id, current_status AS status, COUNT(*) AS count").
		Group("category_id, current_status").
		Scan(&rows).Error
	return rows, err
}

func (r *itemRepo) List(ctx context.Context, filter ItemFilter) ([]model.AssetItem, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.AssetItem{}).Preload("Category")
	if filter.CategoryID != nil {
		q = q.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.ProjectID != nil {
		q = q.Where("current_project_id = ?", *filter.ProjectID)
	}
	if filter.Status != "" {
		q = q.Where("current_status = ?", filter.Status)
	}
	if filter.ActiveOnly {
		q = q.Where("is_active = true")
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		q = q.Where("code ILIKE ? OR serial_number ILIKE ? OR description ILIKE ?", like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := paginate(filter.Page, filter.Limit)
	var items []model.AssetItem
	err := q.Order("code ASC").Offset(offset).Limit(limit).Find(&items).Error
	return items, total, err
}

func (r *itemRepo) ListByCategory(ctx context.Context, categoryID uuid.UUID, activeOnly bool) ([]model.AssetItem, error) {
	q := r.db.WithContext(ctx).Where("category_id = ?", categoryID)
	if activeOnly {
		q = q.Where("is_active = true")
	}
	var items []model.AssetItem
	err := q.Order("code ASC").Find(&items).Error
	return items, err
}

func (r *itemRepo) ListDispatched(ctx context.Context, projectID *uuid.UUID) ([]model.AssetItem, error) {
	q := r.db.WithContext(ctx).Where("current_status = ?", model.ItemDispatched)
	if projectID != nil {
		q = q.Where("current_project_id = ?", *projectID)
	}
	var items []model.AssetItem
	err := q.Order("code ASC").Find(&items).Error
	return items, err
}
