package repository

import (
	"context"

	"metersquare/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CategoryFilter narrows category listings.
type CategoryFilter struct {
	ActiveOnly   bool
	TrackingMode string
	Search       string
	Page         int
	Limit        int
}

// CategoryRepository is the data access contract for asset categories.
// Counter writes always go through the *Tx methods on a row locked with
// LockByIDTx.
type CategoryRepository interface {
	CreateTx(tx *gorm.DB, c *model.AssetCategory) error
	UpdateTx(tx *gorm.DB, c *model.AssetCategory) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.AssetCategory, error)
	FindByIDsTx(tx *gorm.DB, ids []uuid.UUID) ([]model.AssetCategory, error)
	LockByIDTx(tx *gorm.DB, id uuid.UUID) (*model.AssetCategory, error)
	CodeExistsTx(tx *gorm.DB, code string) (bool, error)
	List(ctx context.Context, filter CategoryFilter) ([]model.AssetCategory, int64, error)
	ListAll(ctx context.Context) ([]model.AssetCategory, error)

	// DB exposes the underlying *gorm.DB so services can open transactions.
	DB() *gorm.DB
}

type categoryRepo struct{ db *gorm.DB }

func NewCategoryRepository(db *gorm.DB) CategoryRepository { return &categoryRepo{db: db} }

func (r *categoryRepo) DB() *gorm.DB { return r.db }

func (r *categoryRepo) CreateTx(tx *gorm.DB, c *model.AssetCategory) error {
	return tx.Omit(clause.Associations).Create(c).Error
}

func (r *categoryRepo) UpdateTx(tx *gorm.DB, c *model.AssetCategory) error {
	return tx.Omit(clause.Associations).Save(c).Error
}

func (r *categoryRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.AssetCategory, error) {
	var c model.AssetCategory
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	return &c, err
}

func (r *categoryRepo) FindByIDsTx(tx *gorm.DB, ids []uuid.UUID) ([]model.AssetCategory, error) {
	var cats []model.AssetCategory
	err := tx.Where("id IN ?", ids).Order("id").Find(&cats).Error
	return cats, err
}

// LockByIDTx reads the category with SELECT ... FOR UPDATE.
func (r *categoryRepo) LockByIDTx(tx *gorm.DB, id uuid.UUID) (*model.AssetCategory, error) {
	var c model.AssetCategory
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&c).Error
	return &c, err
}

func (r *categoryRepo) CodeExistsTx(tx *gorm.DB, code string) (bool, error) {
	var n int64
	err := tx.Model(&model.AssetCategory{}).Where("UPPER(code) = UPPER(?)", code).Count(&n).Error
	return n > 0, err
}

func (r *categoryRepo) List(ctx context.Context, filter CategoryFilter) ([]model.AssetCategory, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.AssetCategory{})
	if filter.ActiveOnly {
		q = q.Where("is_active = true")
	}
	if filter.TrackingMode != "" {
		q = q.Where("tracking_mode = ?", filter.TrackingMode)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		q = q.Where("name ILIKE ? OR code ILIKE ? OR description ILIKE ?", like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := paginate(filter.Page, filter.Limit)
	var cats []model.AssetCategory
	err := q.Order("name ASC").Offset(offset).Limit(limit).Find(&cats).Error
	return cats, total, err
}

func (r *categoryRepo) ListAll(ctx context.Context) ([]model.AssetCategory, error) {
	var cats []model.AssetCategory
	err := r.db.WithContext(ctx).Order("code ASC").Find(&cats).Error
	return cats, err
}
