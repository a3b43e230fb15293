package repository

import (
	"context"
	"time"

	"metersquare/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MovementFilter defines filters for listing ledger movements.
type MovementFilter struct {
	CategoryID *uuid.UUID
	ProjectID  *uuid.UUID
	Type       string
	// RequisitionID narrows to movements booked by one requisition dispatch.
	RequisitionID *uuid.UUID
	From          *time.Time
	To            *time.Time
	Page          int
	Limit         int
}

// Balance is the ledger aggregate for one category at one project.
type Balance struct {
	CategoryID uuid.UUID
	ProjectID  uuid.UUID
	Dispatched int64
	Returned   int64
}

// Outstanding is dispatched minus returned.
func (b Balance) Outstanding() int64 { return b.Dispatched - b.Returned }

// MovementRepository is append-only: there is no update or delete.
type MovementRepository interface {
	CreateTx(tx *gorm.DB, m *model.AssetMovement) error
	List(ctx context.Context, filter MovementFilter) ([]model.AssetMovement, int64, error)
	Recent(ctx context.Context, categoryID *uuid.UUID, n int) ([]model.AssetMovement, error)
	// OutstandingTx returns SUM(DISPATCH) - SUM(RETURN) for a category at a project.
	OutstandingTx(tx *gorm.DB, categoryID, projectID uuid.UUID) (int64, error)
	// CategoryOutstandingTx sums the outstanding balance of a category over all projects.
	CategoryOutstandingTx(tx *gorm.DB, categoryID uuid.UUID) (int64, error)
	// Balances aggregates every category+project pair, optionally for one project.
	Balances(ctx context.Context, projectID *uuid.UUID) ([]Balance, error)
}

type movementRepo struct{ db *gorm.DB }

func NewMovementRepository(db *gorm.DB) MovementRepository { return &movementRepo{db: db} }

func (r *movementRepo) CreateTx(tx *gorm.DB, m *model.AssetMovement) error {
	return tx.Omit("Category", "Item").Create(m).Error
}

func (r *movementRepo) List(ctx context.Context, filter MovementFilter) ([]model.AssetMovement, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.AssetMovement{}).
		Preload("Category").
		Preload("Item")
	if filter.CategoryID != nil {
		q = q.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.ProjectID != nil {
		q = q.Where("project_id = ?", *filter.ProjectID)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.RequisitionID != nil {
		q = q.Where("requisition_id = ?", *filter.RequisitionID)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at < ?", *filter.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := paginate(filter.Page, filter.Limit)
	var movements []model.AssetMovement
	err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&movements).Error
	return movements, total, err
}

func (r *movementRepo) Recent(ctx context.Context, categoryID *uuid.UUID, n int) ([]model.AssetMovement, error) {
	q := r.db.WithContext(ctx).Preload("Category").Preload("Item")
	if categoryID != nil {
		q = q.Where("category_id = ?", *categoryID)
	}
	var movements []model.AssetMovement
	err := q.Order("created_at DESC").Limit(n).Find(&movements).Error
	return movements, err
}

const balanceSelect = `category_id, project_id,
	COALESCE(SUM(CASE WHEN type = 'DISPATCH' THEN quantity ELSE 0 END), 0) AS dispatched,
	COALESCE(SUM(CASE WHEN type = 'RETURN' THEN quantity ELSE 0 END), 0) AS returned`

func (r *movementRepo) OutstandingTx(tx *gorm.DB, categoryID, projectID uuid.UUID) (int64, error) {
	var b Balance
	err := tx.Model(&model.AssetMovement{}).
		Select(balanceSelect).
		Where("category_id = ? AND project_id = ?", categoryID, projectID).
		Group("category_id, project_id").
		Scan(&b).Error
	return b.Outstanding(), err
}

func (r *movementRepo) CategoryOutstandingTx(tx *gorm.DB, categoryID uuid.UUID) (int64, error) {
	var n int64
	err := tx.Model(&model.AssetMovement{}).
		Select("COALESCE(SUM(CASE WHEN type = 'DISPATCH' THEN quantity ELSE -quantity END), 0)").
		Where("category_id = ?", categoryID).
		Scan(&n).Error
	return n, err
}

func (r *movementRepo) Balances(ctx context.Context, projectID *uuid.UUID) ([]Balance, error) {
	q := r.db.WithContext(ctx).Model(&model.AssetMovement{}).Select(balanceSelect)
	if projectID != nil {
		q = q.Where("project_id = ?", *projectID)
	}
	var rows []Balance
	err := q.Group("category_id, project_id").Order("project_id, category_id").Scan(&rows).Error
	return rows, err
}
