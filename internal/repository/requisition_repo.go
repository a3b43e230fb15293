package repository

import (
	"context"

	"metersquare/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RequisitionFilter struct {
	Status         string
	ProjectID      *uuid.UUID
	RequesterID    *uuid.UUID
	IncludeDeleted bool
	Page           int
	Limit          int
}

type RequisitionRepository interface {
	CreateTx(tx *gorm.DB, r *model.Requisition) error
	UpdateTx(tx *gorm.DB, r *model.Requisition) error
	// ReplaceLinesTx swaps the full line set of a requisition.
	ReplaceLinesTx(tx *gorm.DB, requisitionID uuid.UUID, lines []model.RequisitionLine) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Requisition, error)
	// LockByIDTx locks the requisition row and loads its lines.
	LockByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Requisition, error)
	List(ctx context.Context, filter RequisitionFilter) ([]model.Requisition, int64, error)
	AddEventTx(tx *gorm.DB, e *model.RequisitionEvent) error
	NextSequenceTx(tx *gorm.DB) (int64, error)

	DB() *gorm.DB
}

type requisitionRepo struct{ db *gorm.DB }

func NewRequisitionRepository(db *gorm.DB) RequisitionRepository {
	return &requisitionRepo{db: db}
}

func (r *requisitionRepo) DB() *gorm.DB { return r.db }

func (r *requisitionRepo) CreateTx(tx *gorm.DB, req *model.Requisition) error {
	if err := tx.Omit(clause.Associations).Create(req).Error; err != nil {
		return err
	}
	for i := range req.Lines {
		req.Lines[i].RequisitionID = req.ID
	}
	if len(req.Lines) == 0 {
		return nil
	}
	return tx.Omit(clause.Associations).Create(&req.Lines).Error
}

func (r *requisitionRepo) UpdateTx(tx *gorm.DB, req *model.Requisition) error {
	return tx.Omit(clause.Associations).Save(req).Error
}

func (r *requisitionRepo) ReplaceLinesTx(tx *gorm.DB, requisitionID uuid.UUID, lines []model.RequisitionLine) error {
	if err := tx.Where("requisition_id = ?", requisitionID).Delete(&model.RequisitionLine{}).Error; err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	for i := range lines {
		lines[i].RequisitionID = requisitionID
	}
	return tx.Omit(clause.Associations).Create(&lines).Error
}

func (r *requisitionRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Requisition, error) {
	var req model.Requisition
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Lines.Category").
		Preload("Events", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("id = ?", id).
		First(&req).Error
	return &req, err
}

func (r *requisitionRepo) LockByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Requisition, error) {
	var req model.Requisition
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&req).Error; err != nil {
		return &req, err
	}
	err := tx.Where("requisition_id = ?", id).Order("created_at ASC").Find(&req.Lines).Error
	return &req, err
}

func (r *requisitionRepo) List(ctx context.Context, filter RequisitionFilter) ([]model.Requisition, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Requisition{}).
		Preload("Lines").
		Preload("Lines.Category")
	if !filter.IncludeDeleted {
		q = q.Where("is_deleted = false")
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.ProjectID != nil {
		q = q.Where("project_id = ?", *filter.ProjectID)
	}
	if filter.RequesterID != nil {
		q = q.Where("requester_id = ?", *filter.RequesterID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := paginate(filter.Page, filter.Limit)
	var reqs []model.Requisition
	err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&reqs).Error
	return reqs, total, err
}

func (r *requisitionRepo) AddEventTx(tx *gorm.DB, e *model.RequisitionEvent) error {
	return tx.Create(e).Error
}

func (r *requisitionRepo) NextSequenceTx(tx *gorm.DB) (int64, error) {
	var n int64
	err := tx.Raw("SELECT nextval('requisition_code_seq')").Scan(&n).Error
	return n, err
}
