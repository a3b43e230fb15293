package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"metersquare/internal/dto"
	"metersquare/internal/model"
	"metersquare/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RequisitionService runs the two-stage approval workflow that ends in a
// stock dispatch to the requesting project.
type RequisitionService interface {
	Create(ctx context.Context, actor Actor, req dto.CreateRequisitionRequest) (*dto.RequisitionResponse, error)
	Update(ctx context.Context, actor Actor, id uuid.UUID, req dto.UpdateRequisitionRequest) (*dto.RequisitionResponse, error)
	SendToFirstApprover(ctx context.Context, actor Actor, id uuid.UUID) (*dto.RequisitionResponse, error)
	FirstApprove(ctx context.Context, actor Actor, id uuid.UUID, req dto.ReviewRequest) (*dto.RequisitionResponse, error)
	FirstReject(ctx context.Context, actor Actor, id uuid.UUID, req dto.RejectRequest) (*dto.RequisitionResponse, error)
	SecondApprove(ctx context.Context, actor Actor, id uuid.UUID, req dto.ReviewRequest) (*dto.RequisitionResponse, error)
	SecondReject(ctx context.Context, actor Actor, id uuid.UUID, req dto.RejectRequest) (*dto.RequisitionResponse, error)
	Dispatch(ctx context.Context, actor Actor, id uuid.UUID, req dto.ReviewRequest) (*dto.RequisitionResponse, error)
	ConfirmReceipt(ctx context.Context, actor Actor, id uuid.UUID, req dto.ReviewRequest) (*dto.RequisitionResponse, error)
	Cancel(ctx context.Context, actor Actor, id uuid.UUID, req dto.CancelRequisitionRequest) (*dto.RequisitionResponse, error)
	Delete(ctx context.Context, actor Actor, id uuid.UUID) error
	Get(ctx context.Context, actor Actor, id uuid.UUID) (*dto.RequisitionResponse, error)
	List(ctx context.Context, actor Actor, filter dto.RequisitionFilter) (*dto.RequisitionListResponse, error)
}

type requisitionService struct {
	requisitions repository.RequisitionRepository
	stock        StockRepositories
	projects     repository.ProjectRepository
	users        repository.UserRepository
	ledger       *stockLedger
	notifier     Notifier
	cache        *DashboardCache
}

func NewRequisitionService(
	requisitions repository.RequisitionRepository,
	stock StockRepositories,
	projects repository.ProjectRepository,
	users repository.UserRepository,
	notifier Notifier,
	cache *DashboardCache,
) RequisitionService {
	return &requisitionService{
		requisitions: requisitions,
		stock:        stock,
		projects:     projects,
		users:        users,
		ledger:       newStockLedger(stock),
		notifier:     notifier,
		cache:        cache,
	}
}

// ─── Create / update ─────────────────────────────────────────────────────────

func parseUrgency(raw string) (model.Urgency, error) {
	switch u := model.Urgency(strings.ToLower(strings.TrimSpace(raw))); u {
	case "":
		return model.UrgencyNormal, nil
	case model.UrgencyLow, model.UrgencyNormal, model.UrgencyHigh, model.UrgencyUrgent:
		return u, nil
	}
	return "", newValidation("urgency", "must be low, normal, high or urgent")
}

func parseRequiredDate(raw string) (time.Time, error) {
	d, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, newValidation("required_date", "must be YYYY-MM-DD")
	}
	return d, nil
}

// collectLines turns request lines, or the single category_id/quantity pair
// when no lines are given, into merged requisition lines. Lines of the same
// category are summed and keep the position of their first occurrence.
func collectLines(lines []dto.RequisitionLineRequest, categoryID *string, quantity *int) ([]model.RequisitionLine, error) {
	if len(lines) == 0 && categoryID != nil {
		q := 0
		if quantity != nil {
			q = *quantity
		}
		lines = []dto.RequisitionLineRequest{{CategoryID: *categoryID, Quantity: q}}
	}
	if len(lines) == 0 {
		return nil, newValidation("lines", "at least one line item is required")
	}

	out := make([]model.RequisitionLine, 0, len(lines))
	pos := make(map[uuid.UUID]int, len(lines))
	for i, l := range lines {
		field := fmt.Sprintf("lines[%d]", i)
		id, err := uuid.Parse(l.CategoryID)
		if err != nil {
			return nil, newValidation(field+".category_id", "must be a valid uuid")
		}
		if l.Quantity <= 0 {
			return nil, newValidation(field+".quantity", "must be greater than zero")
		}
		if j, ok := pos[id]; ok {
			out[j].Quantity += l.Quantity
			continue
		}
		pos[id] = len(out)
		out = append(out, model.RequisitionLine{CategoryID: id, Quantity: l.Quantity, Notes: l.Notes})
	}
	return out, nil
}

// checkLineCategoriesTx makes sure every line names an existing, active
// category. Stock is not checked here; that happens at second approval and
// again at dispatch.
func (s *requisitionService) checkLineCategoriesTx(tx *gorm.DB, lines []model.RequisitionLine) error {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.CategoryID)
	}
	cats, err := s.stock.Categories.FindByIDsTx(tx, ids)
	if err != nil {
		return err
	}
	byID := make(map[uuid.UUID]*model.AssetCategory, len(cats))
	for i := range cats {
		byID[cats[i].ID] = &cats[i]
	}
	for i, l := range lines {
		cat, ok := byID[l.CategoryID]
		field := fmt.Sprintf("lines[%d].category_id", i)
		if !ok {
			return newValidation(field, "unknown category")
		}
		if !cat.IsActive {
			return newValidation(field, fmt.Sprintf("category %s is inactive", cat.Code))
		}
	}
	return nil
}

func mirrorFirstLine(r *model.Requisition, lines []model.RequisitionLine) {
	if len(lines) == 0 {
		r.CategoryID = nil
		r.Quantity = 0
		return
	}
	id := lines[0].CategoryID
	r.CategoryID = &id
	r.Quantity = lines[0].Quantity
}

func (s *requisitionService) Create(ctx context.Context, actor Actor, req dto.CreateRequisitionRequest) (*dto.RequisitionResponse, error) {
	if err := actor.require(requesterRoles...); err != nil {
		return nil, err
	}
	projectID, err := parseUUID("project_id", req.ProjectID)
	if err != nil {
		return nil, err
	}
	purpose := strings.TrimSpace(req.Purpose)
	if purpose == "" {
		return nil, newValidation("purpose", "required")
	}
	required, err := parseRequiredDate(req.RequiredDate)
	if err != nil {
		return nil, err
	}
	urgency, err := parseUrgency(req.Urgency)
	if err != nil {
		return nil, err
	}
	lines, err := collectLines(req.Lines, req.CategoryID, req.Quantity)
	if err != nil {
		return nil, err
	}
	if err := ensureProject(ctx, s.projects, projectID); err != nil {
		return nil, err
	}

	r := &model.Requisition{
		RequesterID:  actor.UserID,
		ProjectID:    projectID,
		Purpose:      purpose,
		Urgency:      urgency,
		RequiredDate: required,
		Notes:        req.Notes,
		Status:       model.RequisitionDraft,
		Lines:        lines,
	}
	mirrorFirstLine(r, lines)

	err = runTx(ctx, s.requisitions.DB(), func(tx *gorm.DB) error {
		if err := s.checkLineCategoriesTx(tx, r.Lines); err != nil {
			return err
		}
		seq, err := s.requisitions.NextSequenceTx(tx)
		if err != nil {
			return err
		}
		r.Code = fmt.Sprintf("REQ-%d-%05d", time.Now().Year(), seq)
		if err := s.requisitions.CreateTx(tx, r); err != nil {
			return err
		}
		return s.addEventTx(tx, r, actionCreate, nil, actor, nil, map[string]any{"lines": len(r.Lines)})
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, actor, r.ID)
}

func (s *requisitionService) Update(ctx context.Context, actor Actor, id uuid.UUID, req dto.UpdateRequisitionRequest) (*dto.RequisitionResponse, error) {
	var projectID *uuid.UUID
	if req.ProjectID != nil {
		p, err := parseUUID("project_id", *req.ProjectID)
		if err != nil {
			return nil, err
		}
		if err := ensureProject(ctx, s.projects, p); err != nil {
			return nil, err
		}
		projectID = &p
	}

	_, err := s.apply(ctx, actor, id, actionUpdate, func(tx *gorm.DB, r *model.Requisition) (*string, map[string]any, error) {
		changed := []string{}
		if projectID != nil {
			r.ProjectID = *projectID
			changed = append(changed, "project_id")
		}
		if req.Purpose != nil {
			purpose := strings.TrimSpace(*req.Purpose)
			if purpose == "" {
				return nil, nil, newValidation("purpose", "must not be empty")
			}
			r.Purpose = purpose
			changed = append(changed, "purpose")
		}
		if req.Urgency != nil {
			u, err := parseUrgency(*req.Urgency)
			if err != nil {
				return nil, nil, err
			}
			r.Urgency = u
			changed = append(changed, "urgency")
		}
		if req.RequiredDate != nil {
			d, err := parseRequiredDate(*req.RequiredDate)
			if err != nil {
				return nil, nil, err
			}
			r.RequiredDate = d
			changed = append(changed, "required_date")
		}
		if req.Notes != nil {
			r.Notes = req.Notes
			changed = append(changed, "notes")
		}
		if len(req.Lines) > 0 || req.CategoryID != nil {
			lines, err := collectLines(req.Lines, req.CategoryID, req.Quantity)
			if err != nil {
				return nil, nil, err
			}
			if err := s.checkLineCategoriesTx(tx, lines); err != nil {
				return nil, nil, err
			}
			if err := s.requisitions.ReplaceLinesTx(tx, r.ID, lines); err != nil {
				return nil, nil, err
			}
			r.Lines = lines
			mirrorFirstLine(r, lines)
			changed = append(changed, "lines")
		}
		return nil, map[string]any{"fields": changed}, nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, actor, id)
}

// ─── Workflow transitions ────────────────────────────────────────────────────

// mutation applies the action-specific changes to a locked requisition and
// returns the event notes and metadata.
type mutation func(tx *gorm.DB, r *model.Requisition) (*string, map[string]any, error)

// apply runs one workflow action in a transaction: lock the row, check the
// transition, mutate, move to the target status and log the event.
func (s *requisitionService) apply(ctx context.Context, actor Actor, id uuid.UUID, action requisitionAction, mutate mutation) (*model.Requisition, error) {
	t := requisitionTransitions[action]
	if err := actor.require(t.roles...); err != nil {
		return nil, err
	}

	var r *model.Requisition
	err := runTx(ctx, s.requisitions.DB(), func(tx *gorm.DB) error {
		var err error
		r, err = s.requisitions.LockByIDTx(tx, id)
		if err != nil {
			return notFoundOr(err, "requisition", id)
		}
		if r.IsDeleted {
			return &NotFoundError{Entity: "requisition", ID: id}
		}
		if err := t.authorize(action, actor, r); err != nil {
			return err
		}

		from := r.Status
		notes, meta, err := mutate(tx, r)
		if err != nil {
			return err
		}
		if t.to != "" {
			r.Status = t.to
		}
		if err := s.requisitions.UpdateTx(tx, r); err != nil {
			return err
		}
		return s.addEventTx(tx, r, action, &from, actor, notes, meta)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *requisitionService) addEventTx(tx *gorm.DB, r *model.Requisition, action requisitionAction, from *model.RequisitionStatus, actor Actor, notes *string, meta map[string]any) error {
	e := &model.RequisitionEvent{
		RequisitionID: r.ID,
		Action:        string(action),
		FromStatus:    from,
		ToStatus:      r.Status,
		ActorID:       actor.UserID,
		ActorRole:     actor.Role,
		Notes:         notes,
	}
	if len(meta) > 0 {
		b, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		e.Metadata = datatypes.JSON(b)
	}
	return s.requisitions.AddEventTx(tx, e)
}

func (s *requisitionService) SendToFirstApprover(ctx context.Context, actor Actor, id uuid.UUID) (*dto.RequisitionResponse, error) {
	r, err := s.apply(ctx, actor, id, actionSend, func(tx *gorm.DB, r *model.Requisition) (*string, map[string]any, error) {
		if len(r.Lines) == 0 {
			return nil, nil, newValidation("lines", "a requisition needs at least one line item")
		}
		meta := map[string]any{}
		if r.RejectionReason != nil {
			meta["previous_rejection"] = *r.RejectionReason
		}
		r.ClearReviews()
		return nil, meta, nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, EventRequisitionSent, r, actor, nil, func(ctx context.Context) ([]model.User, error) {
		return s.firstApprovers(ctx, r.ProjectID)
	})
	return s.Get(ctx, actor, id)
}

func (s *requisitionService) FirstApprove(ctx context.Context, actor Actor, id uuid.UUID, req dto.ReviewRequest) (*dto.RequisitionResponse, error) {
	r, err := s.apply(ctx, actor, id, actionFirstApprove, func(tx *gorm.DB, r *model.Requisition) (*string, map[string]any, error) {
		if err := s.checkFirstApprover(ctx, actor, r); err != nil {
			return nil, nil, err
		}
		now := time.Now()
		decision := model.DecisionApproved
		reviewer := actor.UserID
		r.FirstReviewerID = &reviewer
		r.FirstReviewedAt = &now
		r.FirstReviewNotes = req.Notes
		r.FirstDecision = &decision
		return req.Notes, nil, nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, EventRequisitionFirstApproved, r, actor, nil, s.usersInRole(model.RoleProductionManager))
	return s.Get(ctx, actor, id)
}

func (s *requisitionService) FirstReject(ctx context.Context, actor Actor, id uuid.UUID, req dto.RejectRequest) (*dto.RequisitionResponse, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, newValidation("reason", "required")
	}
	r, err := s.apply(ctx, actor, id, actionFirstReject, func(tx *gorm.DB, r *model.Requisition) (*string, map[string]any, error) {
		if err := s.checkFirstApprover(ctx, actor, r); err != nil {
			return nil, nil, err
		}
		now := time.Now()
		decision := model.DecisionRejected
		reviewer := actor.UserID
		r.FirstReviewerID = &reviewer
		r.FirstReviewedAt = &now
		r.FirstReviewNotes = &reason
		r.FirstDecision = &decision
		r.RejectionReason = &reason
		return &reason, nil, nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, EventRequisitionFirstRejected, r, actor, &reason, s.requester(r))
	return s.Get(ctx, actor, id)
}

func (s *requisitionService) SecondApprove(ctx context.Context, actor Actor, id uuid.UUID, req dto.ReviewRequest) (*dto.RequisitionResponse, error) {
	r, err := s.apply(ctx, actor, id, actionSecondApprove, func(tx *gorm.DB, r *model.Requisition) (*string, map[string]any, error) {
		if err := s.checkStockTx(tx, r.Lines); err != nil {
			return nil, nil, err
		}
		now := time.Now()
		decision := model.DecisionApproved
		reviewer := actor.UserID
		r.SecondReviewerID = &reviewer
		r.SecondReviewedAt = &now
		r.SecondReviewNotes = req.Notes
		r.SecondDecision = &decision
		return req.Notes, nil, nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, EventRequisitionSecondApproved, r, actor, nil, s.usersInRole(model.RoleStoreKeeper))
	return s.Get(ctx, actor, id)
}

func (s *requisitionService) SecondReject(ctx context.Context, actor Actor, id uuid.UUID, req dto.RejectRequest) (*dto.RequisitionResponse, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, newValidation("reason", "required")
	}
	r, err := s.apply(ctx, actor, id, actionSecondReject, func(tx *gorm.DB, r *model.Requisition) (*string, map[string]any, error) {
		now := time.Now()
		decision := model.DecisionRejected
		reviewer := actor.UserID
		r.SecondReviewerID = &reviewer
		r.SecondReviewedAt = &now
		r.SecondReviewNotes = &reason
		r.SecondDecision = &decision
		r.RejectionReason = &reason
		return &reason, nil, nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, EventRequisitionSecondRejected, r, actor, &reason, s.requester(r))
	return s.Get(ctx, actor, id)
}

// Dispatch books the stock of every line against the requisition's project.
// Any shortage aborts the whole dispatch and leaves the requisition in
// second_approved.
func (s *requisitionService) Dispatch(ctx context.Context, actor Actor, id uuid.UUID, req dto.ReviewRequest) (*dto.RequisitionResponse, error) {
	var res *ledgerResult
	r, err := s.apply(ctx, actor, id, actionDispatch, func(tx *gorm.DB, r *model.Requisition) (*string, map[string]any, error) {
		lines := make([]dispatchLine, 0, len(r.Lines))
		for _, l := range r.Lines {
			lines = append(lines, dispatchLine{CategoryID: l.CategoryID, Quantity: l.Quantity, AutoSelect: true})
		}
		code := r.Code
		reqID := r.ID
		mc := movementContext{
			ProjectID:       r.ProjectID,
			Actor:           actor,
			ReferenceNumber: &code,
			RequisitionID:   &reqID,
			Notes:           req.Notes,
		}
		var err error
		if res, err = s.ledger.dispatchTx(tx, mc, lines); err != nil {
			return nil, nil, err
		}
		now := time.Now()
		by := actor.UserID
		r.DispatchedBy = &by
		r.DispatchedAt = &now
		r.DispatchNotes = req.Notes
		return req.Notes, map[string]any{"movements": len(res.Movements)}, nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.invalidate(ctx)
	s.notify(ctx, EventRequisitionDispatched, r, actor, nil, s.requester(r))

	resp, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	resp.Movements = mapMovements(res.Movements)
	return resp, nil
}

func (s *requisitionService) ConfirmReceipt(ctx context.Context, actor Actor, id uuid.UUID, req dto.ReviewRequest) (*dto.RequisitionResponse, error) {
	_, err := s.apply(ctx, actor, id, actionConfirmReceipt, func(tx *gorm.DB, r *model.Requisition) (*string, map[string]any, error) {
		now := time.Now()
		r.ReceivedAt = &now
		r.ReceiptNotes = req.Notes
		return req.Notes, nil, nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, actor, id)
}

func (s *requisitionService) Cancel(ctx context.Context, actor Actor, id uuid.UUID, req dto.CancelRequisitionRequest) (*dto.RequisitionResponse, error) {
	_, err := s.apply(ctx, actor, id, actionCancel, func(tx *gorm.DB, r *model.Requisition) (*string, map[string]any, error) {
		now := time.Now()
		r.CancelledAt = &now
		r.CancellationReason = req.Reason
		return req.Reason, nil, nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, actor, id)
}

func (s *requisitionService) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	_, err := s.apply(ctx, actor, id, actionDelete, func(tx *gorm.DB, r *model.Requisition) (*string, map[string]any, error) {
		if r.RequesterID != actor.UserID && !actor.Is(model.RoleAdmin) {
			return nil, nil, notAuthorized("only the requester or an admin may delete requisition %s", r.Code)
		}
		now := time.Now()
		by := actor.UserID
		r.IsDeleted = true
		r.DeletedAt = &now
		r.DeletedBy = &by
		return nil, nil, nil
	})
	return err
}

// checkStockTx compares every line with the current available counter and
// reports all shortages at once. It does not lock; dispatch re-checks under
// lock.
func (s *requisitionService) checkStockTx(tx *gorm.DB, lines []model.RequisitionLine) error {
	need := make(map[uuid.UUID]int, len(lines))
	ids := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		if _, ok := need[l.CategoryID]; !ok {
			ids = append(ids, l.CategoryID)
		}
		need[l.CategoryID] += l.Quantity
	}
	cats, err := s.stock.Categories.FindByIDsTx(tx, ids)
	if err != nil {
		return err
	}
	byID := make(map[uuid.UUID]*model.AssetCategory, len(cats))
	for i := range cats {
		byID[cats[i].ID] = &cats[i]
	}

	var shortages []Shortage
	for _, id := range ids {
		cat, ok := byID[id]
		if !ok {
			return &NotFoundError{Entity: "asset_category", ID: id}
		}
		if !cat.IsActive {
			return newConflict(ReasonInactive, "category %s is inactive", cat.Code)
		}
		if need[id] > cat.AvailableQuantity {
			shortages = append(shortages, Shortage{
				CategoryID: cat.ID, CategoryCode: cat.Code,
				Requested: need[id], Available: cat.AvailableQuantity,
			})
		}
	}
	if len(shortages) > 0 {
		return &InsufficientStockError{Shortages: shortages}
	}
	return nil
}

// ─── Authorization helpers ───────────────────────────────────────────────────

// firstApprovers resolves the project managers entitled to review
// requisitions of a project: those assigned to it, else every active one.
func (s *requisitionService) firstApprovers(ctx context.Context, projectID uuid.UUID) ([]model.User, error) {
	ids, err := s.projects.AssignedUserIDs(ctx, projectID, model.RoleProjectManager)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		users, err := s.users.FindByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		if len(users) > 0 {
			return users, nil
		}
	}
	return s.users.ListActiveByRole(ctx, model.RoleProjectManager)
}

func (s *requisitionService) checkFirstApprover(ctx context.Context, actor Actor, r *model.Requisition) error {
	if actor.Is(model.RoleAdmin) {
		return nil
	}
	approvers, err := s.firstApprovers(ctx, r.ProjectID)
	if err != nil {
		return err
	}
	for _, u := range approvers {
		if u.ID == actor.UserID {
			return nil
		}
	}
	return notAuthorized("user is not a first approver for the project of requisition %s", r.Code)
}

// ─── Notifications ───────────────────────────────────────────────────────────

type recipientResolver func(ctx context.Context) ([]model.User, error)

func (s *requisitionService) usersInRole(role model.Role) recipientResolver {
	return func(ctx context.Context) ([]model.User, error) {
		return s.users.ListActiveByRole(ctx, role)
	}
}

func (s *requisitionService) requester(r *model.Requisition) recipientResolver {
	return func(ctx context.Context) ([]model.User, error) {
		u, err := s.users.FindByID(ctx, r.RequesterID)
		if err != nil {
			return nil, err
		}
		return []model.User{*u}, nil
	}
}

// notify runs after commit. Failures are logged and never surface to the
// caller.
func (s *requisitionService) notify(ctx context.Context, event string, r *model.Requisition, actor Actor, reason *string, resolve recipientResolver) {
	if s.notifier == nil {
		return
	}
	logger := log.With().Str("event", event).Str("requisition", r.Code).Logger()

	users, err := resolve(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("notification: could not resolve recipients")
		return
	}
	if len(users) == 0 {
		logger.Info().Msg("notification: no recipients")
		return
	}

	n := dto.Notification{
		Event:           event,
		RequisitionID:   r.ID.String(),
		RequisitionCode: r.Code,
		ProjectID:       r.ProjectID.String(),
		Status:          string(r.Status),
		ActorID:         actor.UserID.String(),
		ActorName:       actor.Name,
		ActorRole:       string(actor.Role),
		Reason:          reason,
	}
	for _, u := range users {
		n.Recipients = append(n.Recipients, dto.Recipient{UserID: u.ID.String(), Name: u.Name, Email: u.Email})
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		logger.Error().Err(err).Msg("notification: enqueue failed")
	}
}

// ─── Queries ─────────────────────────────────────────────────────────────────

func (s *requisitionService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*dto.RequisitionResponse, error) {
	if err := actor.authenticate(); err != nil {
		return nil, err
	}
	r, err := s.requisitions.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "requisition", id)
	}
	if r.IsDeleted {
		return nil, &NotFoundError{Entity: "requisition", ID: id}
	}
	if actor.Is(model.RoleSiteEngineer) && r.RequesterID != actor.UserID {
		return nil, notAuthorized("site engineers only see their own requisitions")
	}
	resp := mapRequisition(r)

	if r.Status == model.RequisitionDispatched || r.Status == model.RequisitionCompleted {
		reqID := r.ID
		ms, _, err := s.stock.Movements.List(ctx, repository.MovementFilter{RequisitionID: &reqID, Page: 1, Limit: 500})
		if err != nil {
			return nil, err
		}
		resp.Movements = mapMovements(ms)
	}
	return &resp, nil
}

func (s *requisitionService) List(ctx context.Context, actor Actor, filter dto.RequisitionFilter) (*dto.RequisitionListResponse, error) {
	if err := actor.authenticate(); err != nil {
		return nil, err
	}
	f := repository.RequisitionFilter{
		Status:         filter.Status,
		IncludeDeleted: filter.IncludeDeleted && actor.Is(model.RoleAdmin),
		Page:           filter.Page,
		Limit:          filter.Limit,
	}
	var err error
	if f.ProjectID, err = parseOptionalUUID("project_id", filter.ProjectID); err != nil {
		return nil, err
	}
	if f.RequesterID, err = parseOptionalUUID("requester_id", filter.RequesterID); err != nil {
		return nil, err
	}
	if actor.Is(model.RoleSiteEngineer) {
		self := actor.UserID
		f.RequesterID = &self
	}

	reqs, total, err := s.requisitions.List(ctx, f)
	if err != nil {
		return nil, err
	}
	data := make([]dto.RequisitionResponse, 0, len(reqs))
	for i := range reqs {
		data = append(data, mapRequisition(&reqs[i]))
	}
	return &dto.RequisitionListResponse{
		Data:       data,
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages(total, filter.Limit),
	}, nil
}
