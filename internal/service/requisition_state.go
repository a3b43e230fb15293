package service

import (
	"metersquare/internal/model"
)

type requisitionAction string

const (
	actionCreate         requisitionAction = "create"
	actionUpdate         requisitionAction = "update"
	actionSend           requisitionAction = "send_to_first_approver"
	actionFirstApprove   requisitionAction = "first_approve"
	actionFirstReject    requisitionAction = "first_reject"
	actionSecondApprove  requisitionAction = "second_approve"
	actionSecondReject   requisitionAction = "second_reject"
	actionDispatch       requisitionAction = "dispatch"
	actionConfirmReceipt requisitionAction = "confirm_receipt"
	actionCancel         requisitionAction = "cancel"
	actionDelete         requisitionAction = "delete"
)

// transition describes one edge of the requisition workflow. An empty to
// leaves the status unchanged.
type transition struct {
	from  []model.RequisitionStatus
	to    model.RequisitionStatus
	roles []model.Role
	// requesterOnly restricts the action to whoever created the requisition.
	requesterOnly bool
}

var (
	revisable = []model.RequisitionStatus{
		model.RequisitionDraft,
		model.RequisitionFirstRejected,
		model.RequisitionSecondRejected,
	}
	preDispatch = []model.RequisitionStatus{
		model.RequisitionDraft,
		model.RequisitionPendingFirstApproval,
		model.RequisitionFirstRejected,
		model.RequisitionPendingSecondApproval,
		model.RequisitionSecondRejected,
		model.RequisitionSecondApproved,
	}
	deletable = []model.RequisitionStatus{
		model.RequisitionDraft,
		model.RequisitionCancelled,
		model.RequisitionCompleted,
		model.RequisitionFirstRejected,
		model.RequisitionSecondRejected,
	}

	requesterRoles = []model.Role{model.RoleSiteEngineer, model.RoleAdmin}
)

var requisitionTransitions = map[requisitionAction]transition{
	actionUpdate: {
		from: revisable, roles: requesterRoles, requesterOnly: true,
	},
	actionSend: {
		from: revisable, to: model.RequisitionPendingFirstApproval,
		roles: requesterRoles, requesterOnly: true,
	},
	actionFirstApprove: {
		from:  []model.RequisitionStatus{model.RequisitionPendingFirstApproval},
		to:    model.RequisitionPendingSecondApproval,
		roles: []model.Role{model.RoleProjectManager, model.RoleAdmin},
	},
	actionFirstReject: {
		from:  []model.RequisitionStatus{model.RequisitionPendingFirstApproval},
		to:    model.RequisitionFirstRejected,
		roles: []model.Role{model.RoleProjectManager, model.RoleAdmin},
	},
	actionSecondApprove: {
		from:  []model.RequisitionStatus{model.RequisitionPendingSecondApproval},
		to:    model.RequisitionSecondApproved,
		roles: []model.Role{model.RoleProductionManager, model.RoleAdmin},
	},
	actionSecondReject: {
		from:  []model.RequisitionStatus{model.RequisitionPendingSecondApproval},
		to:    model.RequisitionSecondRejected,
		roles: []model.Role{model.RoleProductionManager, model.RoleAdmin},
	},
	actionDispatch: {
		from:  []model.RequisitionStatus{model.RequisitionSecondApproved},
		to:    model.RequisitionDispatched,
		roles: []model.Role{model.RoleStoreKeeper, model.RoleAdmin},
	},
	actionConfirmReceipt: {
		from: []model.RequisitionStatus{model.RequisitionDispatched},
		to:   model.RequisitionCompleted,
		roles: requesterRoles, requesterOnly: true,
	},
	actionCancel: {
		from: preDispatch, to: model.RequisitionCancelled,
		roles: requesterRoles, requesterOnly: true,
	},
	actionDelete: {
		from: deletable, roles: requesterRoles,
	},
}

func (t transition) allows(s model.RequisitionStatus) bool {
	for _, f := range t.from {
		if f == s {
			return true
		}
	}
	return false
}

// authorize checks role, ownership and current status for action on r.
func (t transition) authorize(action requisitionAction, actor Actor, r *model.Requisition) error {
	if err := actor.require(t.roles...); err != nil {
		return err
	}
	if t.requesterOnly && r.RequesterID != actor.UserID {
		return notAuthorized("only the requester may %s requisition %s", action, r.Code)
	}
	if !t.allows(r.Status) {
		return newConflict(ReasonWrongStatus, "requisition %s is %s and cannot %s", r.Code, r.Status, action)
	}
	return nil
}
