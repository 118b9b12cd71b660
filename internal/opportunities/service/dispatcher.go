package service

import (
	"context"
	"errors"
	"strings"

	"salescrm_backend/internal/opportunities/domain"
	"salescrm_backend/internal/opportunities/repository"
	"salescrm_backend/platform/apperr"
	"salescrm_backend/platform/logger"
	"salescrm_backend/platform/phone"

	"github.com/google/uuid"
)

// Side effect kinds reported in logs and events.
const (
	SideEffectAccount = "account"
	SideEffectCase    = "case"
)

const (
	lostCaseNamePrefix = "Lost Opportunity - "
	lostCaseStatus     = "open"
	lostCasePriority   = "medium"
)

// SideEffectTx is the transactional surface the dispatcher writes through.
type SideEffectTx interface {
	repository.AccountStore
	repository.CaseStore
}

// DispatchResult describes the dependent record resolved for a terminal stage.
type DispatchResult struct {
	Kind      string
	AccountID *uuid.UUID
	CaseID    *uuid.UUID
	Created   bool
}

// EntityID returns whichever record was resolved.
func (r DispatchResult) EntityID() uuid.UUID {
	switch {
	case r.AccountID != nil:
		return *r.AccountID
	case r.CaseID != nil:
		return *r.CaseID
	default:
		return uuid.Nil
	}
}

// Dispatcher creates or links the Account for won opportunities and the
// lost-deal Case for lost ones. Every decision is an existence lookup against
// the store, so running it again for the same opportunity creates nothing.
type Dispatcher struct {
	log *logger.Logger
}

func NewDispatcher(log *logger.Logger) *Dispatcher {
	return &Dispatcher{log: log}
}

// Dispatch runs inside the stage-change transaction, after the stage write.
// An error rolls back the whole update.
func (d *Dispatcher) Dispatch(ctx context.Context, tx SideEffectTx, opp domain.Opportunity, actorID uuid.UUID) (DispatchResult, error) {
	switch opp.Stage {
	case domain.StageClosedWon:
		return d.resolveAccount(ctx, tx, opp, actorID)
	case domain.StageClosedLost:
		return d.openLostCase(ctx, tx, opp, actorID)
	default:
		return DispatchResult{}, nil
	}
}

func (d *Dispatcher) resolveAccount(ctx context.Context, tx SideEffectTx, opp domain.Opportunity, actorID uuid.UUID) (DispatchResult, error) {
	result := DispatchResult{Kind: SideEffectAccount}
	if opp.AccountID != nil {
		id := *opp.AccountID
		result.AccountID = &id
		d.log.Debug("account already linked", "opportunity_id", opp.ID, "account_id", id)
		return result, nil
	}

	company, err := d.sourceCompany(ctx, tx, opp)
	if err != nil {
		return DispatchResult{}, err
	}

	var accountID uuid.UUID
	if company != nil {
		accountID, err = tx.FindAccountByCompany(ctx, opp.OrganizationID, company.ID)
		switch {
		case err == nil:
		case errors.Is(err, repository.ErrNotFound):
			accountID = uuid.Nil
		default:
			return DispatchResult{}, dispatchError("find account", err)
		}
	}

	if accountID == uuid.Nil {
		if company == nil {
			created := repository.Company{ID: uuid.New(), OrganizationID: opp.OrganizationID, Name: opp.Name}
			if err := tx.CreateCompany(ctx, created); err != nil {
				return DispatchResult{}, dispatchError("create company", err)
			}
			company = &created
		}

		var created bool
		accountID, created, err = tx.CreateAccount(ctx, accountFromCompany(*company, opp, actorID))
		if err != nil {
			return DispatchResult{}, dispatchError("create account", err)
		}
		result.Created = created
	}

	if err := tx.LinkAccount(ctx, opp.OrganizationID, opp.ID, accountID); err != nil {
		return DispatchResult{}, dispatchError("link account", err)
	}
	result.AccountID = &accountID
	return result, nil
}

// sourceCompany returns the company behind the opportunity's lead, if any.
func (d *Dispatcher) sourceCompany(ctx context.Context, tx SideEffectTx, opp domain.Opportunity) (*repository.Company, error) {
	if opp.LeadID == nil {
		return nil, nil
	}
	company, err := tx.FindLeadCompany(ctx, opp.OrganizationID, *opp.LeadID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dispatchError("find lead company", err)
	}
	return &company, nil
}

func accountFromCompany(company repository.Company, opp domain.Opportunity, actorID uuid.UUID) repository.Account {
	companyID := company.ID
	account := repository.Account{
		ID:                   uuid.New(),
		OrganizationID:       opp.OrganizationID,
		Name:                 company.Name,
		CompanyID:            &companyID,
		LeadID:               opp.LeadID,
		Email:                company.Email,
		Website:              company.Website,
		Industry:             company.Industry,
		BillingStreet:        company.BillingStreet,
		BillingAddressNumber: company.BillingAddressNumber,
		BillingPostcode:      company.BillingPostcode,
		BillingCity:          company.BillingCity,
		BillingCountry:       company.BillingCountry,
		CreatedBy:            actorID,
	}
	if company.Phone != nil && strings.TrimSpace(*company.Phone) != "" {
		normalized := phone.NormalizeE164(*company.Phone)
		account.Phone = &normalized
	}
	return account
}

func (d *Dispatcher) openLostCase(ctx context.Context, tx SideEffectTx, opp domain.Opportunity, actorID uuid.UUID) (DispatchResult, error) {
	result := DispatchResult{Kind: SideEffectCase}

	existing, err := tx.FindLostDealCase(ctx, opp.OrganizationID, opp.ID)
	switch {
	case err == nil:
		result.CaseID = &existing
		d.log.Debug("lost deal case already exists", "opportunity_id", opp.ID, "case_id", existing)
		return result, nil
	case !errors.Is(err, repository.ErrNotFound):
		return DispatchResult{}, dispatchError("find lost deal case", err)
	}

	caseID, created, err := tx.CreateLostDealCase(ctx, repository.Case{
		ID:             uuid.New(),
		OrganizationID: opp.OrganizationID,
		Name:           lostCaseNamePrefix + opp.Name,
		Status:         lostCaseStatus,
		Priority:       lostCasePriority,
		AccountID:      opp.AccountID,
		OpportunityID:  opp.ID,
		Description:    opp.Reason,
		ClosedOn:       opp.ClosedOn,
		CreatedBy:      actorID,
		ContactIDs:     append([]uuid.UUID(nil), opp.ContactIDs...),
		AssigneeIDs:    append([]uuid.UUID(nil), opp.AssigneeIDs...),
	})
	if err != nil {
		return DispatchResult{}, dispatchError("create lost deal case", err)
	}
	result.CaseID = &caseID
	result.Created = created
	return result, nil
}

func dispatchError(op string, err error) error {
	if _, ok := apperr.As(err); ok {
		return err
	}
	return apperr.Internal("failed to apply close side effect", err).WithOp(op)
}
