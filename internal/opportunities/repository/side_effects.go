package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const caseTypeLostDeal = "Lost Deal"

// FindLeadCompany returns the company behind the opportunity's lead.
func (t *txRepository) FindLeadCompany(ctx context.Context, organizationID, leadID uuid.UUID) (Company, error) {
	var c Company
	err := t.db.QueryRow(ctx, `
		SELECT c.id, c.organization_id, c.name, c.website, c.email, c.phone, c.industry,
			c.billing_street, c.billing_address_number, c.billing_postcode, c.billing_city, c.billing_country
		FROM leads l
		JOIN companies c ON c.id = l.company_id AND c.organization_id = l.organization_id
		WHERE l.id = $1 AND l.organization_id = $2
	`, leadID, organizationID).Scan(
		&c.ID, &c.OrganizationID, &c.Name, &c.Website, &c.Email, &c.Phone, &c.Industry,
		&c.BillingStreet, &c.BillingAddressNumber, &c.BillingPostcode, &c.BillingCity, &c.BillingCountry,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Company{}, ErrNotFound
	}
	if err != nil {
		return Company{}, err
	}
	return c, nil
}

func (t *txRepository) FindAccountByCompany(ctx context.Context, organizationID, companyID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := t.db.QueryRow(ctx, `
		SELECT id FROM accounts WHERE organization_id = $1 AND company_id = $2
	`, organizationID, companyID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrNotFound
	}
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (t *txRepository) CreateCompany(ctx context.Context, c Company) error {
	_, err := t.db.Exec(ctx, `
		INSERT INTO companies (id, organization_id, name) VALUES ($1, $2, $3)`,
		c.ID, c.OrganizationID, c.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to insert company: %w", err)
	}
	return nil
}

// CreateAccount inserts an account and returns its id. The per-company
// unique index turns a racing insert into a reuse of the existing row.
// CreateAccount inserts the account, or returns the account already held by
// the same company. created reports whether a row was inserted.
func (t *txRepository) CreateAccount(ctx context.Context, a Account) (uuid.UUID, bool, error) {
	var (
		id      uuid.UUID
		created bool
	)
	err := t.db.QueryRow(ctx, `
		INSERT INTO accounts (
			id, organization_id, name, company_id, lead_id, email, phone, website, industry,
			billing_street, billing_address_number, billing_postcode, billing_city, billing_country, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (organization_id, company_id) WHERE company_id IS NOT NULL
		DO UPDATE SET name = accounts.name
		RETURNING id, (xmax = 0)`,
		a.ID, a.OrganizationID, a.Name, a.CompanyID, a.LeadID, a.Email, a.Phone, a.Website, a.Industry,
		a.BillingStreet, a.BillingAddressNumber, a.BillingPostcode, a.BillingCity, a.BillingCountry, a.CreatedBy,
	).Scan(&id, &created)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to insert account: %w", err)
	}
	return id, created, nil
}

func (t *txRepository) LinkAccount(ctx context.Context, organizationID, opportunityID, accountID uuid.UUID) error {
	tag, err := t.db.Exec(ctx, `
		UPDATE opportunities SET account_id = $3, updated_at = now()
		WHERE id = $1 AND organization_id = $2`,
		opportunityID, organizationID, accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to link account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepository) FindLostDealCase(ctx context.Context, organizationID, opportunityID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := t.db.QueryRow(ctx, `
		SELECT id FROM cases
		WHERE organization_id = $1 AND opportunity_id = $2 AND case_type = $3
	`, organizationID, opportunityID, caseTypeLostDeal).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrNotFound
	}
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// CreateLostDealCase inserts the case with its contacts and assignees. It
// reports created=false, with the existing id, when the opportunity already
// has one.
func (t *txRepository) CreateLostDealCase(ctx context.Context, c Case) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := t.db.QueryRow(ctx, `
		INSERT INTO cases (
			id, organization_id, name, status, priority, case_type, account_id, opportunity_id,
			description, closed_on, created_by, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, true)
		ON CONFLICT (opportunity_id) WHERE case_type = 'Lost Deal' DO NOTHING
		RETURNING id`,
		c.ID, c.OrganizationID, c.Name, c.Status, c.Priority, caseTypeLostDeal, c.AccountID, c.OpportunityID,
		c.Description, c.ClosedOn, c.CreatedBy,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		existing, findErr := t.FindLostDealCase(ctx, c.OrganizationID, c.OpportunityID)
		if findErr != nil {
			return uuid.Nil, false, findErr
		}
		return existing, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to insert case: %w", err)
	}

	for _, contactID := range c.ContactIDs {
		if _, err := t.db.Exec(ctx, `INSERT INTO case_contacts (case_id, contact_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, id, contactID); err != nil {
			return uuid.Nil, false, fmt.Errorf("failed to link case contact: %w", err)
		}
	}
	for _, userID := range c.AssigneeIDs {
		if _, err := t.db.Exec(ctx, `INSERT INTO case_assignees (case_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, id, userID); err != nil {
			return uuid.Nil, false, fmt.Errorf("failed to link case assignee: %w", err)
		}
	}
	return id, true, nil
}
