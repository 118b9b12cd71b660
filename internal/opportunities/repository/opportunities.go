package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"salescrm_backend/internal/opportunities/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const opportunityColumns = `
	id, organization_id, name, stage, meeting_date, feedback, expected_close_date,
	result, probability, attachment_links, contract_attachment, reason,
	account_id, lead_id, closed_by, closed_on, created_by, is_active, created_at, updated_at`

// GetOpportunity reads an opportunity scoped to its organization.
func (q queries) GetOpportunity(ctx context.Context, organizationID, id uuid.UUID) (domain.Opportunity, error) {
	return q.loadOpportunity(ctx, organizationID, id, "")
}

// LockOpportunity reads the opportunity with SELECT ... FOR UPDATE so that
// concurrent pipeline updates on the same row serialize.
func (t *txRepository) LockOpportunity(ctx context.Context, organizationID, id uuid.UUID) (domain.Opportunity, error) {
	return t.loadOpportunity(ctx, organizationID, id, "FOR UPDATE")
}

func (q queries) loadOpportunity(ctx context.Context, organizationID, id uuid.UUID, lockClause string) (domain.Opportunity, error) {
	query := fmt.Sprintf(`SELECT %s FROM opportunities WHERE id = $1 AND organization_id = $2 %s`, opportunityColumns, lockClause)

	var (
		opp       domain.Opportunity
		stage     string
		links     []byte
		contracts []byte
	)
	err := q.db.QueryRow(ctx, query, id, organizationID).Scan(
		&opp.ID, &opp.OrganizationID, &opp.Name, &stage, &opp.MeetingDate, &opp.Feedback, &opp.ExpectedCloseDate,
		&opp.Result, &opp.Probability, &links, &contracts, &opp.Reason,
		&opp.AccountID, &opp.LeadID, &opp.ClosedBy, &opp.ClosedOn, &opp.CreatedBy, &opp.IsActive, &opp.CreatedAt, &opp.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Opportunity{}, ErrNotFound
	}
	if err != nil {
		return domain.Opportunity{}, err
	}
	opp.Stage = domain.Stage(stage)

	if opp.AttachmentLinks, err = decodeRefs(links); err != nil {
		return domain.Opportunity{}, fmt.Errorf("decode attachment_links: %w", err)
	}
	if opp.ContractAttachment, err = decodeRefs(contracts); err != nil {
		return domain.Opportunity{}, fmt.Errorf("decode contract_attachment: %w", err)
	}

	if opp.AssigneeIDs, err = q.listIDs(ctx, `SELECT user_id FROM opportunity_assignees WHERE opportunity_id = $1 ORDER BY user_id`, id); err != nil {
		return domain.Opportunity{}, err
	}
	if opp.ContactIDs, err = q.listIDs(ctx, `SELECT contact_id FROM opportunity_contacts WHERE opportunity_id = $1 ORDER BY contact_id`, id); err != nil {
		return domain.Opportunity{}, err
	}
	return opp, nil
}

func (q queries) listIDs(ctx context.Context, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return ids, nil
}

type columnValue struct {
	enabled bool
	column  string
	value   any
}

// ApplyStep persists one planned step. Stage and close stamps are written in
// the same statement so the result/stage check constraint always holds.
func (t *txRepository) ApplyStep(ctx context.Context, opp domain.Opportunity, step domain.Step) error {
	f := step.Fields
	links, err := encodeRefs(f.AttachmentLinks)
	if err != nil {
		return err
	}

	fields := []columnValue{
		{f.MeetingDate != nil, "meeting_date", dateValue(f.MeetingDate)},
		{f.Feedback != nil, "feedback", f.Feedback},
		{f.ExpectedCloseDate != nil, "expected_close_date", dateValue(f.ExpectedCloseDate)},
		{f.AttachmentLinksSet, "attachment_links", links},
		{f.Reason != nil, "reason", f.Reason},
		{f.ClosedOn != nil, "closed_on", dateValue(f.ClosedOn)},
		{step.Stage != nil, "stage", stageValue(step.Stage)},
	}
	if c := step.Close; c != nil {
		fields = append(fields,
			columnValue{true, "result", c.Result},
			columnValue{c.Probability != nil, "probability", c.Probability},
			columnValue{true, "closed_on", c.ClosedOn},
			columnValue{true, "closed_by", c.ClosedBy},
		)
	}

	setClauses := []string{}
	args := []any{}
	argIdx := 1
	seen := map[string]bool{}
	for _, field := range fields {
		if !field.enabled || seen[field.column] {
			continue
		}
		seen[field.column] = true
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", field.column, argIdx))
		args = append(args, field.value)
		argIdx++
	}
	if len(setClauses) == 0 {
		return nil
	}

	setClauses = append(setClauses, "updated_at = now()")
	args = append(args, opp.ID, opp.OrganizationID)
	query := fmt.Sprintf(`UPDATE opportunities SET %s WHERE id = $%d AND organization_id = $%d`,
		strings.Join(setClauses, ", "), argIdx, argIdx+1)

	tag, err := t.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update opportunity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveArtifactLists rewrites both attachment lists from opp.
func (t *txRepository) SaveArtifactLists(ctx context.Context, opp domain.Opportunity) error {
	links, err := encodeRefs(opp.AttachmentLinks)
	if err != nil {
		return err
	}
	contracts, err := encodeRefs(opp.ContractAttachment)
	if err != nil {
		return err
	}

	tag, err := t.db.Exec(ctx, `
		UPDATE opportunities
		SET attachment_links = $3, contract_attachment = $4, updated_at = now()
		WHERE id = $1 AND organization_id = $2`,
		opp.ID, opp.OrganizationID, links, contracts,
	)
	if err != nil {
		return fmt.Errorf("failed to update attachment lists: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyFinalize stamps a won opportunity that received its contract late.
func (t *txRepository) ApplyFinalize(ctx context.Context, opp domain.Opportunity, finalize domain.LateContractFinalize) error {
	_, err := t.db.Exec(ctx, `
		UPDATE opportunities
		SET closed_by = $3, closed_on = $4, result = $5, probability = $6, updated_at = now()
		WHERE id = $1 AND organization_id = $2 AND stage = 'CLOSED WON'`,
		opp.ID, opp.OrganizationID, finalize.ClosedBy, finalize.ClosedOn, finalize.Result, finalize.Probability,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize opportunity: %w", err)
	}
	return nil
}

func decodeRefs(raw []byte) ([]domain.AttachmentRef, error) {
	refs := make([]domain.AttachmentRef, 0)
	if len(raw) == 0 {
		return refs, nil
	}
	if err := json.Unmarshal(raw, &refs); err != nil {
		return nil, err
	}
	return refs, nil
}

func encodeRefs(refs []domain.AttachmentRef) ([]byte, error) {
	if refs == nil {
		refs = []domain.AttachmentRef{}
	}
	data, err := json.Marshal(refs)
	if err != nil {
		return nil, fmt.Errorf("encode attachment list: %w", err)
	}
	return data, nil
}

func dateValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return domain.DateOf(*t)
}

func stageValue(s *domain.Stage) any {
	if s == nil {
		return nil
	}
	return string(*s)
}
