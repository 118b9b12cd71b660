package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ListAttachments returns the opportunity's attachments, newest first.
func (q queries) ListAttachments(ctx context.Context, organizationID, opportunityID uuid.UUID) ([]Attachment, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, organization_id, opportunity_id, attachment_type, file_name, file_type, file_url, uploaded_by, created_at
		FROM opportunity_attachments
		WHERE organization_id = $1 AND opportunity_id = $2
		ORDER BY created_at DESC, id DESC
	`, organizationID, opportunityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Attachment, 0)
	for rows.Next() {
		var a Attachment
		if err := rows.Scan(&a.ID, &a.OrganizationID, &a.OpportunityID, &a.Type, &a.FileName, &a.FileType, &a.FileURL, &a.UploadedBy, &a.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

func (t *txRepository) InsertAttachment(ctx context.Context, a Attachment) error {
	_, err := t.db.Exec(ctx, `
		INSERT INTO opportunity_attachments (
			id, organization_id, opportunity_id, attachment_type, file_name, file_type, file_url, uploaded_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.OrganizationID, a.OpportunityID, a.Type, a.FileName, a.FileType, a.FileURL, a.UploadedBy, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert attachment: %w", err)
	}
	return nil
}

func (t *txRepository) GetAttachment(ctx context.Context, organizationID, opportunityID, id uuid.UUID) (Attachment, error) {
	var a Attachment
	err := t.db.QueryRow(ctx, `
		SELECT id, organization_id, opportunity_id, attachment_type, file_name, file_type, file_url, uploaded_by, created_at
		FROM opportunity_attachments
		WHERE id = $1 AND organization_id = $2 AND opportunity_id = $3
	`, id, organizationID, opportunityID).Scan(
		&a.ID, &a.OrganizationID, &a.OpportunityID, &a.Type, &a.FileName, &a.FileType, &a.FileURL, &a.UploadedBy, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Attachment{}, ErrAttachmentNotFound
	}
	if err != nil {
		return Attachment{}, err
	}
	return a, nil
}

func (t *txRepository) DeleteAttachment(ctx context.Context, organizationID, id uuid.UUID) error {
	tag, err := t.db.Exec(ctx, `DELETE FROM opportunity_attachments WHERE id = $1 AND organization_id = $2`, id, organizationID)
	if err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAttachmentNotFound
	}
	return nil
}
