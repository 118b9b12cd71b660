package repository

import (
	"context"

	"github.com/google/uuid"
)

// ListActiveRecipients returns active users of the organization among userIDs.
func (q queries) ListActiveRecipients(ctx context.Context, organizationID uuid.UUID, userIDs []uuid.UUID) ([]Recipient, error) {
	recipients := make([]Recipient, 0, len(userIDs))
	if len(userIDs) == 0 {
		return recipients, nil
	}

	rows, err := q.db.Query(ctx, `
		SELECT id, email, full_name
		FROM users
		WHERE organization_id = $1 AND id = ANY($2) AND is_active = true
		ORDER BY email
	`, organizationID, userIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var r Recipient
		if err := rows.Scan(&r.UserID, &r.Email, &r.FullName); err != nil {
			return nil, err
		}
		recipients = append(recipients, r)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return recipients, nil
}
