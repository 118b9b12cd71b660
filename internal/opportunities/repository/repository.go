package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound           = errors.New("opportunity not found")
	ErrAttachmentNotFound = errors.New("attachment not found")
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// queries holds the SQL shared by pool and transaction scopes.
type queries struct {
	db querier
}

type Repository struct {
	queries
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{queries: queries{db: pool}, pool: pool}
}

// txRepository scopes every query to one transaction.
type txRepository struct {
	queries
}

// WithinTx runs fn inside a transaction, committing when fn returns nil.
func (r *Repository) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&txRepository{queries: queries{db: tx}}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Attachment is a registered artifact record.
type Attachment struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	OpportunityID  uuid.UUID
	Type           string
	FileName       string
	FileType       string
	FileURL        string
	UploadedBy     *uuid.UUID
	CreatedAt      time.Time
}

// Company holds the fields an account is populated from.
type Company struct {
	ID                   uuid.UUID
	OrganizationID       uuid.UUID
	Name                 string
	Website              *string
	Email                *string
	Phone                *string
	Industry             *string
	BillingStreet        *string
	BillingAddressNumber *string
	BillingPostcode      *string
	BillingCity          *string
	BillingCountry       *string
}

// Account is a customer account created from a won opportunity.
type Account struct {
	ID                   uuid.UUID
	OrganizationID       uuid.UUID
	Name                 string
	CompanyID            *uuid.UUID
	LeadID               *uuid.UUID
	Email                *string
	Phone                *string
	Website              *string
	Industry             *string
	BillingStreet        *string
	BillingAddressNumber *string
	BillingPostcode      *string
	BillingCity          *string
	BillingCountry       *string
	CreatedBy            uuid.UUID
}

// Case is a follow-up case opened for a lost opportunity.
type Case struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Name           string
	Status         string
	Priority       string
	AccountID      *uuid.UUID
	OpportunityID  uuid.UUID
	Description    *string
	ClosedOn       *time.Time
	CreatedBy      uuid.UUID
	ContactIDs     []uuid.UUID
	AssigneeIDs    []uuid.UUID
}

// Recipient is an active user to notify.
type Recipient struct {
	UserID   uuid.UUID
	Email    string
	FullName string
}
