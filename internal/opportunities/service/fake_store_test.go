package service

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"salescrm_backend/internal/opportunities/domain"
	"salescrm_backend/internal/opportunities/repository"

	"github.com/google/uuid"
)

// fakeState is the in-memory database. WithinTx works on a clone and swaps it
// in on success, so a failing callback leaves nothing behind.
type fakeState struct {
	opps          map[uuid.UUID]domain.Opportunity
	attachments   map[uuid.UUID]repository.Attachment
	companies     map[uuid.UUID]repository.Company
	leadCompanies map[uuid.UUID]uuid.UUID
	accounts      map[uuid.UUID]repository.Account
	cases         map[uuid.UUID]repository.Case
	users         map[uuid.UUID]repository.Recipient
}

func (s fakeState) clone() fakeState {
	return fakeState{
		opps:          maps.Clone(s.opps),
		attachments:   maps.Clone(s.attachments),
		companies:     maps.Clone(s.companies),
		leadCompanies: maps.Clone(s.leadCompanies),
		accounts:      maps.Clone(s.accounts),
		cases:         maps.Clone(s.cases),
		users:         maps.Clone(s.users),
	}
}

type fakeStore struct {
	mu    sync.Mutex
	state fakeState

	failCreateCase    error
	failCreateAccount error
	// staleAccountLookup hides existing accounts from FindAccountByCompany,
	// as when another transaction commits one after the lookup.
	staleAccountLookup bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{state: fakeState{
		opps:          map[uuid.UUID]domain.Opportunity{},
		attachments:   map[uuid.UUID]repository.Attachment{},
		companies:     map[uuid.UUID]repository.Company{},
		leadCompanies: map[uuid.UUID]uuid.UUID{},
		accounts:      map[uuid.UUID]repository.Account{},
		cases:         map[uuid.UUID]repository.Case{},
		users:         map[uuid.UUID]repository.Recipient{},
	}}
}

var _ repository.Store = (*fakeStore)(nil)

func cloneOpp(opp domain.Opportunity) domain.Opportunity {
	opp.AttachmentLinks = slices.Clone(opp.AttachmentLinks)
	opp.ContractAttachment = slices.Clone(opp.ContractAttachment)
	opp.AssigneeIDs = slices.Clone(opp.AssigneeIDs)
	opp.ContactIDs = slices.Clone(opp.ContactIDs)
	return opp
}

func (f *fakeStore) put(opp domain.Opportunity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.opps[opp.ID] = cloneOpp(opp)
}

func (f *fakeStore) get(id uuid.UUID) domain.Opportunity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneOpp(f.state.opps[id])
}

func (f *fakeStore) count(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch kind {
	case "accounts":
		return len(f.state.accounts)
	case "cases":
		return len(f.state.cases)
	case "companies":
		return len(f.state.companies)
	default:
		return len(f.state.attachments)
	}
}

func (f *fakeStore) onlyCase() repository.Case {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.state.cases {
		return c
	}
	return repository.Case{}
}

func (f *fakeStore) onlyAccount() repository.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.state.accounts {
		return a
	}
	return repository.Account{}
}

func (f *fakeStore) GetOpportunity(_ context.Context, organizationID, id uuid.UUID) (domain.Opportunity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return lookupOpp(f.state, organizationID, id)
}

func lookupOpp(s fakeState, organizationID, id uuid.UUID) (domain.Opportunity, error) {
	opp, ok := s.opps[id]
	if !ok || opp.OrganizationID != organizationID {
		return domain.Opportunity{}, repository.ErrNotFound
	}
	return cloneOpp(opp), nil
}

func (f *fakeStore) ListAttachments(_ context.Context, organizationID, opportunityID uuid.UUID) ([]repository.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]repository.Attachment, 0)
	for _, a := range f.state.attachments {
		if a.OrganizationID == organizationID && a.OpportunityID == opportunityID {
			items = append(items, a)
		}
	}
	slices.SortFunc(items, func(a, b repository.Attachment) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return items, nil
}

func (f *fakeStore) ListActiveRecipients(_ context.Context, _ uuid.UUID, userIDs []uuid.UUID) ([]repository.Recipient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]repository.Recipient, 0, len(userIDs))
	for _, id := range userIDs {
		if r, ok := f.state.users[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// WithinTx holds the store lock for the whole callback, which serializes
// transactions the way the row lock does.
func (f *fakeStore) WithinTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	tx := &fakeTx{store: f, state: f.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	f.state = tx.state
	return nil
}

type fakeTx struct {
	store *fakeStore
	state fakeState
}

func (t *fakeTx) LockOpportunity(_ context.Context, organizationID, id uuid.UUID) (domain.Opportunity, error) {
	return lookupOpp(t.state, organizationID, id)
}

func (t *fakeTx) ApplyStep(_ context.Context, opp domain.Opportunity, step domain.Step) error {
	current, ok := t.state.opps[opp.ID]
	if !ok {
		return repository.ErrNotFound
	}
	current = cloneOpp(current)
	step.ApplyTo(&current)
	t.state.opps[opp.ID] = current
	return nil
}

func (t *fakeTx) SaveArtifactLists(_ context.Context, opp domain.Opportunity) error {
	current, ok := t.state.opps[opp.ID]
	if !ok {
		return repository.ErrNotFound
	}
	current.AttachmentLinks = slices.Clone(opp.AttachmentLinks)
	current.ContractAttachment = slices.Clone(opp.ContractAttachment)
	t.state.opps[opp.ID] = current
	return nil
}

func (t *fakeTx) ApplyFinalize(_ context.Context, opp domain.Opportunity, f domain.LateContractFinalize) error {
	current := t.state.opps[opp.ID]
	closedBy, closedOn := f.ClosedBy, f.ClosedOn
	current.ClosedBy = &closedBy
	current.ClosedOn = &closedOn
	current.Result = f.Result
	current.Probability = f.Probability
	t.state.opps[opp.ID] = current
	return nil
}

func (t *fakeTx) InsertAttachment(_ context.Context, a repository.Attachment) error {
	t.state.attachments[a.ID] = a
	return nil
}

func (t *fakeTx) GetAttachment(_ context.Context, organizationID, opportunityID, id uuid.UUID) (repository.Attachment, error) {
	a, ok := t.state.attachments[id]
	if !ok || a.OrganizationID != organizationID || a.OpportunityID != opportunityID {
		return repository.Attachment{}, repository.ErrAttachmentNotFound
	}
	return a, nil
}

func (t *fakeTx) DeleteAttachment(_ context.Context, _ uuid.UUID, id uuid.UUID) error {
	if _, ok := t.state.attachments[id]; !ok {
		return repository.ErrAttachmentNotFound
	}
	delete(t.state.attachments, id)
	return nil
}

func (t *fakeTx) FindLeadCompany(_ context.Context, _ uuid.UUID, leadID uuid.UUID) (repository.Company, error) {
	companyID, ok := t.state.leadCompanies[leadID]
	if !ok {
		return repository.Company{}, repository.ErrNotFound
	}
	return t.state.companies[companyID], nil
}

func (t *fakeTx) FindAccountByCompany(_ context.Context, organizationID, companyID uuid.UUID) (uuid.UUID, error) {
	if t.store.staleAccountLookup {
		return uuid.Nil, repository.ErrNotFound
	}
	return t.accountForCompany(organizationID, companyID)
}

func (t *fakeTx) accountForCompany(organizationID, companyID uuid.UUID) (uuid.UUID, error) {
	for _, a := range t.state.accounts {
		if a.OrganizationID == organizationID && a.CompanyID != nil && *a.CompanyID == companyID {
			return a.ID, nil
		}
	}
	return uuid.Nil, repository.ErrNotFound
}

func (t *fakeTx) CreateCompany(_ context.Context, c repository.Company) error {
	t.state.companies[c.ID] = c
	return nil
}

func (t *fakeTx) CreateAccount(_ context.Context, a repository.Account) (uuid.UUID, bool, error) {
	if t.store.failCreateAccount != nil {
		return uuid.Nil, false, t.store.failCreateAccount
	}
	if a.CompanyID != nil {
		if id, err := t.accountForCompany(a.OrganizationID, *a.CompanyID); err == nil {
			return id, false, nil
		}
	}
	t.state.accounts[a.ID] = a
	return a.ID, true, nil
}

func (t *fakeTx) LinkAccount(_ context.Context, _ uuid.UUID, opportunityID, accountID uuid.UUID) error {
	current, ok := t.state.opps[opportunityID]
	if !ok {
		return repository.ErrNotFound
	}
	current.AccountID = &accountID
	t.state.opps[opportunityID] = current
	return nil
}

func (t *fakeTx) FindLostDealCase(_ context.Context, organizationID, opportunityID uuid.UUID) (uuid.UUID, error) {
	for _, c := range t.state.cases {
		if c.OrganizationID == organizationID && c.OpportunityID == opportunityID {
			return c.ID, nil
		}
	}
	return uuid.Nil, repository.ErrNotFound
}

func (t *fakeTx) CreateLostDealCase(ctx context.Context, c repository.Case) (uuid.UUID, bool, error) {
	if t.store.failCreateCase != nil {
		return uuid.Nil, false, t.store.failCreateCase
	}
	if id, err := t.FindLostDealCase(ctx, c.OrganizationID, c.OpportunityID); err == nil {
		return id, false, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return uuid.Nil, false, err
	}
	t.state.cases[c.ID] = c
	return c.ID, true, nil
}
