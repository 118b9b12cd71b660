package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"salescrm_backend/internal/adapters/storage"
	"salescrm_backend/internal/events"
	"salescrm_backend/internal/opportunities/domain"
	"salescrm_backend/internal/opportunities/repository"
	"salescrm_backend/internal/opportunities/transport"
	"salescrm_backend/platform/apperr"

	"github.com/google/uuid"
)

type fakePresigner struct {
	folder string
	err    error
}

func (p *fakePresigner) GenerateUploadURL(_ context.Context, bucket, folder, fileName, _ string, _ int64) (*storage.PresignedURL, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.folder = folder
	return &storage.PresignedURL{
		URL:       "https://minio.local/" + bucket + "/" + folder + "/" + fileName + "?X-Amz-Signature=abc",
		FileKey:   folder + "/" + fileName,
		ExpiresAt: fixedNow.Add(15 * time.Minute),
	}, nil
}

func (p *fakePresigner) ObjectURL(bucket, fileKey string) string {
	return "https://minio.local/" + bucket + "/" + fileKey
}

func registerRequest(oppID uuid.UUID, attachmentType string) transport.RegisterAttachmentRequest {
	return transport.RegisterAttachmentRequest{
		OpportunityID:  oppID,
		FileName:       "signed-contract.pdf",
		FileType:       "application/pdf",
		FileURL:        "https://files.example.com/signed-contract.pdf",
		AttachmentType: attachmentType,
	}
}

func TestRegisterAttachmentProposal(t *testing.T) {
	f := newFixture()
	opp := f.seed(domain.StageProposal, func(o *domain.Opportunity) { o.AttachmentLinks = nil })

	resp, err := f.svc.RegisterAttachment(context.Background(), f.manager, registerRequest(opp.ID, ""))
	if err != nil {
		t.Fatalf("expected registration, got %v", err)
	}
	if resp.ClassifiedInto != domain.FieldAttachmentLinks || resp.Finalized {
		t.Fatalf("unexpected classification: %+v", resp)
	}
	if len(resp.AttachmentLinks) != 1 || resp.AttachmentLinks[0].ID != resp.Attachment.ID {
		t.Fatalf("expected the new attachment in attachment_links, got %+v", resp.AttachmentLinks)
	}
	if len(resp.Changes) != 1 || resp.Changes[0] != "Attachments updated" {
		t.Fatalf("unexpected changes: %v", resp.Changes)
	}
	if got := f.store.get(opp.ID).AttachmentLinks; len(got) != 1 {
		t.Fatalf("expected persisted attachment_links, got %v", got)
	}

	// The proposal precondition is now met.
	if _, err := f.svc.UpdatePipeline(context.Background(), f.manager, opp.ID, transport.UpdatePipelineRequest{Stage: ptr("NEGOTIATION")}); err != nil {
		t.Fatalf("expected move to NEGOTIATION after upload, got %v", err)
	}
}

func TestRegisterAttachmentContractAtClose(t *testing.T) {
	f := newFixture()
	opp := f.seed(domain.StageClose, nil)

	resp, err := f.svc.RegisterAttachment(context.Background(), f.manager, registerRequest(opp.ID, "contract"))
	if err != nil {
		t.Fatalf("expected registration, got %v", err)
	}
	if resp.ClassifiedInto != domain.FieldContractAttachment || resp.Finalized {
		t.Fatalf("unexpected classification: %+v", resp)
	}
	if resp.Changes[0] != "Contract uploaded" {
		t.Fatalf("unexpected changes: %v", resp.Changes)
	}

	if _, err := f.svc.UpdatePipeline(context.Background(), f.manager, opp.ID, transport.UpdatePipelineRequest{CloseOption: ptr("CLOSED WON")}); err != nil {
		t.Fatalf("expected won close once a contract exists, got %v", err)
	}
}

func TestRegisterAttachmentLateContractFinalizes(t *testing.T) {
	f := newFixture()
	opp := f.seed(domain.StageClosedWon, func(o *domain.Opportunity) {
		o.Probability = 60
		o.ContractAttachment = nil
	})

	resp, err := f.svc.RegisterAttachment(context.Background(), f.manager, registerRequest(opp.ID, "contract"))
	if err != nil {
		t.Fatalf("expected registration, got %v", err)
	}
	if !resp.Finalized {
		t.Fatal("expected late contract to finalize the won opportunity")
	}

	persisted := f.store.get(opp.ID)
	if !persisted.Result || persisted.Probability != domain.WonProbability || persisted.ClosedBy == nil || *persisted.ClosedBy != f.manager.UserID {
		t.Fatalf("unexpected finalized opportunity: %+v", persisted)
	}
	if len(persisted.ContractAttachment) != 1 {
		t.Fatalf("expected contract recorded, got %v", persisted.ContractAttachment)
	}
	if f.store.count("accounts") != 0 {
		t.Fatal("expected no side effects from late contract")
	}

	registered := f.bus.named(events.OpportunityAttachmentRegistered{}.EventName())
	if len(registered) != 1 || !registered[0].(events.OpportunityAttachmentRegistered).Finalized {
		t.Fatalf("expected one finalized attachment event, got %v", registered)
	}
}

func TestRegisterAttachmentValidation(t *testing.T) {
	f := newFixture()
	opp := f.seed(domain.StageProposal, nil)

	_, err := f.svc.RegisterAttachment(context.Background(), f.manager, registerRequest(opp.ID, "invoice"))
	requireKind(t, err, apperr.KindValidation)

	req := registerRequest(opp.ID, "proposal")
	req.FileName = "   "
	_, err = f.svc.RegisterAttachment(context.Background(), f.manager, req)
	requireKind(t, err, apperr.KindValidation)

	_, err = f.svc.RegisterAttachment(context.Background(), f.manager, registerRequest(uuid.New(), "proposal"))
	requireKind(t, err, apperr.KindNotFound)

	if f.store.count("attachments") != 0 {
		t.Fatal("expected nothing registered")
	}
}

func TestListAttachmentsNewestFirst(t *testing.T) {
	f := newFixture()
	opp := f.seed(domain.StageProposal, nil)

	first, second := uuid.New(), uuid.New()
	f.store.state.attachments[first] = repository.Attachment{ID: first, OrganizationID: f.orgID, OpportunityID: opp.ID, Type: "proposal", CreatedAt: fixedNow.Add(-time.Hour)}
	f.store.state.attachments[second] = repository.Attachment{ID: second, OrganizationID: f.orgID, OpportunityID: opp.ID, Type: "proposal", CreatedAt: fixedNow}

	resp, err := f.svc.ListAttachments(context.Background(), f.manager, opp.ID)
	if err != nil {
		t.Fatalf("expected list, got %v", err)
	}
	if len(resp.Items) != 2 || resp.Items[0].ID != second || resp.Items[1].ID != first {
		t.Fatalf("expected newest first, got %+v", resp.Items)
	}
}

func TestDeleteAttachment(t *testing.T) {
	f := newFixture()
	opp := f.seed(domain.StageProposal, nil)
	uploader := domain.Actor{UserID: opp.AssigneeIDs[0], OrganizationID: f.orgID, Roles: []domain.Role{domain.RoleUser}}
	colleague := domain.Actor{UserID: opp.AssigneeIDs[1], OrganizationID: f.orgID, Roles: []domain.Role{domain.RoleUser}}

	resp, err := f.svc.RegisterAttachment(context.Background(), uploader, registerRequest(opp.ID, "proposal"))
	if err != nil {
		t.Fatalf("expected registration, got %v", err)
	}
	attachmentID := resp.Attachment.ID

	err = f.svc.DeleteAttachment(context.Background(), colleague, opp.ID, attachmentID)
	requireKind(t, err, apperr.KindForbidden)

	if err := f.svc.DeleteAttachment(context.Background(), uploader, opp.ID, attachmentID); err != nil {
		t.Fatalf("expected uploader to delete, got %v", err)
	}
	if f.store.count("attachments") != 0 {
		t.Fatal("expected attachment record removed")
	}
	for _, ref := range f.store.get(opp.ID).AttachmentLinks {
		if ref.ID == attachmentID {
			t.Fatal("expected attachment_links entry removed")
		}
	}

	err = f.svc.DeleteAttachment(context.Background(), uploader, opp.ID, attachmentID)
	requireKind(t, err, apperr.KindNotFound)
}

func TestDeleteAttachmentOnClosedOpportunity(t *testing.T) {
	f := newFixture()
	opp := f.seed(domain.StageClosedLost, nil)
	attachmentID := uuid.New()
	f.store.state.attachments[attachmentID] = repository.Attachment{ID: attachmentID, OrganizationID: f.orgID, OpportunityID: opp.ID, Type: "proposal", CreatedAt: fixedNow}

	err := f.svc.DeleteAttachment(context.Background(), f.manager, opp.ID, attachmentID)
	details := requireKind(t, err, apperr.KindValidation).Details.(apperr.FieldDetails)
	if details.Field != "attachment" || details.Stage != "CLOSED LOST" {
		t.Fatalf("unexpected details: %+v", details)
	}
	if f.store.count("attachments") != 1 {
		t.Fatal("expected attachment kept")
	}
}

func TestAttachmentsRejectedOnInactiveOpportunity(t *testing.T) {
	f := newFixture()
	won := f.seed(domain.StageClosedWon, func(o *domain.Opportunity) {
		o.IsActive = false
		o.Probability = 10
		o.ContractAttachment = nil
	})

	_, err := f.svc.RegisterAttachment(context.Background(), f.manager, registerRequest(won.ID, "contract"))
	requireKind(t, err, apperr.KindValidation)

	persisted := f.store.get(won.ID)
	if persisted.Probability != 10 || persisted.Result || persisted.ClosedBy != nil || len(persisted.ContractAttachment) != 0 {
		t.Fatalf("expected inactive opportunity untouched, got %+v", persisted)
	}
	if f.store.count("attachments") != 0 {
		t.Fatal("expected no attachment recorded")
	}

	proposal := f.seed(domain.StageProposal, func(o *domain.Opportunity) { o.IsActive = false })
	attachmentID := proposal.AttachmentLinks[0].ID
	f.store.state.attachments[attachmentID] = repository.Attachment{ID: attachmentID, OrganizationID: f.orgID, OpportunityID: proposal.ID, Type: "proposal", CreatedAt: fixedNow}

	err = f.svc.DeleteAttachment(context.Background(), f.manager, proposal.ID, attachmentID)
	requireKind(t, err, apperr.KindValidation)
	if f.store.count("attachments") != 1 || len(f.store.get(proposal.ID).AttachmentLinks) != 1 {
		t.Fatal("expected attachment kept on inactive opportunity")
	}
}

func TestPresignUpload(t *testing.T) {
	f := newFixture()
	opp := f.seed(domain.StageProposal, nil)
	req := transport.PresignAttachmentRequest{FileName: "../deck.pdf", ContentType: "application/pdf", SizeBytes: 1024, AttachmentType: "proposal"}

	_, err := f.svc.PresignUpload(context.Background(), f.manager, opp.ID, req)
	requireKind(t, err, apperr.KindBadRequest)

	presigner := &fakePresigner{}
	f.svc.SetPresigner(presigner, "attachments")

	resp, err := f.svc.PresignUpload(context.Background(), f.manager, opp.ID, req)
	if err != nil {
		t.Fatalf("expected presigned URL, got %v", err)
	}
	wantFolder := f.orgID.String() + "/" + opp.ID.String() + "/proposal"
	if presigner.folder != wantFolder {
		t.Fatalf("expected folder %q, got %q", wantFolder, presigner.folder)
	}
	if resp.FileKey != wantFolder+"/deck.pdf" || resp.FileURL != "https://minio.local/attachments/"+resp.FileKey {
		t.Fatalf("unexpected response: %+v", resp)
	}

	presigner.err = errors.New("minio down")
	_, err = f.svc.PresignUpload(context.Background(), f.manager, opp.ID, req)
	requireKind(t, err, apperr.KindInternal)
}
