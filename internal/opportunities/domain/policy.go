package domain

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Role is an organization-level permission level.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleUser    Role = "USER"
)

// Action is something an actor attempts against an opportunity.
type Action string

const (
	ActionViewPipeline       Action = "pipeline.view"
	ActionUpdatePipeline     Action = "pipeline.update"
	ActionRegisterAttachment Action = "attachment.register"
	ActionListAttachments    Action = "attachment.list"
	ActionDeleteAttachment   Action = "attachment.delete"
)

var knownActions = []Action{
	ActionViewPipeline,
	ActionUpdatePipeline,
	ActionRegisterAttachment,
	ActionListAttachments,
	ActionDeleteAttachment,
}

// Actor is the acting identity as seen by the pipeline.
type Actor struct {
	UserID         uuid.UUID
	OrganizationID uuid.UUID
	Roles          []Role
	Superuser      bool
}

// Relation describes how the actor relates to the target record.
type Relation struct {
	IsCreator  bool
	IsAssignee bool
	IsUploader bool
}

// RelationTo derives the actor's relation to an opportunity.
func RelationTo(actor Actor, opp Opportunity) Relation {
	return Relation{
		IsCreator:  opp.IsCreator(actor.UserID),
		IsAssignee: opp.IsAssignee(actor.UserID),
	}
}

// Ownership requirements for a grant.
type ownership int

const (
	anyRecord ownership = iota
	ownedRecord
	uploadedRecord
)

// Policy decides (role, action, ownership) questions in one place.
type Policy struct {
	grants map[Role]map[Action]ownership
}

// DefaultPolicy grants managers and admins everything; users act on
// opportunities they created or are assigned to, and delete only their own
// uploads.
func DefaultPolicy() *Policy {
	all := map[Action]ownership{
		ActionViewPipeline:       anyRecord,
		ActionUpdatePipeline:     anyRecord,
		ActionRegisterAttachment: anyRecord,
		ActionListAttachments:    anyRecord,
		ActionDeleteAttachment:   anyRecord,
	}
	return &Policy{grants: map[Role]map[Action]ownership{
		RoleAdmin:   all,
		RoleManager: all,
		RoleUser: {
			ActionViewPipeline:       ownedRecord,
			ActionUpdatePipeline:     ownedRecord,
			ActionRegisterAttachment: ownedRecord,
			ActionListAttachments:    ownedRecord,
			ActionDeleteAttachment:   uploadedRecord,
		},
	}}
}

// Allows evaluates the policy. Superusers are always allowed.
func (p *Policy) Allows(actor Actor, action Action, rel Relation) bool {
	if actor.Superuser {
		return true
	}
	for _, role := range actor.Roles {
		need, ok := p.grants[role][action]
		if !ok {
			continue
		}
		switch need {
		case anyRecord:
			return true
		case ownedRecord:
			if rel.IsCreator || rel.IsAssignee {
				return true
			}
		case uploadedRecord:
			if rel.IsUploader {
				return true
			}
		}
	}
	return false
}

// policyFile is the YAML shape of a policy override:
//
//	grants:
//	  USER:
//	    attachment.delete: owned
type policyFile struct {
	Grants map[string]map[string]string `yaml:"grants"`
}

var ownershipNames = map[string]ownership{
	"any":      anyRecord,
	"owned":    ownedRecord,
	"uploaded": uploadedRecord,
}

// LoadPolicyOverrides reads grant overrides on top of DefaultPolicy.
func LoadPolicyOverrides(r io.Reader) (*Policy, error) {
	var file policyFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode policy: %w", err)
	}

	policy := DefaultPolicy()
	for rawRole, actions := range file.Grants {
		role := Role(strings.ToUpper(strings.TrimSpace(rawRole)))
		if !slices.Contains([]Role{RoleAdmin, RoleManager, RoleUser}, role) {
			return nil, fmt.Errorf("unknown role %q", rawRole)
		}
		grants := make(map[Action]ownership, len(policy.grants[role])+len(actions))
		for action, need := range policy.grants[role] {
			grants[action] = need
		}
		for rawAction, rawNeed := range actions {
			action := Action(strings.ToLower(strings.TrimSpace(rawAction)))
			if !slices.Contains(knownActions, action) {
				return nil, fmt.Errorf("unknown action %q for %s", rawAction, role)
			}
			need, ok := ownershipNames[strings.ToLower(strings.TrimSpace(rawNeed))]
			if !ok {
				return nil, fmt.Errorf("unknown ownership %q for %s/%s", rawNeed, role, rawAction)
			}
			grants[action] = need
		}
		policy.grants[role] = grants
	}
	return policy, nil
}
