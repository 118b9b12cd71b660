// Package httpkit provides HTTP utilities including identity abstraction.
package httpkit

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity represents the authenticated user's identity.
// Handlers read the acting user through this interface instead of raw gin keys.
type Identity interface {
	// UserID returns the authenticated user's ID.
	UserID() uuid.UUID
	// TenantID returns the organization the token was issued for, if any.
	TenantID() *uuid.UUID
	// Roles returns the user's assigned roles.
	Roles() []string
	// HasRole checks if the user has a specific role.
	HasRole(role string) bool
	// IsSuperuser reports platform-wide administrative access.
	IsSuperuser() bool
	// IsAuthenticated returns true if the user is authenticated.
	IsAuthenticated() bool
}

type identity struct {
	userID        uuid.UUID
	tenantID      *uuid.UUID
	roles         []string
	superuser     bool
	authenticated bool
}

func (i *identity) UserID() uuid.UUID     { return i.userID }
func (i *identity) TenantID() *uuid.UUID  { return i.tenantID }
func (i *identity) Roles() []string       { return i.roles }
func (i *identity) IsSuperuser() bool     { return i.superuser }
func (i *identity) IsAuthenticated() bool { return i.authenticated }

func (i *identity) HasRole(role string) bool {
	return slices.Contains(i.roles, role)
}

// GetIdentity extracts the Identity from a Gin context.
// Returns an unauthenticated identity if user info is not present.
func GetIdentity(c *gin.Context) Identity {
	userID, userOK := c.Get(ContextUserIDKey)
	if !userOK {
		return &identity{authenticated: false}
	}

	uid, ok := userID.(uuid.UUID)
	if !ok {
		return &identity{authenticated: false}
	}

	id := &identity{userID: uid, authenticated: true}
	if roles, ok := c.Get(ContextRolesKey); ok {
		id.roles, _ = roles.([]string)
	}
	if tenant, ok := c.Get(ContextTenantIDKey); ok {
		if tid, ok := tenant.(uuid.UUID); ok {
			id.tenantID = &tid
		}
	}
	id.superuser = c.GetBool(ContextSuperuserKey)

	return id
}

// MustGetIdentity extracts the Identity from a Gin context.
// If the user is not authenticated, it aborts with 401 Unauthorized and returns nil.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil
	}
	return id
}

// MustGetTenantID returns the caller's organization or aborts with 403.
func MustGetTenantID(c *gin.Context, id Identity) (uuid.UUID, bool) {
	tenantID := id.TenantID()
	if tenantID == nil {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "organization required"})
		return uuid.UUID{}, false
	}
	return *tenantID, true
}
