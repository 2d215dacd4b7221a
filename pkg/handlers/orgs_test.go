package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsemihaktas/TaskFlow/pkg/models"
	"github.com/hsemihaktas/TaskFlow/pkg/utils"
)

func TestCreateOrganizationGrantsOwnership(t *testing.T) {
	env := newTestEnv(t)
	userID, token := env.registerUser(t, "owner@example.com")

	orgID := env.createOrg(t, token, "Acme")

	m, err := env.store.GetMembership(userID, orgID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, m.Role)
}

func TestInvitationLifecycle(t *testing.T) {
	env := newTestEnv(t)
	_, ownerToken := env.registerUser(t, "founder@example.com")
	orgID := env.createOrg(t, ownerToken, "Acme")

	invToken := env.invite(t, ownerToken, orgID, "X@Example.com", "member")

	// invited address is normalized to lowercase
	inv, err := env.store.GetInvitationByToken(invToken)
	require.NoError(t, err)
	assert.Equal(t, "x@example.com", inv.Email)
	assert.Equal(t, models.InvitationPending, inv.Status)

	inviteeID, inviteeToken := env.registerUser(t, "x@example.com")

	rec := env.do(t, http.MethodPost, "/api/invitations/"+invToken+"/accept", inviteeToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	m, err := env.store.GetMembership(inviteeID, orgID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, m.Role)

	inv, err = env.store.GetInvitationByToken(invToken)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationAccepted, inv.Status)
	require.NotNil(t, inv.AcceptedBy)
	assert.Equal(t, inviteeID, *inv.AcceptedBy)

	// the new member cannot invite anyone
	rec = env.do(t, http.MethodPost, "/api/orgs/"+orgID+"/invitations", inviteeToken, map[string]interface{}{
		"email": "y@example.com",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAcceptInvitationEmailMismatch(t *testing.T) {
	env := newTestEnv(t)
	_, ownerToken := env.registerUser(t, "founder@example.com")
	orgID := env.createOrg(t, ownerToken, "Acme")
	invToken := env.invite(t, ownerToken, orgID, "invited@example.com", "member")

	_, otherToken := env.registerUser(t, "other@example.com")

	rec := env.do(t, http.MethodPost, "/api/invitations/"+invToken+"/accept", otherToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "EMAIL_MISMATCH", decodeError(t, rec).Code)
}

func TestAcceptExpiredInvitation(t *testing.T) {
	env := newTestEnv(t)
	ownerID, ownerToken := env.registerUser(t, "founder@example.com")
	orgID := env.createOrg(t, ownerToken, "Acme")

	tok, err := utils.GenerateURLToken()
	require.NoError(t, err)
	inv := &models.Invitation{
		OrganizationID: orgID,
		Email:          "late@example.com",
		Role:           models.RoleMember,
		Token:          tok,
		InvitedBy:      ownerID,
		Status:         models.InvitationPending,
		ExpiresAt:      time.Now().Add(-time.Hour),
	}
	require.NoError(t, env.store.CreateInvitation(inv))

	_, lateToken := env.registerUser(t, "late@example.com")

	rec := env.do(t, http.MethodPost, "/api/invitations/"+tok+"/accept", lateToken, nil)
	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Equal(t, "INVITATION_EXPIRED", decodeError(t, rec).Code)

	// the overdue invitation was flipped to expired on the way out
	stored, err := env.store.GetInvitationByToken(tok)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationExpired, stored.Status)
}

func TestInviteConflicts(t *testing.T) {
	env := newTestEnv(t)
	_, ownerToken := env.registerUser(t, "founder@example.com")
	orgID := env.createOrg(t, ownerToken, "Acme")

	env.invite(t, ownerToken, orgID, "dup@example.com", "member")

	// second invitation for the same address while one is pending
	rec := env.do(t, http.MethodPost, "/api/orgs/"+orgID+"/invitations", ownerToken, map[string]interface{}{
		"email": "dup@example.com",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// inviting an existing member
	invToken := env.invite(t, ownerToken, orgID, "member@example.com", "member")
	_, memberToken := env.registerUser(t, "member@example.com")
	rec = env.do(t, http.MethodPost, "/api/invitations/"+invToken+"/accept", memberToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/orgs/"+orgID+"/invitations", ownerToken, map[string]interface{}{
		"email": "member@example.com",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestInviteReplacesExpiredInvitation(t *testing.T) {
	env := newTestEnv(t)
	ownerID, ownerToken := env.registerUser(t, "founder@example.com")
	orgID := env.createOrg(t, ownerToken, "Acme")

	tok, err := utils.GenerateURLToken()
	require.NoError(t, err)
	stale := &models.Invitation{
		OrganizationID: orgID,
		Email:          "again@example.com",
		Role:           models.RoleMember,
		Token:          tok,
		InvitedBy:      ownerID,
		Status:         models.InvitationPending,
		ExpiresAt:      time.Now().Add(-time.Hour),
	}
	require.NoError(t, env.store.CreateInvitation(stale))

	// a fresh invitation replaces the overdue pending one
	newToken := env.invite(t, ownerToken, orgID, "again@example.com", "member")
	assert.NotEqual(t, tok, newToken)

	_, err = env.store.GetInvitationByToken(tok)
	assert.Error(t, err)
}

func TestUpdateMemberRole(t *testing.T) {
	env := newTestEnv(t)
	_, ownerToken := env.registerUser(t, "founder@example.com")
	orgID := env.createOrg(t, ownerToken, "Acme")

	invToken := env.invite(t, ownerToken, orgID, "m@example.com", "member")
	memberID, memberToken := env.registerUser(t, "m@example.com")
	rec := env.do(t, http.MethodPost, "/api/invitations/"+invToken+"/accept", memberToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	m, err := env.store.GetMembership(memberID, orgID)
	require.NoError(t, err)

	// owner promotes member to admin
	rec = env.do(t, http.MethodPut, "/api/orgs/"+orgID+"/members/"+m.ID, ownerToken, map[string]interface{}{
		"role": "admin",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// nobody can mint a second owner
	rec = env.do(t, http.MethodPut, "/api/orgs/"+orgID+"/members/"+m.ID, ownerToken, map[string]interface{}{
		"role": "owner",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// the admin cannot change their own role
	rec = env.do(t, http.MethodPut, "/api/orgs/"+orgID+"/members/"+m.ID, memberToken, map[string]interface{}{
		"role": "member",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestNonMemberGetsForbidden(t *testing.T) {
	env := newTestEnv(t)
	_, ownerToken := env.registerUser(t, "founder@example.com")
	orgID := env.createOrg(t, ownerToken, "Acme")

	_, strangerToken := env.registerUser(t, "stranger@example.com")

	rec := env.do(t, http.MethodGet, "/api/orgs/"+orgID, strangerToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/orgs/"+orgID+"/members", strangerToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeleteOrganizationOwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	_, ownerToken := env.registerUser(t, "founder@example.com")
	orgID := env.createOrg(t, ownerToken, "Acme")

	invToken := env.invite(t, ownerToken, orgID, "a@example.com", "admin")
	_, adminToken := env.registerUser(t, "a@example.com")
	rec := env.do(t, http.MethodPost, "/api/invitations/"+invToken+"/accept", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/orgs/"+orgID, adminToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/orgs/"+orgID, ownerToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListOrganizationsETag(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.registerUser(t, "u@example.com")
	env.createOrg(t, token, "Acme")

	rec := env.do(t, http.MethodGet, "/api/orgs", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	// replay with If-None-Match skips the body
	rec = env.doWithHeader(t, http.MethodGet, "/api/orgs", token, "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, rec.Code)

	// a new organization changes the tag
	env.createOrg(t, token, "Bolt")
	rec = env.doWithHeader(t, http.MethodGet, "/api/orgs", token, "If-None-Match", etag)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, etag, rec.Header().Get("ETag"))
}
