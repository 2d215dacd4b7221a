package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	chiRoute "github.com/go-chi/chi/v5"

	"github.com/hsemihaktas/TaskFlow/pkg/config"
	"github.com/hsemihaktas/TaskFlow/pkg/database"
	"github.com/hsemihaktas/TaskFlow/pkg/metrics"
	"github.com/hsemihaktas/TaskFlow/pkg/middleware"
	"github.com/hsemihaktas/TaskFlow/pkg/models"
	"github.com/hsemihaktas/TaskFlow/pkg/policy"
	"github.com/hsemihaktas/TaskFlow/pkg/projection"
	"github.com/hsemihaktas/TaskFlow/pkg/utils"
)

// OrgsHandler serves organizations, memberships and invitations
type OrgsHandler struct {
	config *config.Config
	store  database.StoreInterface
}

func NewOrgsHandler(cfg *config.Config, store database.StoreInterface) *OrgsHandler {
	return &OrgsHandler{config: cfg, store: store}
}

// requireOrgMember resolves the caller's role or writes a 403.
// Authorization is answered before any other store access.
func (h *OrgsHandler) requireOrgMember(w http.ResponseWriter, userID, orgID string) (*models.Membership, bool) {
	m, err := h.store.GetMembership(userID, orgID)
	if err != nil {
		utils.WriteForbiddenResponse(w, "Not a member of organization")
		return nil, false
	}
	return m, true
}

// POST /api/orgs
func (h *OrgsHandler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		utils.WriteValidationErrorResponse(w, "name is required", "")
		return
	}

	org := &models.Organization{Name: strings.TrimSpace(req.Name), CreatedBy: user.ID}
	if err := h.store.CreateOrganization(org); err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	// the creator becomes the organization's single owner
	membership := &models.Membership{
		UserID:         user.ID,
		OrganizationID: org.ID,
		Role:           models.RoleOwner,
	}
	if err := h.store.AddMembership(membership); err != nil {
		fmt.Printf("[error] owner membership failed for org=%s user=%s: %v\n", org.ID, user.ID, err)
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	utils.WriteCreatedResponse(w, map[string]interface{}{
		"organization": org,
		"membership":   membership,
	})
}

// GET /api/orgs
func (h *OrgsHandler) ListMyOrganizations(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	orgs, err := h.store.ListUserOrganizations(user.ID)
	if err != nil {
		fmt.Printf("[error] ListMyOrganizations failed for user=%s: %v\n", user.ID, err)
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	// Weak ETag: orgs:<user>:<count>:<maxUpdated>; lets pollers skip bodies
	var maxUpdated int64
	for _, o := range orgs {
		if ts := o.UpdatedAt.UnixMilli(); ts > maxUpdated {
			maxUpdated = ts
		}
	}
	etag := fmt.Sprintf("W/\"orgs:%s:%d:%d\"", user.ID, len(orgs), maxUpdated)
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"organizations": orgs})
}

// GET /api/orgs/{id}
func (h *OrgsHandler) GetOrganization(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	orgID := chiRoute.URLParam(r, "id")

	membership, ok := h.requireOrgMember(w, user.ID, orgID)
	if !ok {
		return
	}

	org, err := h.store.GetOrganization(orgID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Organization not found")
			return
		}
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	members, err := h.store.ListMemberships(orgID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	projects, err := h.store.ListProjectsByOrganization(orgID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"organization": org,
		"role":         membership.Role,
		"member_count": len(members),
		"projects":     projects,
	})
}

// DELETE /api/orgs/{id}
func (h *OrgsHandler) DeleteOrganization(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	orgID := chiRoute.URLParam(r, "id")

	membership, ok := h.requireOrgMember(w, user.ID, orgID)
	if !ok {
		return
	}
	if !policy.CanDeleteOrganization(membership.Role) {
		utils.WriteForbiddenResponse(w, "Owner privileges required")
		return
	}

	if err := h.store.DeleteOrganization(orgID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Organization not found")
			return
		}
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"deleted": orgID})
}

// GET /api/orgs/{id}/members
func (h *OrgsHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	orgID := chiRoute.URLParam(r, "id")

	if _, ok := h.requireOrgMember(w, user.ID, orgID); !ok {
		return
	}

	memberships, err := h.store.ListMemberships(orgID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	members := make([]models.Member, 0, len(memberships))
	for _, m := range memberships {
		member := models.Member{Membership: m}
		if profile, err := h.store.GetProfile(m.UserID); err == nil {
			member.Profile = profile
		} else {
			member.Profile = &models.Profile{ID: m.UserID, FullName: models.UnknownUser}
		}
		members = append(members, member)
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"members": members})
}

// PUT /api/orgs/{id}/members/{memberID}
func (h *OrgsHandler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	orgID := chiRoute.URLParam(r, "id")
	memberID := chiRoute.URLParam(r, "memberID")

	actor, ok := h.requireOrgMember(w, user.ID, orgID)
	if !ok {
		return
	}

	var req struct {
		Role models.Role `json:"role"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if !req.Role.Valid() {
		utils.WriteValidationErrorResponse(w, "role must be owner, admin or member", "")
		return
	}

	target, err := h.store.GetMembershipByID(memberID)
	if err != nil || target.OrganizationID != orgID {
		utils.WriteNotFoundResponse(w, "Member not found")
		return
	}

	if !policy.CanUpdateMemberRole(actor.Role, target.Role, target.UserID == user.ID, req.Role) {
		utils.WriteForbiddenResponse(w, "Not allowed to change this member's role")
		return
	}

	if err := h.store.UpdateMembershipRole(target.ID, req.Role); err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	target.Role = req.Role

	utils.WriteSuccessResponse(w, map[string]interface{}{"membership": target})
}

// DELETE /api/orgs/{id}/members/{memberID}
// Managers remove lower-ranked members; any non-owner may remove
// themselves to leave the organization.
func (h *OrgsHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	orgID := chiRoute.URLParam(r, "id")
	memberID := chiRoute.URLParam(r, "memberID")

	actor, ok := h.requireOrgMember(w, user.ID, orgID)
	if !ok {
		return
	}

	target, err := h.store.GetMembershipByID(memberID)
	if err != nil || target.OrganizationID != orgID {
		utils.WriteNotFoundResponse(w, "Member not found")
		return
	}

	if !policy.CanRemoveMember(actor.Role, target.Role, target.UserID == user.ID) {
		utils.WriteForbiddenResponse(w, "Not allowed to remove this member")
		return
	}

	if err := h.store.DeleteMembership(target.ID); err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"removed": target.ID})
}

// POST /api/orgs/{id}/invitations
func (h *OrgsHandler) InviteMember(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	orgID := chiRoute.URLParam(r, "id")

	actor, ok := h.requireOrgMember(w, user.ID, orgID)
	if !ok {
		return
	}
	if !policy.CanInviteMembers(actor.Role) {
		utils.WriteForbiddenResponse(w, "Only owner or admin can invite members")
		return
	}

	var req struct {
		Email string      `json:"email"`
		Role  models.Role `json:"role"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		utils.WriteValidationErrorResponse(w, "A valid email is required", "")
		return
	}
	if req.Role == "" {
		req.Role = models.RoleMember
	}
	if req.Role != models.RoleAdmin && req.Role != models.RoleMember {
		utils.WriteValidationErrorResponse(w, "role must be admin or member", "")
		return
	}

	// A user already in the organization cannot be invited again
	if existing, err := h.store.GetUserByEmail(email); err == nil {
		if _, err := h.store.GetMembership(existing.ID, orgID); err == nil {
			utils.WriteConflictResponse(w, "User is already a member of this organization")
			return
		}
	}

	// One live invitation per (org, email); an expired one is replaced
	if pending, err := h.store.GetPendingInvitation(orgID, email); err == nil {
		if time.Now().Before(pending.ExpiresAt) {
			utils.WriteConflictResponse(w, "An invitation for this email is already pending")
			return
		}
		if err := h.store.DeleteInvitation(pending.ID); err != nil {
			fmt.Printf("[warn] failed to delete expired invitation %s: %v\n", pending.ID, err)
		}
	}

	token, err := utils.GenerateURLToken()
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to generate invitation token")
		return
	}

	inv := &models.Invitation{
		OrganizationID: orgID,
		Email:          email,
		Role:           req.Role,
		Token:          token,
		InvitedBy:      user.ID,
		Status:         models.InvitationPending,
		ExpiresAt:      time.Now().Add(models.InvitationTTL),
	}
	if err := h.store.CreateInvitation(inv); err != nil {
		if errors.Is(err, database.ErrConflict) {
			utils.WriteConflictResponse(w, "An invitation for this email is already pending")
			return
		}
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	utils.WriteCreatedResponse(w, map[string]interface{}{
		"invitation": inv,
		"share_link": h.config.BaseURL + "/invitation/" + inv.Token,
	})
}

// GET /api/invitations/{token}
// Unauthenticated: invitation landing pages need the summary before login.
func (h *OrgsHandler) GetInvitationByToken(w http.ResponseWriter, r *http.Request) {
	token := chiRoute.URLParam(r, "token")

	inv, err := h.store.GetInvitationByToken(token)
	if err != nil {
		utils.WriteNotFoundResponse(w, "Invitation not found")
		return
	}

	// lazy expiry: an overdue pending invitation is expired on first read
	if inv.Status == models.InvitationPending && time.Now().After(inv.ExpiresAt) {
		inv.Status = models.InvitationExpired
		if err := h.store.UpdateInvitation(inv); err != nil {
			fmt.Printf("[warn] failed to persist expiry for invitation %s: %v\n", inv.ID, err)
		}
	}

	orgName := projection.UnknownOrganization
	if org, err := h.store.GetOrganization(inv.OrganizationID); err == nil {
		orgName = org.Name
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"invitation":        inv,
		"organization_name": orgName,
	})
}

// POST /api/invitations/{token}/accept
func (h *OrgsHandler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	token := chiRoute.URLParam(r, "token")

	inv, err := h.store.GetInvitationByToken(token)
	if err != nil {
		utils.WriteNotFoundResponse(w, "Invitation not found")
		return
	}

	switch inv.Status {
	case models.InvitationPending:
		// fall through to the expiry check
	case models.InvitationExpired:
		utils.WriteGoneResponse(w, "INVITATION_EXPIRED", "This invitation has expired")
		return
	default:
		utils.WriteConflictResponse(w, "This invitation has already been used")
		return
	}

	if time.Now().After(inv.ExpiresAt) {
		inv.Status = models.InvitationExpired
		if err := h.store.UpdateInvitation(inv); err != nil {
			fmt.Printf("[warn] failed to persist expiry for invitation %s: %v\n", inv.ID, err)
		}
		utils.WriteGoneResponse(w, "INVITATION_EXPIRED", "This invitation has expired")
		return
	}

	// the invitation is bound to the invited address, compared case-insensitively
	if !strings.EqualFold(user.Email, inv.Email) {
		utils.WriteErrorResponseWithCode(w, http.StatusForbidden, "EMAIL_MISMATCH",
			"This invitation was issued for a different email address", "")
		return
	}

	if _, err := h.store.GetMembership(user.ID, inv.OrganizationID); err == nil {
		utils.WriteConflictResponse(w, "You are already a member of this organization")
		return
	}

	membership := &models.Membership{
		UserID:         user.ID,
		OrganizationID: inv.OrganizationID,
		Role:           inv.Role,
	}
	if err := h.store.AddMembership(membership); err != nil {
		if errors.Is(err, database.ErrConflict) {
			utils.WriteConflictResponse(w, "You are already a member of this organization")
			return
		}
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	// Membership insert and invitation update are two writes. When the
	// second fails the membership stands and the invitation stays pending;
	// a re-accept then resolves as already-member.
	inv.Status = models.InvitationAccepted
	inv.AcceptedBy = &user.ID
	if err := h.store.UpdateInvitation(inv); err != nil {
		fmt.Printf("[warn] membership created but invitation %s not marked accepted: %v\n", inv.ID, err)
	}
	metrics.ObserveInvitationAccepted()

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"membership": membership,
		"invitation": inv,
	})
}

// POST /api/invitations/{token}/decline
// Declining leaves the invitation pending until it expires; the endpoint
// only acknowledges so clients can drop it from their lists.
func (h *OrgsHandler) DeclineInvitation(w http.ResponseWriter, r *http.Request) {
	if _, err := middleware.RequireUser(r.Context()); err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	token := chiRoute.URLParam(r, "token")

	if _, err := h.store.GetInvitationByToken(token); err != nil {
		utils.WriteNotFoundResponse(w, "Invitation not found")
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"declined": true})
}

// GET /api/invitations
func (h *OrgsHandler) ListMyInvitations(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	invitations, err := h.store.ListInvitationsByEmail(user.Email)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	// report overdue pending invitations as expired without waiting for the sweeper
	now := time.Now()
	for i := range invitations {
		if invitations[i].Status == models.InvitationPending && now.After(invitations[i].ExpiresAt) {
			invitations[i].Status = models.InvitationExpired
		}
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"invitations": invitations})
}
