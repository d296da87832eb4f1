package vault

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorize(t *testing.T) {
	owner := uuid.New()
	admin := uuid.New()
	viewer := uuid.New()
	stranger := uuid.New()

	project := &Project{
		ID:      uuid.New(),
		OwnerID: owner,
		Members: []Member{
			{UserID: owner, Role: RoleOwner, AddedAt: time.Now()},
			{UserID: admin, Role: RoleAdmin, AddedAt: time.Now()},
			{UserID: viewer, Role: RoleViewer, AddedAt: time.Now()},
		},
	}

	tests := []struct {
		name    string
		userID  uuid.UUID
		allowed []Role
		want    Role
		wantErr error
	}{
		{"owner passes owner-only", owner, []Role{RoleOwner}, RoleOwner, nil},
		{"owner passes mixed set listing owner", owner, []Role{RoleOwner, RoleAdmin}, RoleOwner, nil},
		{"owner denied when owner not listed", owner, []Role{RoleAdmin, RoleDeveloper}, "", ErrDenied},
		{"admin passes when listed", admin, []Role{RoleOwner, RoleAdmin}, RoleAdmin, nil},
		{"admin denied owner-only", admin, []Role{RoleOwner}, "", ErrDenied},
		{"viewer passes read set", viewer, []Role{RoleOwner, RoleAdmin, RoleDeveloper, RoleViewer}, RoleViewer, nil},
		{"viewer denied write set", viewer, []Role{RoleOwner, RoleAdmin, RoleDeveloper}, "", ErrDenied},
		{"non-member rejected before role check", stranger, []Role{RoleOwner, RoleAdmin, RoleDeveloper, RoleViewer}, "", ErrNotMember},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			role, err := Authorize(&User{ID: tt.userID}, project, tt.allowed...)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, role)
		})
	}
}

// The owner is authorized through ownership itself even when the membership
// record went missing.
func TestAuthorizeOwnerOutsideMemberList(t *testing.T) {
	owner := uuid.New()
	project := &Project{ID: uuid.New(), OwnerID: owner, Members: nil}

	role, err := Authorize(&User{ID: owner}, project, RoleOwner, RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, RoleOwner, role)

	_, err = Authorize(&User{ID: owner}, project, RoleViewer)
	require.ErrorIs(t, err, ErrDenied)
}

func TestRoleValid(t *testing.T) {
	for _, r := range []Role{RoleOwner, RoleAdmin, RoleDeveloper, RoleViewer} {
		assert.True(t, r.Valid())
	}
	assert.False(t, Role("superuser").Valid())
	assert.False(t, Role("").Valid())
}

func TestPlanProjectLimit(t *testing.T) {
	assert.Equal(t, 3, PlanFree.ProjectLimit())
	assert.Equal(t, 20, PlanPro.ProjectLimit())
	assert.Equal(t, -1, PlanTeam.ProjectLimit())
	assert.Equal(t, 3, Plan("enterprise").ProjectLimit())
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, NormalizeEmail("Alice@Example.COM"), NormalizeEmail("alice@example.com"))
	assert.Equal(t, NormalizeEmail("  bob@example.com "), NormalizeEmail("bob@example.com"))
}
