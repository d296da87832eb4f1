package vault

import "slices"

// Authorize decides whether user may act on project given the endpoint's
// explicit allowed-role set. It is the single place owner handling lives:
// the owner passes any check that lists RoleOwner, whether or not they appear
// in the member list, but is not silently granted checks that don't.
func Authorize(user *User, project *Project, allowed ...Role) (Role, error) {
	isOwner := project.OwnerID == user.ID
	if isOwner && slices.Contains(allowed, RoleOwner) {
		return RoleOwner, nil
	}

	member, ok := project.Member(user.ID)
	if !ok && !isOwner {
		return "", ErrNotMember
	}

	role := member.Role
	if isOwner {
		role = RoleOwner
	}
	if !slices.Contains(allowed, role) {
		return "", ErrDenied
	}
	return role, nil
}
