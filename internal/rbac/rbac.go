package rbac

type Role string
type Action string

const (
	RolePending Role = "PENDING"
	RoleUser    Role = "USER"
	RoleAdmin   Role = "ADMIN"
)

const (
	ActionSignIn  Action = "sign_in"
	ActionInspect Action = "inspect"
	ActionUpload  Action = "upload"
	ActionReview  Action = "review"
	ActionAdmin   Action = "admin"
)

// Can reports whether role may perform action. Pending users may only hold a
// session so the client can show the approval notice.
func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleUser:
		return action == ActionSignIn || action == ActionInspect || action == ActionUpload
	case RolePending:
		return action == ActionSignIn
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RolePending, RoleUser, RoleAdmin:
		return Role(role)
	default:
		return RolePending
	}
}
