package rbac

type Role string
type Action string

const (
	RoleUser       Role = "user"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

const (
	ActionReadReviews     Action = "reviews:read"
	ActionWriteReview     Action = "reviews:write"
	ActionModerateReviews Action = "reviews:moderate"
	ActionReadFeedback    Action = "feedback:read"
	ActionReplyFeedback   Action = "feedback:reply"
	ActionManageDirectory Action = "directory:manage"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleSupervisor:
		return action == ActionReadReviews || action == ActionWriteReview ||
			action == ActionReadFeedback || action == ActionReplyFeedback
	case RoleUser:
		return action == ActionReadReviews || action == ActionWriteReview
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleUser, RoleSupervisor, RoleAdmin:
		return Role(role)
	default:
		return RoleUser
	}
}
