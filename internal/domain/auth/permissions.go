package auth

const (
	RoleEmployee = "employee"
	RoleHR       = "hr"
)

const (
	PermDocumentsWrite    = "documents.write"
	PermDocumentsApprove  = "documents.approve"
	PermDelegate          = "documents.delegate"
	PermLeaveRead         = "leave.read"
	PermLeaveAdmin        = "leave.admin"
	PermNotificationsRead = "notifications.read"
)

var DefaultPermissions = []string{
	PermDocumentsWrite,
	PermDocumentsApprove,
	PermDelegate,
	PermLeaveRead,
	PermLeaveAdmin,
	PermNotificationsRead,
}

var RolePermissions = map[string][]string{
	RoleEmployee: {
		PermDocumentsWrite,
		PermDocumentsApprove,
		PermDelegate,
		PermLeaveRead,
		PermNotificationsRead,
	},
	RoleHR: {
		PermDocumentsWrite,
		PermDocumentsApprove,
		PermDelegate,
		PermLeaveRead,
		PermLeaveAdmin,
		PermNotificationsRead,
	},
}

// HasPermission reports whether role grants permission. Unknown roles grant
// nothing.
func HasPermission(role, permission string) bool {
	for _, p := range RolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}
