// internal/workers/notifications/mark-notifications-read/models.go
package marknotificationsread

const (
	ScopeOwner = "owner"
	ScopeGroup = "group"
)

type Input struct {
	Scope          string  `json:"scope"`
	Email          string  `json:"email"`
	GroupID        *string `json:"groupId"`
	NotificationID *int64  `json:"notificationId"`
}

// Output carries the number of notifications that were unread, and the
// requested notification when notificationId was given and found.
type Output struct {
	Marked       int         `json:"marked"`
	Notification interface{} `json:"notification"`
}
