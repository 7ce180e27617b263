// internal/workers/notifications/query-notifications/models.go
package querynotifications

import "notification-workers/internal/models"

const (
	OperationFindOwner     = "find-owner"
	OperationFindGroup     = "find-group"
	OperationCount         = "count"
	OperationCountPerGroup = "count-per-group"
)

type OrderBy struct {
	Column    string `json:"column"`
	Direction string `json:"direction"`
}

type Input struct {
	Operation string    `json:"operation"`
	Email     *string   `json:"email"`
	GroupID   *string   `json:"groupId"`
	IsRead    *bool     `json:"isRead"`
	Limit     *int      `json:"limit"`
	Offset    *int      `json:"offset"`
	OrderBy   []OrderBy `json:"orderBy"`
}

// Output fields are filled per operation; total is always set.
type Output struct {
	Total              int                        `json:"total"`
	OwnerNotifications []models.OwnerNotification `json:"ownerNotifications,omitempty"`
	GroupNotifications []models.GroupNotification `json:"groupNotifications,omitempty"`
	Counts             []models.GroupCount        `json:"counts,omitempty"`
}
