// internal/workers/notifications/fan-out-group-notification/models.go
package fanoutgroupnotification

import "notification-workers/internal/models"

type Input struct {
	Message     string  `json:"message"`
	Type        string  `json:"type"`
	Resource    string  `json:"resource"`
	ResourceID  string  `json:"resourceId"`
	GroupID     string  `json:"groupId"`
	OwnerEmail  *string `json:"ownerEmail"`
	IsRead      bool    `json:"isRead"`
	IsEmailSent bool    `json:"isEmailSent"`
}

type Output struct {
	Notifications []models.GroupNotification `json:"notifications"`
	Count         int                        `json:"count"`
}
