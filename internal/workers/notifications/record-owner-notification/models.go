// internal/workers/notifications/record-owner-notification/models.go
package recordownernotification

import "notification-workers/internal/models"

type Input struct {
	Message     string `json:"message"`
	Type        string `json:"type"`
	Resource    string `json:"resource"`
	ResourceID  string `json:"resourceId"`
	OwnerEmail  string `json:"ownerEmail"`
	IsRead      bool   `json:"isRead"`
	IsEmailSent bool   `json:"isEmailSent"`
}

type Output struct {
	Notification *models.OwnerNotification `json:"notification"`
}
