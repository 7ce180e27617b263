// internal/models/notification.go
package models

import "time"

// OwnerNotification is addressed to a single owner. Detail rows carry a nil
// Count; the counter row heading an aggregated burst carries Count >= 2 and
// FirstCreatedAt anchored at the burst's first event.
type OwnerNotification struct {
	ID             int64      `db:"id" json:"id"`
	Message        string     `db:"message" json:"message"`
	Type           string     `db:"type" json:"type"`
	Resource       string     `db:"resource" json:"resource"`
	ResourceID     string     `db:"resource_id" json:"resourceId"`
	OwnerEmail     string     `db:"owner_email" json:"ownerEmail"`
	IsRead         bool       `db:"is_read" json:"isRead"`
	IsEmailSent    bool       `db:"is_email_sent" json:"isEmailSent"`
	IsBulk         bool       `db:"is_bulk" json:"isBulk"`
	Count          *int       `db:"count" json:"count,omitempty"`
	FirstCreatedAt *time.Time `db:"first_created_at" json:"firstCreatedAt,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
}

// IsCounter reports whether the row is a burst counter rather than an event.
func (n *OwnerNotification) IsCounter() bool {
	return n.Count != nil
}

// GroupNotification is one member's copy of a group-addressed event.
// OwnerEmail records the originating actor and may be nil.
type GroupNotification struct {
	ID          int64     `db:"id" json:"id"`
	Message     string    `db:"message" json:"message"`
	Type        string    `db:"type" json:"type"`
	Resource    string    `db:"resource" json:"resource"`
	ResourceID  string    `db:"resource_id" json:"resourceId"`
	GroupID     string    `db:"group_id" json:"groupId"`
	MemberEmail string    `db:"member_email" json:"memberEmail"`
	OwnerEmail  *string   `db:"owner_email" json:"ownerEmail,omitempty"`
	IsRead      bool      `db:"is_read" json:"isRead"`
	IsEmailSent bool      `db:"is_email_sent" json:"isEmailSent"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

type Member struct {
	Email string `db:"member_email" json:"email"`
}

// GroupCount is the number of matching notifications in one group.
type GroupCount struct {
	GroupID string `db:"group_id" json:"groupId"`
	Count   int    `db:"count" json:"count"`
}

// BurstStatus is the state of one (owner, type, resource) burst.
type BurstStatus string

const (
	BurstEmpty      BurstStatus = "empty"
	BurstSingle     BurstStatus = "single"
	BurstAggregated BurstStatus = "aggregated"
)

// BurstState is the keyed burst record. OwnerEmail is stored lower-cased.
// HeadID points at the row currently flagged is_bulk for the key.
type BurstState struct {
	OwnerEmail     string      `db:"owner_email" json:"ownerEmail"`
	Type           string      `db:"type" json:"type"`
	Resource       string      `db:"resource" json:"resource"`
	State          BurstStatus `db:"state" json:"state"`
	HeadID         *int64      `db:"head_id" json:"headId,omitempty"`
	Count          int         `db:"count" json:"count"`
	FirstCreatedAt *time.Time  `db:"first_created_at" json:"firstCreatedAt,omitempty"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updatedAt"`
}
