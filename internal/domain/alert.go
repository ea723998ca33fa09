package domain

import "time"

// AlertKey is the structural uniqueness key of an alert.
type AlertKey struct {
	UserID   string
	RecallID int64
}

// Alert tells a user that one of their saved products was recalled.
type Alert struct {
	ID        int64
	UserID    string
	RecallID  int64
	ProductID string
	CreatedAt time.Time
	Viewed    bool
	Notified  bool
}

// Key returns the (user, recall) pair the alert belongs to.
func (a Alert) Key() AlertKey {
	return AlertKey{UserID: a.UserID, RecallID: a.RecallID}
}

// AlertView is an alert joined with the recall it refers to.
type AlertView struct {
	Alert  Alert
	Recall RecallRecord
}
