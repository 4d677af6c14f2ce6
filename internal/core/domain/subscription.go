package domain

// SubscriptionKeys holds the client encryption keys of a push subscription.
type SubscriptionKeys struct {
	P256dh string `json:"p256dh" db:"p256dh"`
	Auth   string `json:"auth"   db:"auth"`
}

// PushSubscription is one admin user's push endpoint. At most one live
// subscription exists per user; subscribing again overwrites it.
type PushSubscription struct {
	UserID   string           `json:"user_id"  db:"user_id"`
	Endpoint string           `json:"endpoint" db:"endpoint"`
	Keys     SubscriptionKeys `json:"keys"`
}
