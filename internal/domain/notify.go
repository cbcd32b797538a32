package domain

// NotificationType distinguishes success from error notifications.
type NotificationType string

const (
	NotifySuccess NotificationType = "success"
	NotifyError   NotificationType = "error"
)

// Notification is emitted to the caller after every trade or lifecycle step.
type Notification struct {
	ID      string // uuid
	Type    NotificationType
	Message string
	TxHash  string
}

// Notifier receives notifications at the boundary to the caller.
// Implementations must not block.
type Notifier interface {
	Notify(n Notification)
}

// Invalidator receives opaque query-invalidation keys after
// state-changing operations. The caller owns the cache; the core only
// signals invalidation.
type Invalidator interface {
	Invalidate(keys ...string)
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) Notify(Notification) {}

// NopInvalidator discards invalidation signals.
type NopInvalidator struct{}

func (NopInvalidator) Invalidate(...string) {}
