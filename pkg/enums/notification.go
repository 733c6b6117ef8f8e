package enums

import "fmt"

// NotificationType classifies a push notification by the domain object it
// correlates to.
type NotificationType string

const (
	NotificationTypeProperty NotificationType = "property"
	NotificationTypeInquiry  NotificationType = "inquiry"
	NotificationTypeChat     NotificationType = "chat"
	NotificationTypeSystem   NotificationType = "system"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeProperty,
	NotificationTypeInquiry,
	NotificationTypeChat,
	NotificationTypeSystem,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
