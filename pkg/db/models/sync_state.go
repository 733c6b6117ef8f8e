package models

// SyncState is a singleton row carrying the cached unread counter and the
// monotonic insertion sequence. It is updated in the same transaction as any
// notification mutation so the pair is always consistent on disk.
type SyncState struct {
	ID           int64 `gorm:"primaryKey" json:"-"`
	UnreadCount  int64 `gorm:"not null;default:0" json:"unreadCount"`
	NextPosition int64 `gorm:"not null;default:1" json:"-"`
}
