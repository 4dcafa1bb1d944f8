package data

import (
	"time"

	"gorm.io/gorm"
)

// ListEntry is one member of a persona's association list (friends, ignored
// players and so on).
type ListEntry struct {
	ID uint64 `gorm:"primaryKey"`

	OwnerID  uint64 `gorm:"uniqueIndex:idx_list_member"`
	ListType uint32 `gorm:"uniqueIndex:idx_list_member"`
	MemberID uint64 `gorm:"uniqueIndex:idx_list_member"`

	MemberName string
	AddedAt    time.Time
}

// FindListEntries returns the members of one list, in the order they were added.
func FindListEntries(db *gorm.DB, ownerID uint64, listType uint32) ([]ListEntry, error) {
	var entries []ListEntry
	err := db.Where("owner_id = ? AND list_type = ?", ownerID, listType).Order("id").Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// CountListEntries returns the number of members in one list.
func CountListEntries(db *gorm.DB, ownerID uint64, listType uint32) (int64, error) {
	var n int64
	err := db.Model(&ListEntry{}).Where("owner_id = ? AND list_type = ?", ownerID, listType).Count(&n).Error
	return n, err
}

// CreateListEntry adds a member to a list. Adding an existing member is not an error.
func CreateListEntry(db *gorm.DB, entry *ListEntry) error {
	return db.Where(ListEntry{OwnerID: entry.OwnerID, ListType: entry.ListType, MemberID: entry.MemberID}).
		FirstOrCreate(entry).Error
}

// DeleteListEntry removes a member from a list, returning whether it was present.
func DeleteListEntry(db *gorm.DB, ownerID uint64, listType uint32, memberID uint64) (bool, error) {
	res := db.Where("owner_id = ? AND list_type = ? AND member_id = ?", ownerID, listType, memberID).Delete(&ListEntry{})
	return res.RowsAffected > 0, res.Error
}

// ClearListEntries removes every member from a list.
func ClearListEntries(db *gorm.DB, ownerID uint64, listType uint32) error {
	return db.Where("owner_id = ? AND list_type = ?", ownerID, listType).Delete(&ListEntry{}).Error
}
