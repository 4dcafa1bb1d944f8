package data

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserSetting is a client defined key/value pair saved per persona.
type UserSetting struct {
	ID uint64 `gorm:"primaryKey"`

	Persona   *Persona
	PersonaID uint64 `gorm:"uniqueIndex:idx_persona_key"`

	Key   string `gorm:"uniqueIndex:idx_persona_key; not null"`
	Value string
}

// FindUserSetting returns a single setting or nil if it has never been saved.
func FindUserSetting(db *gorm.DB, personaID uint64, key string) (*UserSetting, error) {
	var setting UserSetting
	err := db.Where("persona_id = ? AND key = ?", personaID, key).First(&setting).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &setting, nil
}

// FindUserSettings returns all settings saved for a persona.
func FindUserSettings(db *gorm.DB, personaID uint64) ([]UserSetting, error) {
	var settings []UserSetting
	if err := db.Where("persona_id = ?", personaID).Order("key").Find(&settings).Error; err != nil {
		return nil, err
	}
	return settings, nil
}

// SaveUserSetting inserts the setting or overwrites the value of an existing one.
func SaveUserSetting(db *gorm.DB, setting *UserSetting) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "persona_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(setting).Error
}
