package data

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// Persona is a named identity owned by an account. Blaze clients log in with
// an account and then select one of its personas to play as.
type Persona struct {
	ID uint64 `gorm:"primaryKey"`

	Account   *Account
	AccountID uint64 `gorm:"index"`

	DisplayName string `gorm:"unique; not null"`
	// Last time the persona was selected, in seconds since the epoch.
	LastUsed int64
	Status   uint8
	// External platform reference and its type, passed through to clients.
	ExternalRef     uint64
	ExternalRefType uint8

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt
}

// FindPersona returns the Persona with id or nil if none exists.
func FindPersona(db *gorm.DB, id uint64) (*Persona, error) {
	var persona Persona
	err := db.First(&persona, id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &persona, nil
}

// FindPersonaByName returns the Persona with the given display name or nil if none exists.
func FindPersonaByName(db *gorm.DB, name string) (*Persona, error) {
	var persona Persona
	err := db.Where("display_name = ?", name).First(&persona).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &persona, nil
}

// FindPersonas returns every Persona belonging to an account, oldest first.
func FindPersonas(db *gorm.DB, accountID uint64) ([]Persona, error) {
	var personas []Persona
	err := db.Where("account_id = ?", accountID).Order("id").Find(&personas).Error
	if err != nil {
		return nil, err
	}
	return personas, nil
}

// CreatePersona persists a Persona to the database.
func CreatePersona(db *gorm.DB, persona *Persona) error {
	return db.Create(persona).Error
}

// TouchPersona records that the persona was selected at t.
func TouchPersona(db *gorm.DB, persona *Persona, t time.Time) error {
	persona.LastUsed = t.Unix()
	return db.Model(persona).Update("last_used", persona.LastUsed).Error
}

// DeletePersona soft-deletes a Persona.
func DeletePersona(db *gorm.DB, persona *Persona) error {
	return db.Delete(persona).Error
}
