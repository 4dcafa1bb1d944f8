// Package auth verifies client credentials and manages the accounts that
// own them.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/dcrodman/blaze/internal/core/data"
)

var (
	ErrUnknown            = errors.New("an unexpected error occurred, please contact your server administrator")
	ErrInvalidCredentials = errors.New("email/password combination not found")
	ErrAccountBanned      = errors.New("this account has been suspended")
	ErrAccountNotFound    = errors.New("account not found")
)

// Database hooks, swapped out by tests.
var (
	findAccount              = data.FindAccountByEmail
	findAccountByUsername    = data.FindAccountByUsername
	findUnscopedAccount      = data.FindUnscopedAccount
	createAccount            = data.CreateAccount
	createPersona            = data.CreatePersona
	softDeleteAccount        = data.DeleteAccount
	permanentlyDeleteAccount = data.PermanentlyDeleteAccount
)

// VerifyAccount checks the Accounts table for the specified credentials
// combination and validates that the account is accessible.
func VerifyAccount(db *gorm.DB, email, password string) (*data.Account, error) {
	account, err := findAccount(db, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknown, err)
	}

	if account == nil || account.Password != HashPassword(password) {
		return nil, ErrInvalidCredentials
	} else if account.Banned || !account.Active {
		return nil, ErrAccountBanned
	}

	return account, nil
}

// CreateAccount takes the specified credentials and creates a new record in
// the database along with a default persona named after the account.
func CreateAccount(db *gorm.DB, username, password, email string) (*data.Account, error) {
	account := &data.Account{
		Username:         username,
		Password:         HashPassword(password),
		Email:            strings.ToLower(email),
		RegistrationDate: time.Now(),
		Active:           true,
	}

	if err := createAccount(db, account); err != nil {
		return nil, err
	}

	persona := &data.Persona{AccountID: account.ID, DisplayName: username}
	if err := createPersona(db, persona); err != nil {
		return nil, fmt.Errorf("error creating persona for %s: %w", username, err)
	}

	return account, nil
}

// DeleteAccount soft-deletes the account with the given username.
func DeleteAccount(db *gorm.DB, username string) error {
	account, err := findAccountByUsername(db, username)
	if err != nil {
		return err
	} else if account == nil {
		return ErrAccountNotFound
	}
	return softDeleteAccount(db, account)
}

// PermanentlyDeleteAccount removes the account with the given username.
func PermanentlyDeleteAccount(db *gorm.DB, username string) error {
	account, err := findUnscopedAccount(db, username)
	if err != nil {
		return err
	} else if account == nil {
		return ErrAccountNotFound
	}
	return permanentlyDeleteAccount(db, account)
}

// HashPassword returns a version of password with the server's chosen hashing strategy.
func HashPassword(password string) string {
	hash := sha256.New()
	hash.Write(stripPadding([]byte(password)))
	return hex.EncodeToString(hash.Sum(nil)[:])
}

func stripPadding(b []byte) []byte {
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] != 0 {
			return b[:i+1]
		}
	}
	return b
}
