package auth

import (
	"errors"
	"fmt"
	"testing"

	"gorm.io/gorm"

	"github.com/dcrodman/blaze/internal/core/data"
)

func TestCreateAccount(t *testing.T) {
	type args struct {
		username string
		password string
		email    string
	}
	tests := map[string]struct {
		dbCreateFn func(db *gorm.DB, account *data.Account) error
		args       args
		wantedErr  error
	}{
		"database_error": {
			dbCreateFn: func(db *gorm.DB, account *data.Account) error { return fmt.Errorf("database error") },
			args:       args{username: "test", password: "test", email: "test"},
			wantedErr:  fmt.Errorf("database error"),
		},
		"happy_path": {
			dbCreateFn: func(db *gorm.DB, account *data.Account) error { account.ID = 7; return nil },
			args:       args{username: "test", password: "test", email: "A@b.c"},
			wantedErr:  nil,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			originalCreateAccount, originalCreatePersona := createAccount, createPersona
			defer func() {
				createAccount, createPersona = originalCreateAccount, originalCreatePersona
			}()
			createAccount = tt.dbCreateFn
			var persona *data.Persona
			createPersona = func(db *gorm.DB, p *data.Persona) error {
				persona = p
				return nil
			}

			account, err := CreateAccount(nil, tt.args.username, tt.args.password, tt.args.email)
			if err != nil && err.Error() != tt.wantedErr.Error() {
				t.Fatalf("expected error to = %s, got = %s", tt.wantedErr, err)
			}

			if err == nil {
				if account.Username != tt.args.username {
					t.Errorf("expected account username = %s, got = %s", tt.args.username, account.Username)
				}
				if account.Password != HashPassword(tt.args.password) {
					t.Error("expected account password to equal hashed password")
				}
				if account.Email != "a@b.c" {
					t.Errorf("expected account email = %s, got = %s", "a@b.c", account.Email)
				}
				if persona == nil || persona.AccountID != 7 || persona.DisplayName != tt.args.username {
					t.Errorf("expected a default persona for the account, got = %+v", persona)
				}
			}
		})
	}
}

func TestHashPassword(t *testing.T) {
	password := "password"
	hashed := HashPassword(password)

	if password == hashed {
		t.Fatalf("expected hashed password not to equal password")
	}

	for i := 0; i < 10; i++ {
		if h := HashPassword(password); hashed != h {
			t.Fatalf("password hashing is non-deterministic (expected %s, got %s)", hashed, h)
		}
	}
}

func TestVerifyAccount(t *testing.T) {
	type context struct {
		account *data.Account
		err     error
	}
	type args struct {
		email    string
		password string
	}
	type expected struct {
		account *data.Account
		err     error
	}

	happyPathAccount := &data.Account{Username: "test", Password: HashPassword("test"), Active: true}

	tests := map[string]struct {
		context context
		args    args
		result  expected
	}{
		"database_error": {
			context{account: nil, err: fmt.Errorf("something exploded")},
			args{email: "test", password: "test"},
			expected{account: nil, err: ErrUnknown},
		},
		"no_account": {
			context{account: nil, err: nil},
			args{email: "test", password: "test"},
			expected{account: nil, err: ErrInvalidCredentials},
		},
		"invalid_password": {
			context{account: &data.Account{Username: "test", Password: "x", Active: true}, err: nil},
			args{email: "test", password: "test"},
			expected{account: nil, err: ErrInvalidCredentials},
		},
		"banned": {
			context{account: &data.Account{Username: "test", Password: HashPassword("test"), Banned: true, Active: true}, err: nil},
			args{email: "test", password: "test"},
			expected{account: nil, err: ErrAccountBanned},
		},
		"inactive": {
			context{account: &data.Account{Username: "test", Password: HashPassword("test")}, err: nil},
			args{email: "test", password: "test"},
			expected{account: nil, err: ErrAccountBanned},
		},
		"happy": {
			context{account: happyPathAccount, err: nil},
			args{email: "test", password: "test"},
			expected{account: happyPathAccount, err: nil},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			originalFindAccount := findAccount
			defer func() { findAccount = originalFindAccount }()

			findAccount = func(db *gorm.DB, email string) (*data.Account, error) {
				return tt.context.account, tt.context.err
			}

			account, err := VerifyAccount(nil, tt.args.email, tt.args.password)

			if !errors.Is(err, tt.result.err) {
				t.Errorf("expected wantedErr = %v, got = %v", tt.result.err, err)
			}
			if account != tt.result.account {
				t.Errorf("VerifyAccount() want = %v, got = %v", tt.result.account, account)
			}
		})
	}
}

func TestSoftDeleteAccount(t *testing.T) {
	tests := map[string]struct {
		account      *data.Account
		dbDeleteFunc func(db *gorm.DB, account *data.Account) error
		wantedErr    error
	}{
		"no_account": {
			account:      nil,
			dbDeleteFunc: func(db *gorm.DB, account *data.Account) error { return nil },
			wantedErr:    ErrAccountNotFound,
		},
		"database_error": {
			account:      &data.Account{Username: "test"},
			dbDeleteFunc: func(db *gorm.DB, account *data.Account) error { return fmt.Errorf("database error") },
			wantedErr:    fmt.Errorf("database error"),
		},
		"happy_path": {
			account:      &data.Account{Username: "test"},
			dbDeleteFunc: func(db *gorm.DB, account *data.Account) error { return nil },
			wantedErr:    nil,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			originalFind, originalDelete := findAccountByUsername, softDeleteAccount
			defer func() { findAccountByUsername, softDeleteAccount = originalFind, originalDelete }()
			findAccountByUsername = func(db *gorm.DB, username string) (*data.Account, error) { return tt.account, nil }
			softDeleteAccount = tt.dbDeleteFunc

			err := DeleteAccount(nil, "test")
			if (err == nil) != (tt.wantedErr == nil) || (err != nil && err.Error() != tt.wantedErr.Error()) {
				t.Errorf("expected error to = %v, got = %v", tt.wantedErr, err)
			}
		})
	}
}

func TestPermanentlyDeleteAccount(t *testing.T) {
	tests := map[string]struct {
		dbDeleteFunc func(db *gorm.DB, account *data.Account) error
		wantedErr    error
	}{
		"database_error": {
			dbDeleteFunc: func(db *gorm.DB, account *data.Account) error { return fmt.Errorf("database error") },
			wantedErr:    fmt.Errorf("database error"),
		},
		"happy_path": {
			dbDeleteFunc: func(db *gorm.DB, account *data.Account) error { return nil },
			wantedErr:    nil,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			originalFind, originalDelete := findUnscopedAccount, permanentlyDeleteAccount
			defer func() { findUnscopedAccount, permanentlyDeleteAccount = originalFind, originalDelete }()
			findUnscopedAccount = func(db *gorm.DB, username string) (*data.Account, error) {
				return &data.Account{Username: username}, nil
			}
			permanentlyDeleteAccount = tt.dbDeleteFunc

			err := PermanentlyDeleteAccount(nil, "test")
			if (err == nil) != (tt.wantedErr == nil) || (err != nil && err.Error() != tt.wantedErr.Error()) {
				t.Errorf("expected error to = %v, got = %v", tt.wantedErr, err)
			}
		})
	}
}

func Test_stripPadding(t *testing.T) {
	testSlice := []byte{0, 1, 2, 3, 0, 0, 0}
	trimmed := stripPadding(testSlice)

	if len(trimmed) != 4 {
		t.Errorf("expected trimmed to have len = 4, got %d", len(trimmed))
	}

	for i := 0; i < 4; i++ {
		if trimmed[i] != testSlice[i] {
			t.Errorf("expected trimmed[%d] (%d) = testSlice[%d] (%d)", i, i, trimmed[i], testSlice[i])
		}
	}
}
