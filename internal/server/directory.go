package server

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return !strings.ContainsFunc(fl.Field().String(), unicode.IsSpace)
	})
	return v
}

// Account is a registered user. Accounts are never mutated or deleted.
type Account struct {
	Username   string
	Credential string
}

// UserDirectory holds the registered accounts in memory.
type UserDirectory struct {
	mu       sync.RWMutex
	accounts map[string]Account
	log      *slog.Logger
}

// NewUserDirectory creates an empty directory.
func NewUserDirectory(log *slog.Logger) *UserDirectory {
	return &UserDirectory{
		accounts: make(map[string]Account),
		log:      log,
	}
}

// Register adds an account. It returns ErrInvalidAccount when the input fails
// validation and ErrAlreadyExists when the username is taken; in both cases
// the directory is left untouched.
func (d *UserDirectory) Register(username, credential string) error {
	if err := validate.Struct(Credentials{Username: username, Password: credential}); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAccount, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.accounts[username]; exists {
		return ErrAlreadyExists
	}
	d.accounts[username] = Account{Username: username, Credential: credential}
	d.log.Info("User registered", "username", username, "total", len(d.accounts))
	return nil
}

// Verify returns the account when both fields match exactly. Unknown users and
// wrong credentials are indistinguishable to the caller.
func (d *UserDirectory) Verify(username, credential string) (Account, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	account, ok := d.accounts[username]
	if !ok || account.Credential != credential {
		return Account{}, false
	}
	return account, true
}

// Usernames returns a sorted snapshot of registered usernames.
func (d *UserDirectory) Usernames() []string {
	d.mu.RLock()
	names := lo.Keys(d.accounts)
	d.mu.RUnlock()

	slices.Sort(names)
	return names
}

// Len returns the number of registered accounts.
func (d *UserDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.accounts)
}
