// Package users provisions the fixed set of development accounts.
package users

import "time"

// DefaultPassword is assigned to every provisioned development account.
const DefaultPassword = "123@mudar"

// User is a stored account. The hash never leaves the package in JSON.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	IsAdmin      bool      `json:"is_admin"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Account describes an account to provision.
type Account struct {
	Username string `validate:"required,max=150"`
	Email    string `validate:"omitempty,email"`
	Password string `validate:"required,min=8"`
	IsAdmin  bool
}

// DevAccounts returns the operator and admin accounts used in development.
func DevAccounts() []Account {
	return []Account{
		{Username: "user1", Email: "user1@email.com", Password: DefaultPassword},
		{Username: "operador", Email: "operador@email.com", Password: DefaultPassword},
		{Username: "farmaceutico", Email: "farm@email.com", Password: DefaultPassword},
		{Username: "admin", Email: "admin@exemplo.com", Password: DefaultPassword, IsAdmin: true},
		{Username: "admin2", Email: "admin2@exemplo.com", Password: DefaultPassword, IsAdmin: true},
	}
}

// Report summarises a provisioning run.
type Report struct {
	Created []string `json:"created"`
	Skipped []string `json:"skipped"`
}
