// Package models defines the user directory's persistent types.
package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type Role string

const (
	RoleUser      Role = "USER"
	RoleAdmin     Role = "ADMIN"
	RoleModerator Role = "MODERATOR"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleModerator:
		return true
	}
	return false
}

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
	StatusBanned   Status = "BANNED"
	StatusPending  Status = "PENDING"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusBanned, StatusPending:
		return true
	}
	return false
}

type Profile struct {
	FirstName string `bson:"firstName,omitempty" json:"firstName,omitempty"`
	LastName  string `bson:"lastName,omitempty" json:"lastName,omitempty"`
	Bio       string `bson:"bio,omitempty" json:"bio,omitempty"`
	AvatarURL string `bson:"avatarUrl,omitempty" json:"avatarUrl,omitempty"`
	Location  string `bson:"location,omitempty" json:"location,omitempty"`
	Phone     string `bson:"phone,omitempty" json:"phone,omitempty"`
}

type Wallet struct {
	Address    string    `bson:"address" json:"address"`
	Network    string    `bson:"network" json:"network"`
	IsVerified bool      `bson:"isVerified" json:"isVerified"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
}

// User is a directory entry. Wallet addresses are stored lowercased.
type User struct {
	ID            bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Username      string        `bson:"username" json:"username"`
	Email         string        `bson:"email" json:"email"`
	Profile       Profile       `bson:"profile" json:"profile"`
	Role          Role          `bson:"role" json:"role"`
	Status        Status        `bson:"status" json:"status"`
	IsVerified    bool          `bson:"isVerified" json:"isVerified"`
	Wallets       []Wallet      `bson:"walletAddresses" json:"walletAddresses"`
	PrimaryWallet string        `bson:"primaryWallet,omitempty" json:"primaryWallet,omitempty"`
	LoginCount    int64         `bson:"loginCount" json:"loginCount"`
	CreatedAt     time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time     `bson:"updatedAt" json:"updatedAt"`
	LastLogin     *time.Time    `bson:"lastLogin,omitempty" json:"lastLogin,omitempty"`
	LastActive    *time.Time    `bson:"lastActive,omitempty" json:"lastActive,omitempty"`
}

// HasWallet reports whether address (any case) belongs to u.
func (u *User) HasWallet(address string) bool {
	address = strings.ToLower(address)
	for _, w := range u.Wallets {
		if w.Address == address {
			return true
		}
	}
	return false
}

// AddWallet appends a wallet; the first one becomes primary. It returns
// false if the address is already attached.
func (u *User) AddWallet(address, network string, now time.Time) bool {
	address = strings.ToLower(address)
	if u.HasWallet(address) {
		return false
	}
	u.Wallets = append(u.Wallets, Wallet{Address: address, Network: network, CreatedAt: now})
	if u.PrimaryWallet == "" {
		u.PrimaryWallet = address
	}
	return true
}

// RecordLogin bumps the login counter and activity timestamps.
func (u *User) RecordLogin(now time.Time) {
	u.LoginCount++
	u.LastLogin = &now
	u.LastActive = &now
	u.UpdatedAt = now
}

// Filter selects users for listing. Zero fields match everything; Search
// matches username, email and names case-insensitively.
type Filter struct {
	Status Status
	Role   Role
	Search string
}

func (f Filter) Matches(u *User) bool {
	if f.Status != "" && u.Status != f.Status {
		return false
	}
	if f.Role != "" && u.Role != f.Role {
		return false
	}
	if f.Search == "" {
		return true
	}
	q := strings.ToLower(f.Search)
	for _, s := range []string{u.Username, u.Email, u.Profile.FirstName, u.Profile.LastName} {
		if strings.Contains(strings.ToLower(s), q) {
			return true
		}
	}
	return false
}
