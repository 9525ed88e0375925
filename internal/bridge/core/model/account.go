package model

import (
	"time"
)

// Integration names.
const (
	IntegrationAlexa  = "alexa"
	IntegrationGoogle = "google"
)

// Account is the owner of a set of devices.
type Account struct {
	Username string `json:"username" yaml:"username"`
	UserID   string `json:"userId" yaml:"userId"`

	// Links holds the reporting integrations the user has linked, by name.
	Links map[string]Link `json:"links,omitempty" yaml:"links,omitempty"`
}

// Link is a user's grant for one reporting integration.
type Link struct {
	// RefreshToken is set for integrations that authenticate per user.
	RefreshToken string    `json:"refreshToken,omitempty" yaml:"refreshToken,omitempty"`
	LinkedAt     time.Time `json:"linkedAt" yaml:"linkedAt"`
}

// IsLinked reports whether the account has linked the named integration.
func (a *Account) IsLinked(integration string) bool {
	if a == nil {
		return false
	}
	_, ok := a.Links[integration]
	return ok
}
