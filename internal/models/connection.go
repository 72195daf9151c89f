package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/oauth2"
)

// Principal is the authenticated caller of a request
type Principal struct {
	ID                string `json:"id"`
	ProviderConnected bool   `json:"spotifyConnected"`
}

// CanEnrich reports whether external enrichment may run on behalf of p
func (p *Principal) CanEnrich() bool {
	return p != nil && p.ID != "" && p.ProviderConnected
}

// ProviderConnection stores a user's OAuth token for the external provider
type ProviderConnection struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID       string             `bson:"user_id" json:"userId"`
	Provider     string             `bson:"provider" json:"provider"`
	AccessToken  string             `bson:"access_token" json:"-"`
	RefreshToken string             `bson:"refresh_token" json:"-"`
	TokenType    string             `bson:"token_type" json:"-"`
	Expiry       time.Time          `bson:"expiry" json:"expiry"`
	Scopes       []string           `bson:"scopes,omitempty" json:"scopes,omitempty"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updatedAt"`
}

// Token converts the stored credentials into an oauth2 token
func (c *ProviderConnection) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    c.TokenType,
		Expiry:       c.Expiry,
	}
}

// ApplyToken copies a refreshed token back onto the connection and reports
// whether it changed
func (c *ProviderConnection) ApplyToken(tok *oauth2.Token) bool {
	if tok == nil || tok.AccessToken == c.AccessToken {
		return false
	}
	c.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		c.RefreshToken = tok.RefreshToken
	}
	c.TokenType = tok.TokenType
	c.Expiry = tok.Expiry
	c.UpdatedAt = time.Now()
	return true
}
