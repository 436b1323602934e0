package domain

import (
	"strings"
	"time"
)

// TokenType classifies a stored payment credential
type TokenType string

const (
	TokenTypeCard            TokenType = "card"
	TokenTypeRecurringWallet TokenType = "recurring_wallet" // wallet-subscription style handle
)

// AnonymousCustomerID marks a token created before checkout resolved a customer.
// Such tokens may later be reassigned to a real customer.
const AnonymousCustomerID = "0"

// Gateway token id prefixes. Card tokens carry expiry/masked-card metadata;
// wallet tokens carry none and are classified purely by prefix.
const (
	cardTokenPrefix   = "ca_"
	walletTokenPrefix = "ms_"
)

// PaymentToken represents a stored payment credential owned by a customer.
// Tokens are immutable once created except for the default flag.
type PaymentToken struct {
	ID             string
	CustomerID     string
	GatewayTokenID string
	Type           TokenType
	MaskedCard     string
	CardType       string
	ExpMonth       int
	ExpYear        int
	IsDefault      bool
	CreatedAt      time.Time
}

// IsWalletTokenID reports whether a gateway token id names a recurring-wallet
// credential rather than a card.
func IsWalletTokenID(gatewayTokenID string) bool {
	return strings.HasPrefix(gatewayTokenID, walletTokenPrefix)
}

// IsGatewayTokenID reports whether a token string was issued by the gateway at
// all. Stored payment methods from other processors (offline, COD) fail this.
func IsGatewayTokenID(gatewayTokenID string) bool {
	return strings.HasPrefix(gatewayTokenID, cardTokenPrefix) ||
		strings.HasPrefix(gatewayTokenID, walletTokenPrefix)
}

// IsRecurringWallet returns true for wallet-subscription style tokens
func (t *PaymentToken) IsRecurringWallet() bool {
	return t.Type == TokenTypeRecurringWallet
}

// IsBound reports whether the token has been assigned to a real customer.
func (t *PaymentToken) IsBound() bool {
	return t.CustomerID != "" && t.CustomerID != AnonymousCustomerID
}

// IsExpired returns true if a card token is past its expiry month.
// Wallet tokens never expire locally; the gateway owns their lifecycle.
func (t *PaymentToken) IsExpired(now time.Time) bool {
	if t.Type != TokenTypeCard || t.ExpYear == 0 {
		return false
	}
	if t.ExpYear < now.Year() {
		return true
	}
	return t.ExpYear == now.Year() && t.ExpMonth < int(now.Month())
}

// DisplayName returns a human-readable label for the token
func (t *PaymentToken) DisplayName() string {
	if t.IsRecurringWallet() {
		return "Wallet subscription"
	}
	brand := t.CardType
	if brand == "" {
		brand = "Card"
	}
	return brand + " " + t.MaskedCard
}
