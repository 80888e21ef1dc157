// Package types provides shared value objects and type definitions
// used across multiple modules (Shared Kernel pattern).
package types

import (
	"strings"

	"github.com/google/uuid"
)

// UserID represents a unique identifier for an identified shopper.
// Using a distinct type prevents mixing up different ID types.
type UserID struct {
	value string
}

func NewUserID() UserID {
	return UserID{value: uuid.New().String()}
}

func ParseUserID(s string) (UserID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return UserID{}, ErrInvalidID
	}
	return UserID{value: s}, nil
}

func (id UserID) String() string { return id.value }
func (id UserID) IsZero() bool   { return id.value == "" }

// OrderID represents a unique identifier for an order.
type OrderID struct {
	value string
}

func NewOrderID() OrderID {
	return OrderID{value: uuid.New().String()}
}

func ParseOrderID(s string) (OrderID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return OrderID{}, ErrInvalidID
	}
	return OrderID{value: s}, nil
}

func (id OrderID) String() string { return id.value }
func (id OrderID) IsZero() bool   { return id.value == "" }

// ProductID represents a unique identifier for a catalog product.
type ProductID struct {
	value string
}

func NewProductID() ProductID {
	return ProductID{value: uuid.New().String()}
}

func ParseProductID(s string) (ProductID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return ProductID{}, ErrInvalidID
	}
	return ProductID{value: s}, nil
}

// MustParseProductID is for trusted input such as rows read back from storage.
func MustParseProductID(s string) ProductID {
	id, err := ParseProductID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (id ProductID) String() string { return id.value }
func (id ProductID) IsZero() bool   { return id.value == "" }

// Identity is the caller as seen by the cart and checkout.
// A caller with a UserID is identified; one with only a SessionID is anonymous.
type Identity struct {
	UserID    UserID
	SessionID string
}

func NewIdentity(userID, sessionID string) (Identity, error) {
	userID = strings.TrimSpace(userID)
	sessionID = strings.TrimSpace(sessionID)

	if userID != "" {
		uid, err := ParseUserID(userID)
		if err != nil {
			return Identity{}, err
		}
		return Identity{UserID: uid, SessionID: sessionID}, nil
	}
	if sessionID == "" {
		return Identity{}, ErrMissingIdentity
	}
	return Identity{SessionID: sessionID}, nil
}

func (i Identity) IsAnonymous() bool { return i.UserID.IsZero() }

// Key is a stable storage key for the caller's cart.
func (i Identity) Key() string {
	if i.IsAnonymous() {
		return "session:" + i.SessionID
	}
	return "user:" + i.UserID.String()
}
