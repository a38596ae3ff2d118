package conventions

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Lifetime specifies how instances of a registered service are shared.
type Lifetime int

const (
	// Singleton creates one instance per bucket. The instance is owned by the
	// scope built for the bucket the descriptor was added to, so core
	// singletons are shared by every derived scope while system and
	// application singletons stay independent of each other.
	Singleton Lifetime = iota

	// Scoped creates one instance per scope. Every scope derived from the
	// bucket scope, including request scopes, gets its own instance.
	Scoped

	// Transient creates a new instance on every resolution through a
	// ServiceProvider. Transient consumers and Invoke functions that take it
	// get a new instance on every call as well.
	Transient
)

// String returns the string representation of the Lifetime.
func (l Lifetime) String() string {
	switch l {
	case Singleton:
		return "Singleton"
	case Scoped:
		return "Scoped"
	case Transient:
		return "Transient"
	default:
		return fmt.Sprintf("Unknown(%d)", int(l))
	}
}

// IsValid checks if the lifetime is one of the declared values.
func (l Lifetime) IsValid() bool {
	return l >= Singleton && l <= Transient
}

// MarshalText implements encoding.TextMarshaler.
func (l Lifetime) MarshalText() ([]byte, error) {
	if !l.IsValid() {
		return nil, LifetimeError{Value: int(l)}
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Lifetime) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "singleton":
		*l = Singleton
	case "scoped":
		*l = Scoped
	case "transient":
		*l = Transient
	default:
		return LifetimeError{Value: string(text)}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (l Lifetime) MarshalJSON() ([]byte, error) {
	text, err := l.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *Lifetime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	return l.UnmarshalText([]byte(s))
}
