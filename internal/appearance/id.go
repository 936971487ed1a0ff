package appearance

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ProvisionalPrefix marks client-generated placeholder identifiers issued
// before the server assigns a durable appearance ID. Updates carrying a
// provisional ID are never sent to the backend.
const ProvisionalPrefix = "P-"

// ID identifies an appearance. It is a tagged variant: either a provisional
// string minted by the client or an authoritative integer assigned by the
// server. The zero ID is neither.
type ID struct {
	provisional   string
	authoritative int64
}

// AuthoritativeID wraps a server-assigned appearance identifier.
func AuthoritativeID(value int64) ID {
	return ID{authoritative: value}
}

// ProvisionalID wraps a client-side placeholder. The prefix is added when
// missing so streamed identifiers parse consistently.
func ProvisionalID(value string) ID {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ID{}
	}
	if !strings.HasPrefix(trimmed, ProvisionalPrefix) {
		trimmed = ProvisionalPrefix + trimmed
	}
	return ID{provisional: trimmed}
}

// NewProvisionalID mints a fresh placeholder identifier.
func NewProvisionalID() ID {
	return ID{provisional: ProvisionalPrefix + uuid.NewString()}
}

// IsZero reports whether the ID carries no identity at all.
func (id ID) IsZero() bool {
	return id.provisional == "" && id.authoritative == 0
}

// IsProvisional reports whether the ID is a client-side placeholder.
func (id ID) IsProvisional() bool {
	return id.provisional != ""
}

// Authoritative returns the server-assigned value when present.
func (id ID) Authoritative() (int64, bool) {
	if id.IsProvisional() || id.IsZero() {
		return 0, false
	}
	return id.authoritative, true
}

// String renders the identifier for keys, logs, and display.
func (id ID) String() string {
	if id.IsProvisional() {
		return id.provisional
	}
	return strconv.FormatInt(id.authoritative, 10)
}

// MarshalJSON emits the authoritative integer or the provisional string.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsProvisional() {
		return json.Marshal(id.provisional)
	}
	return json.Marshal(id.authoritative)
}

// UnmarshalJSON accepts either wire form: a JSON number is authoritative, a
// JSON string is provisional.
func (id *ID) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*id = ID{}
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		// Some backends render integer IDs as strings; prefer the
		// authoritative reading when the value parses cleanly.
		if n, err := strconv.ParseInt(s, 10, 64); err == nil && !strings.HasPrefix(s, ProvisionalPrefix) {
			*id = AuthoritativeID(n)
			return nil
		}
		*id = ProvisionalID(s)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("appearance id: %w", err)
	}
	*id = AuthoritativeID(n)
	return nil
}
