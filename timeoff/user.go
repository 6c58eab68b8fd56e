package timeoff

import (
	"encoding/json"
	"strconv"
	"strings"
)

// User is one record of the users document. The document belongs to the user
// management collaborator, so every field is kept as read and only the
// balance fields are ever rewritten.
type User struct {
	fields map[string]json.RawMessage
}

// NewUser builds a user record with the given identity fields.
func NewUser(id, name, role string) *User {
	u := &User{fields: make(map[string]json.RawMessage)}
	u.setString("id", id)
	u.setString("name", name)
	if role != "" {
		u.setString("role", role)
	}
	return u
}

func (u *User) ID() string   { return rawKey(u.fields["id"]) }
func (u *User) Name() string { return rawKey(u.fields["name"]) }
func (u *User) Role() string { return rawKey(u.fields["role"]) }

// IsAdmin reports whether the record is an administrator account.
func (u *User) IsAdmin() bool { return strings.EqualFold(u.Role(), "admin") }

// number reads a numeric field. Numeric strings count; anything else does not.
func (u *User) number(key string) (float64, bool) {
	raw, ok := u.fields[key]
	if !ok {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func (u *User) setRaw(key string, v any) {
	if u.fields == nil {
		u.fields = make(map[string]json.RawMessage)
	}
	raw, _ := json.Marshal(v)
	u.fields[key] = raw
}

func (u *User) setString(key, v string) { u.setRaw(key, v) }

func (u *User) MarshalJSON() ([]byte, error) {
	if u.fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(u.fields)
}

func (u *User) UnmarshalJSON(b []byte) error {
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	u.fields = fields
	return nil
}

// FindUserIndex resolves key against users by exact id, then case-insensitive
// name, then a 1-based position in the slice. It returns -1 if none match.
func FindUserIndex(users []*User, key string) int {
	key = strings.TrimSpace(key)
	if key == "" {
		return -1
	}
	for i, u := range users {
		if u.ID() == key {
			return i
		}
	}
	for i, u := range users {
		if strings.EqualFold(u.Name(), key) {
			return i
		}
	}
	if n, err := strconv.Atoi(key); err == nil && n >= 1 && n <= len(users) {
		return n - 1
	}
	return -1
}

// findRequester locates the owner of a request: userId first, then the
// legacy userName key.
func findRequester(users []*User, r *LeaveRequest) int {
	if i := FindUserIndex(users, r.UserID); i >= 0 {
		return i
	}
	return FindUserIndex(users, r.UserName)
}
