package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// RoleRef is a role entry as reported by the directory. The directory sends either a bare
// role name or an object carrying a "name" or "title" field; both decode to Name. Entries
// that carry neither decode to an empty Name and are dropped by NormalizeRoleNames.
type RoleRef struct {
	Name string
}

func (r *RoleRef) UnmarshalJSON(data []byte) error {
	r.Name = ""

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	switch trimmed[0] {
	case '"':
		var name string
		if err := json.Unmarshal(trimmed, &name); err != nil {
			return err
		}
		r.Name = strings.TrimSpace(name)
	case '{':
		var obj map[string]any
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return err
		}
		for _, key := range []string{"name", "title"} {
			if value, ok := obj[key].(string); ok && strings.TrimSpace(value) != "" {
				r.Name = strings.TrimSpace(value)
				break
			}
		}
	}
	return nil
}

func (r RoleRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Name)
}

// NormalizeRoleNames returns the resolvable role names in first-seen order without duplicates.
func NormalizeRoleNames(refs []RoleRef) []string {
	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		names = append(names, ref.Name)
	}
	return UniqueRoleNames(names)
}

// RoleNamesOf extracts names from loaded role rows.
func RoleNamesOf(roles []Role) []string {
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.Name)
	}
	return UniqueRoleNames(names)
}

func UniqueRoleNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	unique := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		unique = append(unique, name)
	}
	return unique
}
