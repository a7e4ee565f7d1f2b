package authflow

import (
	"errors"
	"strings"

	"github.com/Devdrwt/mdsc-live-client/internal/model"
)

// ErrNoUsableProfile means no extraction rule produced a complete profile.
var ErrNoUsableProfile = errors.New("auth payload matched no known user shape")

// extractRule tries one historical field-naming variant against the raw
// payload. It returns ok only for a complete result (id and email present).
type extractRule func(raw map[string]any) (*model.UserProfile, bool)

// rules is ordered: newest shape first, legacy shapes after. The first
// complete result wins.
var rules = []extractRule{
	extractSnake,
	extractCamel,
	extractLegacy,
}

// NormalizeUser maps an untyped provider payload onto a UserProfile,
// tolerating the field-name variants the platform has shipped over time.
// Pure function; no rule mutates the input.
func NormalizeUser(raw map[string]any) (*model.UserProfile, error) {
	if raw == nil {
		return nil, ErrNoUsableProfile
	}
	// Some providers nest the user object one level down.
	if nested, ok := raw["user"].(map[string]any); ok {
		raw = nested
	}
	for _, rule := range rules {
		if p, ok := rule(raw); ok {
			return p, nil
		}
	}
	return nil, ErrNoUsableProfile
}

// extractSnake handles the current API shape: snake_case fields.
func extractSnake(raw map[string]any) (*model.UserProfile, bool) {
	p := &model.UserProfile{
		ID:        str(raw, "id"),
		Email:     str(raw, "email"),
		FirstName: str(raw, "first_name"),
		LastName:  str(raw, "last_name"),
		Role:      model.Role(str(raw, "role")),
		AvatarURL: str(raw, "avatar_url"),
	}
	return p, p.ID != "" && p.Email != ""
}

// extractCamel handles the pre-v2 camelCase shape, where the id travelled
// as _id or userId.
func extractCamel(raw map[string]any) (*model.UserProfile, bool) {
	id := str(raw, "_id")
	if id == "" {
		id = str(raw, "userId")
	}
	p := &model.UserProfile{
		ID:        id,
		Email:     str(raw, "email"),
		FirstName: str(raw, "firstName"),
		LastName:  str(raw, "lastName"),
		Role:      model.Role(str(raw, "role")),
		AvatarURL: str(raw, "avatarUrl"),
	}
	return p, p.ID != "" && p.Email != ""
}

// extractLegacy handles the oldest shape: uid/mail plus a single display
// name split on the first space.
func extractLegacy(raw map[string]any) (*model.UserProfile, bool) {
	p := &model.UserProfile{
		ID:    str(raw, "uid"),
		Email: str(raw, "mail"),
		Role:  model.Role(str(raw, "role")),
	}
	if name := str(raw, "name"); name != "" {
		parts := strings.SplitN(name, " ", 2)
		p.FirstName = parts[0]
		if len(parts) > 1 {
			p.LastName = parts[1]
		}
	}
	return p, p.ID != "" && p.Email != ""
}

func str(raw map[string]any, key string) string {
	if v, ok := raw[key].(string); ok {
		return v
	}
	return ""
}
