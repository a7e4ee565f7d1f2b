package authflow

import (
	"errors"
	"testing"

	"github.com/Devdrwt/mdsc-live-client/internal/model"
)

func TestNormalizeUser_SnakeCase(t *testing.T) {
	raw := map[string]any{
		"id":         "u-1",
		"email":      "ada@school.example",
		"first_name": "Ada",
		"last_name":  "Lovelace",
		"role":       "instructor",
		"avatar_url": "https://cdn.example/a.png",
	}
	p, err := NormalizeUser(raw)
	if err != nil {
		t.Fatal(err)
	}
	want := model.UserProfile{
		ID: "u-1", Email: "ada@school.example",
		FirstName: "Ada", LastName: "Lovelace",
		Role: model.RoleInstructor, AvatarURL: "https://cdn.example/a.png",
	}
	if *p != want {
		t.Errorf("got %+v, want %+v", *p, want)
	}
}

func TestNormalizeUser_CamelCaseWithUnderscoreID(t *testing.T) {
	raw := map[string]any{
		"_id":       "u-2",
		"email":     "bob@school.example",
		"firstName": "Bob",
		"lastName":  "Byrne",
	}
	p, err := NormalizeUser(raw)
	if err != nil {
		t.Fatal(err)
	}
	if p.ID != "u-2" || p.FirstName != "Bob" || p.LastName != "Byrne" {
		t.Errorf("camelCase shape not extracted: %+v", p)
	}
}

func TestNormalizeUser_CamelCaseWithUserID(t *testing.T) {
	raw := map[string]any{
		"userId": "u-3",
		"email":  "c@school.example",
	}
	p, err := NormalizeUser(raw)
	if err != nil {
		t.Fatal(err)
	}
	if p.ID != "u-3" {
		t.Errorf("userId not used as id: %+v", p)
	}
}

func TestNormalizeUser_LegacySplitsName(t *testing.T) {
	raw := map[string]any{
		"uid":  "u-4",
		"mail": "d@school.example",
		"name": "Dana van der Berg",
	}
	p, err := NormalizeUser(raw)
	if err != nil {
		t.Fatal(err)
	}
	if p.FirstName != "Dana" || p.LastName != "van der Berg" {
		t.Errorf("legacy name split wrong: %q / %q", p.FirstName, p.LastName)
	}
}

func TestNormalizeUser_NestedUserObject(t *testing.T) {
	raw := map[string]any{
		"user": map[string]any{
			"id":    "u-5",
			"email": "e@school.example",
		},
	}
	p, err := NormalizeUser(raw)
	if err != nil {
		t.Fatal(err)
	}
	if p.ID != "u-5" {
		t.Errorf("nested user not unwrapped: %+v", p)
	}
}

// A rule only wins with a complete result: a payload matching the newest
// shape but missing the email falls through to older shapes.
func TestNormalizeUser_IncompleteShapeFallsThrough(t *testing.T) {
	raw := map[string]any{
		"id":   "u-6",
		"uid":  "u-6-legacy",
		"mail": "f@school.example",
	}
	p, err := NormalizeUser(raw)
	if err != nil {
		t.Fatal(err)
	}
	if p.ID != "u-6-legacy" || p.Email != "f@school.example" {
		t.Errorf("expected legacy rule to win: %+v", p)
	}
}

func TestNormalizeUser_NoUsableShape(t *testing.T) {
	cases := []map[string]any{
		nil,
		{},
		{"id": "u-7"},
		{"email": "x@school.example"},
		{"id": 42, "email": true},
	}
	for _, raw := range cases {
		if _, err := NormalizeUser(raw); !errors.Is(err, ErrNoUsableProfile) {
			t.Errorf("NormalizeUser(%v): want ErrNoUsableProfile, got %v", raw, err)
		}
	}
}

func TestNormalizeUser_DoesNotMutateInput(t *testing.T) {
	raw := map[string]any{"id": "u-8", "email": "g@school.example"}
	if _, err := NormalizeUser(raw); err != nil {
		t.Fatal(err)
	}
	if len(raw) != 2 || raw["id"] != "u-8" {
		t.Errorf("input mutated: %v", raw)
	}
}
