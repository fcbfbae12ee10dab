package models

import (
	"encoding/json"
	"reflect"
	"testing"

	"gorm.io/datatypes"
)

func TestRoleRefForms(t *testing.T) {
	var refs []RoleRef
	payload := `[" Teacher ", {"name": "Student"}, {"title": "Dean"}, {"id": 4}, "Teacher", {"name": 3, "title": "Staff"}]`
	if err := json.Unmarshal([]byte(payload), &refs); err != nil {
		t.Fatalf("unmarshal roles: %v", err)
	}
	got := NormalizeRoleNames(refs)
	want := []string{"Teacher", "Student", "Dean", "Staff"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NormalizeRoleNames = %v, want %v", got, want)
	}
}

func TestRoleNamesOf(t *testing.T) {
	got := RoleNamesOf([]Role{{Name: "Dean"}, {Name: " "}, {Name: "Dean"}, {Name: "Teacher"}})
	if !reflect.DeepEqual(got, []string{"Dean", "Teacher"}) {
		t.Fatalf("unexpected names %v", got)
	}
}

func TestResolveProgramLevel(t *testing.T) {
	post, under := ProgramPostgrad, ProgramUndergrad
	cases := []struct {
		value any
		want  *ProgramLevel
	}{
		{true, &post},
		{false, &under},
		{1, &post},
		{float64(0), &under},
		{json.Number("1"), &post},
		{" Post Graduate ", &post},
		{"undergrad", &under},
		{"1", &post},
		{2, nil},
		{"masters", nil},
		{nil, nil},
	}
	for _, tc := range cases {
		got := ResolveProgramLevel(tc.value)
		switch {
		case tc.want == nil && got != nil:
			t.Fatalf("ResolveProgramLevel(%v) = %v, want nil", tc.value, *got)
		case tc.want != nil && (got == nil || *got != *tc.want):
			t.Fatalf("ResolveProgramLevel(%v) = %v, want %v", tc.value, got, *tc.want)
		}
	}
}

func TestParseAcademicProfile(t *testing.T) {
	profile := ParseAcademicProfile(datatypes.JSON(`{"college": " Science ", "course_name": "", "program_name": "Computer Science", "post_grad": 0}`))
	if profile.CollegeName == nil || *profile.CollegeName != "Science" {
		t.Fatalf("unexpected college %v", profile.CollegeName)
	}
	if profile.CourseName == nil || *profile.CourseName != "Computer Science" {
		t.Fatalf("unexpected course %v", profile.CourseName)
	}
	if profile.ProgramLevel == nil || *profile.ProgramLevel != ProgramUndergrad {
		t.Fatalf("unexpected program level %v", profile.ProgramLevel)
	}
	if form := profile.ProgramLevel.ApprovalForm(); form != "Undergraduate Thesis Approval Form" {
		t.Fatalf("unexpected approval form %q", form)
	}

	if empty := ParseAcademicProfile(datatypes.JSON(`not json`)); empty.CollegeName != nil || empty.ProgramLevel != nil {
		t.Fatalf("malformed profile should be empty, got %+v", empty)
	}
}
