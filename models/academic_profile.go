package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"gorm.io/datatypes"
)

type ProgramLevel string

const (
	ProgramPostgrad  ProgramLevel = "Postgrad"
	ProgramUndergrad ProgramLevel = "Undergrad"
)

const programFormSuffix = " Thesis Approval Form"

// ApprovalForm names the approval form a student at this level should file.
func (p ProgramLevel) ApprovalForm() string {
	switch p {
	case ProgramPostgrad:
		return "Postgraduate" + programFormSuffix
	case ProgramUndergrad:
		return "Undergraduate" + programFormSuffix
	}
	return ""
}

// AcademicProfile is the typed view of the profile blob the directory reports for a user.
type AcademicProfile struct {
	CollegeName  *string       `json:"college_name"`
	CourseName   *string       `json:"course_name"`
	ProgramLevel *ProgramLevel `json:"program_level"`
}

var (
	collegeKeys = []string{"college_name", "college"}
	courseKeys  = []string{"course_name", "course", "program_name"}
	programKeys = []string{"is_postgrad", "post_grad", "postgrad", "program_level", "level"}
)

// ParseAcademicProfile reads the stored profile once; malformed payloads give an empty profile.
func ParseAcademicProfile(raw datatypes.JSON) AcademicProfile {
	var profile AcademicProfile
	if len(raw) == 0 {
		return profile
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return profile
	}

	profile.CollegeName = firstString(fields, collegeKeys)
	profile.CourseName = firstString(fields, courseKeys)
	for _, key := range programKeys {
		if value, ok := fields[key]; ok && value != nil {
			profile.ProgramLevel = ResolveProgramLevel(value)
			break
		}
	}
	return profile
}

func firstString(fields map[string]any, keys []string) *string {
	for _, key := range keys {
		if value, ok := fields[key].(string); ok {
			value = strings.TrimSpace(value)
			if value != "" {
				return &value
			}
		}
	}
	return nil
}

// ResolveProgramLevel maps a stored program flag to a level. true/1 is Postgrad, false/0 is
// Undergrad, and "postgrad(uate)"/"undergrad(uate)" match regardless of case and spacing.
// Anything else resolves to nil.
func ResolveProgramLevel(value any) *ProgramLevel {
	level := func(p ProgramLevel) *ProgramLevel { return &p }

	switch v := value.(type) {
	case nil:
		return nil
	case *string:
		if v == nil {
			return nil
		}
		return ResolveProgramLevel(*v)
	case bool:
		if v {
			return level(ProgramPostgrad)
		}
		return level(ProgramUndergrad)
	case int:
		return resolveNumericFlag(float64(v))
	case int64:
		return resolveNumericFlag(float64(v))
	case uint:
		return resolveNumericFlag(float64(v))
	case float64:
		return resolveNumericFlag(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil
		}
		return resolveNumericFlag(f)
	case string:
		key := strings.ToLower(strings.Join(strings.Fields(v), ""))
		switch key {
		case "postgrad", "postgraduate", "true":
			return level(ProgramPostgrad)
		case "undergrad", "undergraduate", "false":
			return level(ProgramUndergrad)
		}
		if f, err := strconv.ParseFloat(key, 64); err == nil {
			return resolveNumericFlag(f)
		}
	}
	return nil
}

func resolveNumericFlag(f float64) *ProgramLevel {
	var p ProgramLevel
	switch {
	case math.Abs(f-1) < 1e-9:
		p = ProgramPostgrad
	case f == 0:
		p = ProgramUndergrad
	default:
		return nil
	}
	return &p
}
