package catalog

import (
	"strconv"
	"strings"
)

// Record is a single assessment product. Records are shared between
// concurrent requests and must not be modified after load.
type Record struct {
	ID              string   `json:"id" validate:"required"`
	Name            string   `json:"name" validate:"required"`
	Description     string   `json:"description" validate:"required"`
	Duration        int      `json:"duration" validate:"gte=0"`
	RemoteSupport   bool     `json:"remote_support"`
	AdaptiveSupport bool     `json:"adaptive_support"`
	TestTypes       []string `json:"test_types" validate:"min=1,dive,required"`
	Skills          []string `json:"skills"`
}

// HasDuration reports whether the record specifies a duration. Zero means unknown.
func (r *Record) HasDuration() bool {
	return r != nil && r.Duration > 0
}

// SearchText is the text every scoring strategy indexes for the record.
func (r *Record) SearchText() string {
	if r == nil {
		return ""
	}

	parts := make([]string, 0, 4+len(r.TestTypes)+len(r.Skills))
	parts = append(parts, r.Name, r.Description)
	parts = append(parts, r.TestTypes...)
	parts = append(parts, r.Skills...)
	if r.RemoteSupport {
		parts = append(parts, "remote testing")
	}
	if r.AdaptiveSupport {
		parts = append(parts, "adaptive")
	}
	if r.HasDuration() {
		parts = append(parts, strconv.Itoa(r.Duration)+" minutes")
	}

	return strings.Join(parts, " ")
}

// YesNo renders a support flag the way the catalog and the HTTP API expose it.
func YesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

var skillsByTestType = map[string]string{
	"knowledge & skills": "Technical Skills",
	"simulations":        "Practical Skills",
	"cognitive":          "Problem Solving",
	"personality":        "Soft Skills",
}

func skillsFor(testTypes []string) []string {
	var skills []string
	for _, tt := range testTypes {
		if skill, ok := skillsByTestType[strings.ToLower(tt)]; ok {
			skills = append(skills, skill)
		}
	}
	return skills
}

func describe(r *Record) string {
	kind := "General"
	if len(r.TestTypes) > 0 {
		kind = strings.Join(r.TestTypes, ", ")
	}

	var b strings.Builder
	b.WriteString("The '" + r.Name + "' is a " + kind + " assessment.")
	if r.HasDuration() {
		b.WriteString(" Duration is " + strconv.Itoa(r.Duration) + " mins.")
	}
	b.WriteString(" It supports remote testing: " + YesNo(r.RemoteSupport))
	b.WriteString(" and adaptive format: " + YesNo(r.AdaptiveSupport) + ".")
	if len(r.Skills) > 0 {
		b.WriteString(" Primary skills assessed: " + strings.Join(r.Skills, ", ") + ".")
	}
	return b.String()
}
