package learn

import "strings"

// Rubric configures how a generated reply is judged against the ground
// truth. The two evaluator variants of the legacy system differed only
// in their criteria, so one type with pluggable criteria covers both.
type Rubric struct {
	Name     string
	Criteria []string
}

// EmailReplyRubric judges replies to customer email threads.
func EmailReplyRubric() Rubric {
	return Rubric{
		Name: "email_reply",
		Criteria: []string{
			"covers every action the ground truth reply takes",
			"preserves concrete details: names, systems, identifiers, configuration values",
			"keeps a professional support tone",
			"contacts the same people and checks the same systems",
		},
	}
}

// ResolutionRubric judges whether leaving a ticket unanswered was correct.
func ResolutionRubric() Rubric {
	return Rubric{
		Name: "resolution",
		Criteria: []string{
			"correctly concludes that no staff reply is required",
			"does not invent follow-up actions the ground truth omits",
		},
	}
}

func (r Rubric) criteriaList() string {
	var b strings.Builder
	for i, c := range r.Criteria {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- " + c)
	}
	return b.String()
}
