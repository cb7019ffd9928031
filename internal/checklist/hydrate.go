package checklist

import (
	"fmt"
	"strconv"
	"strings"
)

type Hydration struct {
	Submission *Submission `json:"form"`
	Gaps       []Gap       `json:"gaps"`
}

// Hydrate rebuilds the nested form from stored rows. Responses resolve by
// (section, number) and images by type. Rows that cannot be placed are
// reported as gaps.
func (c *Catalog) Hydrate(responses []Response, images []Image) Hydration {
	out := Hydration{Submission: NewSubmission()}

	for _, row := range responses {
		q, ok := c.LookupBySectionAndNumber(row.SectionNumber, row.QuestionNumber)
		if !ok {
			out.Gaps = append(out.Gaps, Gap{Section: row.SectionNumber, QuestionNumber: row.QuestionNumber, Reason: GapUnresolvedRow})
			continue
		}
		// Older rows stored free text under the parent's number.
		if q.Kind == KindChoice && row.TextValue != "" {
			companion, ok := c.CompanionOf(q.Key)
			if !ok {
				out.Gaps = append(out.Gaps, Gap{
					Section:        row.SectionNumber,
					Key:            q.Key,
					QuestionNumber: row.QuestionNumber,
					Reason:         GapUnsupportedValue,
					Detail:         "text on a choice question",
				})
				continue
			}
			q = companion
		}

		var value Value
		switch q.Kind {
		case KindFreeText:
			if row.TextValue == "" {
				out.Gaps = append(out.Gaps, Gap{
					Section:        row.SectionNumber,
					Key:            q.Key,
					QuestionNumber: row.QuestionNumber,
					Reason:         GapUnsupportedValue,
					Detail:         "free-text row without text",
				})
				continue
			}
			value = textValue(q, row.TextValue)
		default:
			value = String(row.Answer)
		}
		out.Submission.EnsureSection(q.Section).Set(q.Key, value)
	}

	grouped := make(map[ImageType][]string)
	var order []ImageType
	for _, image := range images {
		if _, ok := c.PhotoByType(image.Type); !ok {
			out.Gaps = append(out.Gaps, Gap{
				Section: image.SectionNumber,
				Reason:  GapUnknownImageType,
				Detail:  fmt.Sprintf("type %q", image.Type),
			})
			continue
		}
		if _, seen := grouped[image.Type]; !seen {
			order = append(order, image.Type)
		}
		grouped[image.Type] = append(grouped[image.Type], image.URL)
	}
	for _, imageType := range order {
		q, _ := c.PhotoByType(imageType)
		out.Submission.EnsureSection(q.Section).Set(q.Key, List(grouped[imageType]))
	}
	return out
}

func textValue(q Question, text string) Value {
	if !q.Numeric {
		return String(text)
	}
	parsed, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(text), ",", "."), 64)
	if err != nil {
		return String(text)
	}
	return Number(parsed)
}
