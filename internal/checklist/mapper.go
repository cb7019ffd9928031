package checklist

import (
	"fmt"
	"strings"
)

// Response is one normalized answer row. Free-text rows carry AnswerNA and
// the text in TextValue.
type Response struct {
	SectionNumber  int      `json:"sectionNumber"`
	SectionTitle   string   `json:"sectionTitle"`
	QuestionNumber int      `json:"questionNumber"`
	QuestionText   string   `json:"questionText"`
	Answer         Answer   `json:"response"`
	TextValue      string   `json:"textValue,omitempty"`
	ListValues     []string `json:"listValues,omitempty"`
}

type Image struct {
	URL           string    `json:"url"`
	Caption       string    `json:"caption"`
	Type          ImageType `json:"type"`
	SectionNumber int       `json:"sectionNumber"`
	UploadedBy    string    `json:"uploadedBy"`
}

type GapReason string

const (
	GapUnknownKey       GapReason = "unknown_key"
	GapWrongSection     GapReason = "wrong_section"
	GapUnsupportedValue GapReason = "unsupported_value"
	GapUnresolvedRow    GapReason = "unresolved_row"
	GapUnknownImageType GapReason = "unknown_image_type"
)

// Gap records input that could not be mapped. Gaps never fail a request.
type Gap struct {
	Section        int       `json:"section"`
	Key            string    `json:"key,omitempty"`
	QuestionNumber int       `json:"questionNumber,omitempty"`
	Reason         GapReason `json:"reason"`
	Detail         string    `json:"detail,omitempty"`
}

func (g Gap) String() string {
	target := g.Key
	if target == "" {
		target = fmt.Sprintf("question %d", g.QuestionNumber)
	}
	if g.Detail == "" {
		return fmt.Sprintf("section %d %s: %s", g.Section, target, g.Reason)
	}
	return fmt.Sprintf("section %d %s: %s (%s)", g.Section, target, g.Reason, g.Detail)
}

type Mapped struct {
	Responses []Response
	Images    []Image
	Gaps      []Gap
}

// NormalizeAnswer uppercases a choice value. Anything outside
// YES/NO/NA/PARTIAL becomes NA.
func NormalizeAnswer(value string) Answer {
	switch answer := Answer(strings.ToUpper(strings.TrimSpace(value))); answer {
	case AnswerYes, AnswerNo, AnswerNA, AnswerPartial:
		return answer
	default:
		return AnswerNA
	}
}

// Map flattens a submission into response and image rows. Responses are not
// deduplicated; call Dedup before writing.
func (c *Catalog) Map(sub *Submission, uploadedBy string) Mapped {
	var out Mapped
	if sub == nil {
		return out
	}
	for _, number := range sub.SectionNumbers() {
		info, known := c.Section(number)
		section := sub.Section(number)
		for _, field := range section.Fields() {
			if !known {
				if !isEmpty(field.Value) {
					out.Gaps = append(out.Gaps, Gap{Section: number, Key: field.Key, Reason: GapUnknownKey, Detail: "unknown section"})
				}
				continue
			}
			c.mapField(&out, info, field, uploadedBy)
		}
	}
	return out
}

func (c *Catalog) mapField(out *Mapped, info SectionInfo, field Field, uploadedBy string) {
	q, found := c.Lookup(field.Key)
	if isEmpty(field.Value) {
		return
	}
	if !found {
		out.Gaps = append(out.Gaps, Gap{Section: info.Number, Key: field.Key, Reason: GapUnknownKey})
		return
	}
	if q.Section != info.Number {
		out.Gaps = append(out.Gaps, Gap{
			Section: info.Number,
			Key:     field.Key,
			Reason:  GapWrongSection,
			Detail:  fmt.Sprintf("belongs to section %d", q.Section),
		})
		return
	}

	switch q.Kind {
	case KindPhotoArray:
		urls, ok := photoURLs(field.Value)
		if !ok {
			out.Gaps = append(out.Gaps, Gap{Section: info.Number, Key: field.Key, Reason: GapUnsupportedValue, Detail: "expected a list of photo URLs"})
			return
		}
		for _, url := range urls {
			out.Images = append(out.Images, Image{
				URL:           url,
				Caption:       q.Caption,
				Type:          q.ImageType,
				SectionNumber: q.Section,
				UploadedBy:    uploadedBy,
			})
		}
	case KindFreeText:
		out.Responses = append(out.Responses, Response{
			SectionNumber:  q.Section,
			SectionTitle:   info.Title,
			QuestionNumber: q.Number,
			QuestionText:   q.Label,
			Answer:         AnswerNA,
			TextValue:      Text(field.Value),
		})
	default:
		answer := AnswerNA
		if text, ok := field.Value.(String); ok {
			answer = NormalizeAnswer(string(text))
		} else {
			out.Gaps = append(out.Gaps, Gap{Section: info.Number, Key: field.Key, Reason: GapUnsupportedValue, Detail: "expected a text answer"})
		}
		out.Responses = append(out.Responses, Response{
			SectionNumber:  q.Section,
			SectionTitle:   info.Title,
			QuestionNumber: q.Number,
			QuestionText:   q.Label,
			Answer:         answer,
		})
	}
}

func photoURLs(v Value) ([]string, bool) {
	switch value := v.(type) {
	case List:
		urls := make([]string, 0, len(value))
		for _, url := range value {
			if strings.TrimSpace(url) != "" {
				urls = append(urls, url)
			}
		}
		return urls, true
	case String:
		return []string{string(value)}, true
	default:
		return nil, false
	}
}

// Dedup keeps one response per (section, question). The last occurrence wins
// and takes the position of the first.
func Dedup(responses []Response) []Response {
	index := make(map[slot]int, len(responses))
	out := make([]Response, 0, len(responses))
	for _, response := range responses {
		key := slot{section: response.SectionNumber, number: response.QuestionNumber}
		if at, seen := index[key]; seen {
			out[at] = response
			continue
		}
		index[key] = len(out)
		out = append(out, response)
	}
	return out
}
