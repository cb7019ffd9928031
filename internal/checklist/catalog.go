// Package checklist holds the safety-inspection question catalog and the
// mapping between nested form submissions and flat response/image rows.
//
// Both directions consult the same Catalog. Nothing in this package performs
// I/O.
package checklist

import (
	"fmt"
	"regexp"
	"strconv"
)

type Kind string

const (
	KindChoice     Kind = "choice"
	KindFreeText   Kind = "free_text"
	KindPhotoArray Kind = "photo_array"
)

type Answer string

const (
	AnswerYes     Answer = "YES"
	AnswerNo      Answer = "NO"
	AnswerNA      Answer = "NA"
	AnswerPartial Answer = "PARTIAL"
)

type ImageType string

const (
	ImagePDSTFront ImageType = "PDST_FRONT"
	ImagePTFront   ImageType = "PT_FRONT"
	ImageGeneral   ImageType = "GENERAL"
)

// Question is one catalog entry. A zero Number is derived from Key with
// QuestionNumber when the catalog is built.
type Question struct {
	Key           string    `json:"key"`
	Section       int       `json:"section"`
	Number        int       `json:"number"`
	Label         string    `json:"label"`
	Kind          Kind      `json:"kind"`
	ConditionalOn string    `json:"conditionalOn,omitempty"`
	Optional      bool      `json:"optional,omitempty"`
	Numeric       bool      `json:"numeric,omitempty"`
	Allowed       []Answer  `json:"allowed,omitempty"`
	ImageType     ImageType `json:"imageType,omitempty"`
	Caption       string    `json:"caption,omitempty"`
	MinPhotos     int       `json:"minPhotos,omitempty"`
}

type SectionInfo struct {
	Number int    `json:"number"`
	Key    string `json:"key"`
	Title  string `json:"title"`
}

type slot struct {
	section int
	number  int
}

type Catalog struct {
	sections   []SectionInfo
	questions  []Question
	byKey      map[string]int
	bySlot     map[slot]int
	byImage    map[ImageType]int
	companions map[string]int
}

var (
	conditionalKey = regexp.MustCompile(`^q(\d+)_(\d+)_`)
	plainKey       = regexp.MustCompile(`^q(\d+)`)
)

// QuestionNumber derives the stored question number from a key:
// q14_1_inspecionados -> 141, q14_usa_equipamentos -> 14, anything else -> 0.
func QuestionNumber(key string) int {
	if match := conditionalKey.FindStringSubmatch(key); match != nil {
		base, _ := strconv.Atoi(match[1])
		sub, _ := strconv.Atoi(match[2])
		return base*10 + sub
	}
	if match := plainKey.FindStringSubmatch(key); match != nil {
		base, _ := strconv.Atoi(match[1])
		return base
	}
	return 0
}

// NewCatalog indexes sections and questions. It rejects duplicate keys, two
// response-producing questions sharing a (section, number) slot, and
// dangling conditional parents.
func NewCatalog(sections []SectionInfo, questions []Question) (*Catalog, error) {
	c := &Catalog{
		sections:   append([]SectionInfo(nil), sections...),
		questions:  make([]Question, 0, len(questions)),
		byKey:      make(map[string]int, len(questions)),
		bySlot:     make(map[slot]int, len(questions)),
		byImage:    make(map[ImageType]int),
		companions: make(map[string]int),
	}
	known := make(map[int]bool, len(sections))
	for _, section := range sections {
		known[section.Number] = true
	}

	for _, q := range questions {
		if _, exists := c.byKey[q.Key]; exists {
			return nil, fmt.Errorf("duplicate question key %s", q.Key)
		}
		if !known[q.Section] {
			return nil, fmt.Errorf("question %s: unknown section %d", q.Key, q.Section)
		}
		if q.Number == 0 {
			q.Number = QuestionNumber(q.Key)
		}
		if q.Kind == KindChoice && len(q.Allowed) == 0 {
			q.Allowed = []Answer{AnswerYes, AnswerNo, AnswerNA}
		}
		idx := len(c.questions)
		c.questions = append(c.questions, q)
		c.byKey[q.Key] = idx

		if q.Kind == KindPhotoArray {
			if _, exists := c.byImage[q.ImageType]; exists {
				return nil, fmt.Errorf("duplicate image type %s", q.ImageType)
			}
			c.byImage[q.ImageType] = idx
			continue
		}
		key := slot{section: q.Section, number: q.Number}
		if other, exists := c.bySlot[key]; exists {
			return nil, fmt.Errorf("question %s collides with %s at section %d number %d",
				q.Key, c.questions[other].Key, q.Section, q.Number)
		}
		c.bySlot[key] = idx
	}

	for idx, q := range c.questions {
		if q.ConditionalOn == "" {
			continue
		}
		parent, ok := c.byKey[q.ConditionalOn]
		if !ok || c.questions[parent].Kind != KindChoice {
			return nil, fmt.Errorf("question %s: conditional parent %s is not a choice question", q.Key, q.ConditionalOn)
		}
		if q.Kind == KindFreeText {
			if _, exists := c.companions[q.ConditionalOn]; exists {
				return nil, fmt.Errorf("question %s: %s already has a free-text companion", q.Key, q.ConditionalOn)
			}
			c.companions[q.ConditionalOn] = idx
		}
	}
	return c, nil
}

func MustCatalog(sections []SectionInfo, questions []Question) *Catalog {
	c, err := NewCatalog(sections, questions)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) Lookup(key string) (Question, bool) {
	idx, ok := c.byKey[key]
	if !ok {
		return Question{}, false
	}
	return c.questions[idx], true
}

// LookupBySectionAndNumber resolves a stored response slot. Photo fields have
// no slot and are never returned.
func (c *Catalog) LookupBySectionAndNumber(section, number int) (Question, bool) {
	idx, ok := c.bySlot[slot{section: section, number: number}]
	if !ok {
		return Question{}, false
	}
	return c.questions[idx], true
}

func (c *Catalog) PhotoByType(imageType ImageType) (Question, bool) {
	idx, ok := c.byImage[imageType]
	if !ok {
		return Question{}, false
	}
	return c.questions[idx], true
}

// CompanionOf returns the free-text question attached to a choice question,
// such as q14_equipamentos_lista for q14_usa_equipamentos.
func (c *Catalog) CompanionOf(parentKey string) (Question, bool) {
	idx, ok := c.companions[parentKey]
	if !ok {
		return Question{}, false
	}
	return c.questions[idx], true
}

func (c *Catalog) Questions() []Question {
	return append([]Question(nil), c.questions...)
}

func (c *Catalog) Sections() []SectionInfo {
	return append([]SectionInfo(nil), c.sections...)
}

func (c *Catalog) Section(number int) (SectionInfo, bool) {
	for _, section := range c.sections {
		if section.Number == number {
			return section, true
		}
	}
	return SectionInfo{}, false
}

// SectionQuestions lists a section's questions in catalog order.
func (c *Catalog) SectionQuestions(number int) []Question {
	var out []Question
	for _, q := range c.questions {
		if q.Section == number {
			out = append(out, q)
		}
	}
	return out
}

func (q Question) allows(answer Answer) bool {
	for _, allowed := range q.Allowed {
		if allowed == answer {
			return true
		}
	}
	return false
}
