package checklist

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Value is a submitted field value: String, Number or List.
type Value interface {
	isValue()
}

type String string

type Number float64

// List is an ordered list of strings, used for photo URLs.
type List []string

func (String) isValue() {}
func (Number) isValue() {}
func (List) isValue()   {}

// Text renders a value as a single string. Lists are joined with ", ".
func Text(v Value) string {
	switch value := v.(type) {
	case String:
		return string(value)
	case Number:
		return strconv.FormatFloat(float64(value), 'f', -1, 64)
	case List:
		return strings.Join(value, ", ")
	default:
		return ""
	}
}

func isEmpty(v Value) bool {
	switch value := v.(type) {
	case nil:
		return true
	case String:
		return value == ""
	case List:
		return len(value) == 0
	default:
		return false
	}
}

type Field struct {
	Key   string
	Value Value
}

// Section keeps fields in submission order. Duplicate keys are kept as they
// arrive; Get and Map report the last occurrence.
type Section struct {
	fields []Field
}

func NewSection(fields ...Field) *Section {
	return &Section{fields: append([]Field(nil), fields...)}
}

func (s *Section) Fields() []Field {
	if s == nil {
		return nil
	}
	return append([]Field(nil), s.fields...)
}

func (s *Section) Len() int {
	if s == nil {
		return 0
	}
	return len(s.fields)
}

func (s *Section) Get(key string) (Value, bool) {
	if s == nil {
		return nil, false
	}
	for i := len(s.fields) - 1; i >= 0; i-- {
		if s.fields[i].Key == key {
			return s.fields[i].Value, true
		}
	}
	return nil, false
}

// Set replaces the value of an existing key or appends a new field.
func (s *Section) Set(key string, value Value) {
	for i := len(s.fields) - 1; i >= 0; i-- {
		if s.fields[i].Key == key {
			s.fields[i].Value = value
			return
		}
	}
	s.fields = append(s.fields, Field{Key: key, Value: value})
}

// Add appends a field even if the key is already present.
func (s *Section) Add(key string, value Value) {
	s.fields = append(s.fields, Field{Key: key, Value: value})
}

func (s *Section) Map() map[string]Value {
	out := make(map[string]Value, s.Len())
	if s == nil {
		return out
	}
	for _, field := range s.fields {
		out[field.Key] = field.Value
	}
	return out
}

func (s *Section) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	last := make(map[string]int, s.Len())
	for i, field := range s.Fields() {
		last[field.Key] = i
	}
	written := 0
	for i, field := range s.Fields() {
		if last[field.Key] != i {
			continue
		}
		if written > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(field.Key)
		if err != nil {
			return nil, err
		}
		value, err := marshalValue(field.Value)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", field.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
		written++
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *Section) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	token, err := decoder.Token()
	if err != nil {
		return err
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("section must be an object")
	}
	s.fields = nil
	for decoder.More() {
		keyToken, err := decoder.Token()
		if err != nil {
			return err
		}
		key, _ := keyToken.(string)
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		value, err := decodeValue(raw)
		if err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		s.fields = append(s.fields, Field{Key: key, Value: value})
	}
	_, err = decoder.Token()
	return err
}

func marshalValue(v Value) ([]byte, error) {
	switch value := v.(type) {
	case nil:
		return []byte("null"), nil
	case String:
		return json.Marshal(string(value))
	case Number:
		return json.Marshal(float64(value))
	case List:
		if value == nil {
			return []byte("[]"), nil
		}
		return json.Marshal([]string(value))
	default:
		return nil, fmt.Errorf("unsupported value %T", v)
	}
}

// decodeValue maps raw JSON to a Value. null becomes a nil Value, booleans
// become String, and list items may be strings or objects carrying a "url".
func decodeValue(raw json.RawMessage) (Value, error) {
	var decoded any
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&decoded); err != nil {
		return nil, err
	}
	switch value := decoded.(type) {
	case nil:
		return nil, nil
	case string:
		return String(value), nil
	case bool:
		return String(strconv.FormatBool(value)), nil
	case json.Number:
		parsed, err := value.Float64()
		if err != nil {
			return nil, err
		}
		return Number(parsed), nil
	case []any:
		list := make(List, 0, len(value))
		for _, item := range value {
			switch entry := item.(type) {
			case string:
				list = append(list, entry)
			case map[string]any:
				if url, ok := entry["url"].(string); ok {
					list = append(list, url)
				}
			}
		}
		return list, nil
	default:
		return nil, fmt.Errorf("unsupported value of type %T", decoded)
	}
}

type Location struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Address   string   `json:"address,omitempty"`
}

// Submission is the nested form payload: top-level scalars plus sections
// keyed by number (section1..section9 on the wire).
type Submission struct {
	Status   string
	Title    string
	Location *Location
	Sections map[int]*Section
}

func NewSubmission() *Submission {
	return &Submission{Sections: make(map[int]*Section)}
}

func (s *Submission) Section(number int) *Section {
	if s == nil {
		return nil
	}
	return s.Sections[number]
}

func (s *Submission) EnsureSection(number int) *Section {
	if s.Sections == nil {
		s.Sections = make(map[int]*Section)
	}
	section, ok := s.Sections[number]
	if !ok || section == nil {
		section = &Section{}
		s.Sections[number] = section
	}
	return section
}

func (s *Submission) SectionNumbers() []int {
	numbers := make([]int, 0, len(s.Sections))
	for number, section := range s.Sections {
		if section != nil {
			numbers = append(numbers, number)
		}
	}
	sort.Ints(numbers)
	return numbers
}

func (s *Submission) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Sections)+3)
	if s.Status != "" {
		out["status"] = s.Status
	}
	if s.Title != "" {
		out["title"] = s.Title
	}
	if s.Location != nil {
		out["location"] = s.Location
	}
	for number, section := range s.Sections {
		if section != nil {
			out[sectionKey(number)] = section
		}
	}
	return json.Marshal(out)
}

func (s *Submission) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Sections = make(map[int]*Section)
	for key, value := range raw {
		if isNull(value) {
			continue
		}
		switch key {
		case "status":
			if err := json.Unmarshal(value, &s.Status); err != nil {
				return fmt.Errorf("decode status: %w", err)
			}
		case "title":
			if err := json.Unmarshal(value, &s.Title); err != nil {
				return fmt.Errorf("decode title: %w", err)
			}
		case "location":
			var location Location
			if err := json.Unmarshal(value, &location); err != nil {
				return fmt.Errorf("decode location: %w", err)
			}
			s.Location = &location
		default:
			number, ok := parseSectionKey(key)
			if !ok {
				continue
			}
			section := &Section{}
			if err := section.UnmarshalJSON(value); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
			s.Sections[number] = section
		}
	}
	return nil
}

func sectionKey(number int) string {
	return "section" + strconv.Itoa(number)
}

func parseSectionKey(key string) (int, bool) {
	if !strings.HasPrefix(key, "section") {
		return 0, false
	}
	suffix := strings.TrimPrefix(key, "section")
	number, err := strconv.Atoi(suffix)
	// Only the canonical spelling counts, so "section01" cannot shadow "section1".
	if err != nil || number <= 0 || strconv.Itoa(number) != suffix {
		return 0, false
	}
	return number, true
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null"
}
