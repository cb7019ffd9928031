package checklist

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fullSubmission answers every catalog question, so every conditional branch
// is open and every required field is present.
func fullSubmission() *Submission {
	sub := NewSubmission()
	sub.Status = "SUBMITTED"
	for _, q := range Default.Questions() {
		section := sub.EnsureSection(q.Section)
		switch q.Kind {
		case KindChoice:
			section.Set(q.Key, String(AnswerYes))
		case KindFreeText:
			if q.Numeric {
				section.Set(q.Key, Number(1.75))
			} else {
				section.Set(q.Key, String("texto "+q.Key))
			}
		case KindPhotoArray:
			section.Set(q.Key, List{
				fmt.Sprintf("https://files.example.com/%s/1.jpg", q.Key),
				fmt.Sprintf("https://files.example.com/%s/2.jpg", q.Key),
			})
		}
	}
	return sub
}

func TestQuestionNumber(t *testing.T) {
	tests := []struct {
		key  string
		want int
	}{
		{"q14_1_inspecionados", 141},
		{"q14_usa_equipamentos", 14},
		{"q15_2_operador_treinado", 152},
		{"q1_equipe_integrada", 1},
		{"q27_equipe_consciente", 27},
		{"fotos_gerais", 0},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, QuestionNumber(tt.key))
		})
	}
}

func TestDefaultCatalogLookups(t *testing.T) {
	q, ok := Default.Lookup("q14_1_inspecionados")
	require.True(t, ok)
	assert.Equal(t, 3, q.Section)
	assert.Equal(t, 141, q.Number)
	assert.Equal(t, "q14_usa_equipamentos", q.ConditionalOn)

	q, ok = Default.LookupBySectionAndNumber(3, 140)
	require.True(t, ok)
	assert.Equal(t, "q14_equipamentos_lista", q.Key)
	assert.Equal(t, KindFreeText, q.Kind)
	assert.Equal(t, "Quais equipamentos?", q.Label)

	q, ok = Default.PhotoByType(ImagePTFront)
	require.True(t, ok)
	assert.Equal(t, "q13_foto_pt", q.Key)
	assert.Equal(t, 2, q.Section)

	q, ok = Default.CompanionOf("q31_nc_pendentes")
	require.True(t, ok)
	assert.Equal(t, "q31_descricao_nc", q.Key)

	_, ok = Default.Lookup("q99_inexistente")
	assert.False(t, ok)

	_, ok = Default.LookupBySectionAndNumber(1, 11)
	assert.False(t, ok, "photo fields have no response slot")
}

func TestNewCatalogRejectsSlotCollision(t *testing.T) {
	sections := []SectionInfo{{Number: 1, Key: "section1", Title: "S1"}}
	_, err := NewCatalog(sections, []Question{
		{Key: "q14_usa", Section: 1, Kind: KindChoice},
		{Key: "q14_lista", Section: 1, Kind: KindFreeText, ConditionalOn: "q14_usa"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collides")

	_, err = NewCatalog(sections, []Question{
		{Key: "q1_a", Section: 1, Kind: KindChoice},
		{Key: "q1_a", Section: 1, Kind: KindChoice},
	})
	require.Error(t, err)

	_, err = NewCatalog(sections, []Question{
		{Key: "q1_1_sub", Section: 1, Kind: KindChoice, ConditionalOn: "q1_missing"},
	})
	require.Error(t, err)
}

func TestNormalizeAnswer(t *testing.T) {
	assert.Equal(t, AnswerYes, NormalizeAnswer("yes"))
	assert.Equal(t, AnswerPartial, NormalizeAnswer(" partial "))
	assert.Equal(t, AnswerNA, NormalizeAnswer("MAYBE"))
	assert.Equal(t, AnswerNA, NormalizeAnswer(""))
}

func TestMapChoicesAndConditionalNumbering(t *testing.T) {
	sub := NewSubmission()
	sub.Sections[3] = NewSection(
		Field{Key: "q14_usa_equipamentos", Value: String("yes")},
		Field{Key: "q14_1_inspecionados", Value: String("MAYBE")},
	)

	mapped := Default.Map(sub, "user-1")

	require.Len(t, mapped.Responses, 2)
	assert.Empty(t, mapped.Gaps)
	assert.Equal(t, Response{
		SectionNumber:  3,
		SectionTitle:   "MÁQUINAS E EQUIPAMENTOS",
		QuestionNumber: 14,
		QuestionText:   "A equipe utiliza equipamentos manuais (serra cliper; policorte; compactador)?",
		Answer:         AnswerYes,
	}, mapped.Responses[0])
	assert.Equal(t, 141, mapped.Responses[1].QuestionNumber)
	assert.Equal(t, AnswerNA, mapped.Responses[1].Answer)
}

func TestMapFreeText(t *testing.T) {
	sub := NewSubmission()
	sub.Sections[3] = NewSection(Field{Key: "q14_equipamentos_lista", Value: String("serra, policorte")})
	sub.Sections[7] = NewSection(Field{Key: "q25_profundidade", Value: Number(1.5)})

	mapped := Default.Map(sub, "user-1")

	require.Len(t, mapped.Responses, 2)
	assert.Equal(t, 140, mapped.Responses[0].QuestionNumber)
	assert.Equal(t, AnswerNA, mapped.Responses[0].Answer)
	assert.Equal(t, "serra, policorte", mapped.Responses[0].TextValue)
	assert.Equal(t, "Quais equipamentos?", mapped.Responses[0].QuestionText)
	assert.Equal(t, "1.5", mapped.Responses[1].TextValue)
}

func TestMapPhotos(t *testing.T) {
	sub := NewSubmission()
	sub.Sections[1] = NewSection(
		Field{Key: "q1_equipe_integrada", Value: String("YES")},
		Field{Key: "q11_foto_pdst", Value: List{"https://x/a.jpg", "", "https://x/b.jpg"}},
	)
	sub.Sections[9] = NewSection(Field{Key: "fotos_gerais", Value: List{"https://x/c.jpg"}})

	mapped := Default.Map(sub, "user-7")

	require.Len(t, mapped.Responses, 1)
	require.Len(t, mapped.Images, 3)
	assert.Equal(t, Image{URL: "https://x/a.jpg", Caption: "Foto do PDST", Type: ImagePDSTFront, SectionNumber: 1, UploadedBy: "user-7"}, mapped.Images[0])
	assert.Equal(t, "https://x/b.jpg", mapped.Images[1].URL)
	assert.Equal(t, Image{URL: "https://x/c.jpg", Caption: "Registro fotográfico geral", Type: ImageGeneral, SectionNumber: 9, UploadedBy: "user-7"}, mapped.Images[2])
}

func TestMapUnknownKeysBecomeGaps(t *testing.T) {
	sub := NewSubmission()
	sub.Sections[1] = NewSection(
		Field{Key: "q99_nao_existe", Value: String("YES")},
		Field{Key: "q18_uso_epi", Value: String("YES")},
		Field{Key: "q2_cracha_visivel", Value: nil},
		Field{Key: "q3_lider_presente", Value: String("")},
	)
	sub.Sections[9] = NewSection(Field{Key: "observacao", Value: String("x")})

	var mapped Mapped
	require.NotPanics(t, func() { mapped = Default.Map(sub, "user-1") })

	assert.Empty(t, mapped.Responses)
	assert.Empty(t, mapped.Images)
	require.Len(t, mapped.Gaps, 3)
	assert.Equal(t, GapUnknownKey, mapped.Gaps[0].Reason)
	assert.Equal(t, "q99_nao_existe", mapped.Gaps[0].Key)
	assert.Equal(t, GapWrongSection, mapped.Gaps[1].Reason)
	assert.Equal(t, 9, mapped.Gaps[2].Section)
}

func TestMapNonTextChoiceBecomesGap(t *testing.T) {
	sub := NewSubmission()
	sub.Sections[1] = NewSection(
		Field{Key: "q1_equipe_integrada", Value: Number(1)},
		Field{Key: "q2_cracha_visivel", Value: List{"YES"}},
		Field{Key: "q3_lider_presente", Value: String("yes")},
	)

	mapped := Default.Map(sub, "user-1")

	require.Len(t, mapped.Responses, 3)
	assert.Equal(t, AnswerNA, mapped.Responses[0].Answer)
	assert.Equal(t, AnswerNA, mapped.Responses[1].Answer)
	assert.Equal(t, AnswerYes, mapped.Responses[2].Answer)
	require.Len(t, mapped.Gaps, 2)
	for i, key := range []string{"q1_equipe_integrada", "q2_cracha_visivel"} {
		assert.Equal(t, GapUnsupportedValue, mapped.Gaps[i].Reason)
		assert.Equal(t, key, mapped.Gaps[i].Key)
		assert.Equal(t, 1, mapped.Gaps[i].Section)
	}
}

func TestDedupLastOccurrenceWins(t *testing.T) {
	in := []Response{
		{SectionNumber: 3, QuestionNumber: 14, Answer: AnswerYes},
		{SectionNumber: 3, QuestionNumber: 141, Answer: AnswerYes},
		{SectionNumber: 3, QuestionNumber: 14, Answer: AnswerNo},
	}

	out := Dedup(in)

	require.Len(t, out, 2)
	assert.Equal(t, AnswerNo, out[0].Answer)
	assert.Equal(t, 14, out[0].QuestionNumber)
	assert.Equal(t, 141, out[1].QuestionNumber)
	assert.Equal(t, out, Dedup(out))
}

func TestDedupDuplicateKeysFromSubmission(t *testing.T) {
	sub := NewSubmission()
	section := sub.EnsureSection(3)
	section.Add("q14_usa_equipamentos", String("YES"))
	section.Add("q14_usa_equipamentos", String("NO"))

	out := Dedup(Default.Map(sub, "u").Responses)

	require.Len(t, out, 1)
	assert.Equal(t, AnswerNo, out[0].Answer)
}

func TestRoundTrip(t *testing.T) {
	original := fullSubmission()

	mapped := Default.Map(original, "user-1")
	require.Empty(t, mapped.Gaps)
	hydrated := Default.Hydrate(Dedup(mapped.Responses), mapped.Images)

	require.Empty(t, hydrated.Gaps)
	assert.Equal(t, original.SectionNumbers(), hydrated.Submission.SectionNumbers())
	for _, number := range original.SectionNumbers() {
		assert.Equal(t, original.Section(number).Map(), hydrated.Submission.Section(number).Map(), "section %d", number)
	}
}

func TestRoundTripMixedAnswers(t *testing.T) {
	original := NewSubmission()
	original.Sections[2] = NewSection(
		Field{Key: "q11_pt_emitida", Value: String("NO")},
		Field{Key: "q13_foto_pt", Value: List{"https://x/pt.jpg"}},
	)
	original.Sections[8] = NewSection(
		Field{Key: "q27_equipe_consciente", Value: String("PARTIAL")},
		Field{Key: "q28_fortalecer_realizado", Value: String("YES")},
		Field{Key: "q28_temas", Value: String("Trabalho em altura")},
		Field{Key: "q29_indicacao_fortalecer", Value: String("NA")},
	)

	mapped := Default.Map(original, "user-1")
	hydrated := Default.Hydrate(mapped.Responses, mapped.Images)

	require.Empty(t, hydrated.Gaps)
	assert.Equal(t, original.Section(2).Map(), hydrated.Submission.Section(2).Map())
	assert.Equal(t, original.Section(8).Map(), hydrated.Submission.Section(8).Map())
}

func TestHydrateLegacyFreeTextRows(t *testing.T) {
	rows := []Response{
		{SectionNumber: 3, QuestionNumber: 14, Answer: AnswerYes},
		{SectionNumber: 3, QuestionNumber: 14, Answer: AnswerNA, TextValue: "compactador"},
		{SectionNumber: 7, QuestionNumber: 25, Answer: AnswerNA, TextValue: "2,5"},
	}

	hydrated := Default.Hydrate(rows, nil)

	require.Empty(t, hydrated.Gaps)
	section3 := hydrated.Submission.Section(3).Map()
	assert.Equal(t, String("YES"), section3["q14_usa_equipamentos"])
	assert.Equal(t, String("compactador"), section3["q14_equipamentos_lista"])
	assert.Equal(t, Number(2.5), hydrated.Submission.Section(7).Map()["q25_profundidade"])
}

func TestHydrateReportsUnresolvedRows(t *testing.T) {
	rows := []Response{
		{SectionNumber: 5, QuestionNumber: 99, Answer: AnswerYes},
		{SectionNumber: 1, QuestionNumber: 1, Answer: AnswerNA, TextValue: "observação"},
		{SectionNumber: 8, QuestionNumber: 280, Answer: AnswerNA},
	}
	images := []Image{{URL: "https://x/y.jpg", Type: "SIGNATURE", SectionNumber: 9}}

	hydrated := Default.Hydrate(rows, images)

	require.Len(t, hydrated.Gaps, 4)
	assert.Equal(t, GapUnresolvedRow, hydrated.Gaps[0].Reason)
	assert.Equal(t, GapUnsupportedValue, hydrated.Gaps[1].Reason)
	assert.Equal(t, GapUnsupportedValue, hydrated.Gaps[2].Reason)
	assert.Equal(t, GapUnknownImageType, hydrated.Gaps[3].Reason)
	assert.Empty(t, hydrated.Submission.SectionNumbers())
}

func TestHydrateGroupsImagesByType(t *testing.T) {
	images := []Image{
		{URL: "g1", Type: ImageGeneral, SectionNumber: 1},
		{URL: "p1", Type: ImagePDSTFront, SectionNumber: 9},
		{URL: "g2", Type: ImageGeneral, SectionNumber: 9},
	}

	hydrated := Default.Hydrate(nil, images)

	assert.Equal(t, List{"g1", "g2"}, hydrated.Submission.Section(9).Map()["fotos_gerais"])
	assert.Equal(t, List{"p1"}, hydrated.Submission.Section(1).Map()["q11_foto_pdst"])
}

func TestValidateFullSubmission(t *testing.T) {
	assert.Empty(t, Default.Validate(fullSubmission()))
}

func TestValidateMissingRequiredPhoto(t *testing.T) {
	sub := fullSubmission()
	section1 := NewSection()
	for _, field := range sub.Section(1).Fields() {
		if field.Key != "q11_foto_pdst" {
			section1.Add(field.Key, field.Value)
		}
	}
	sub.Sections[1] = section1

	errs := Default.Validate(sub)

	require.Len(t, errs, 1)
	assert.Equal(t, "section1.q11_foto_pdst", errs[0].Path)
}

func TestValidateConditionalQuestions(t *testing.T) {
	sub := fullSubmission()
	section3 := NewSection(Field{Key: "q14_usa_equipamentos", Value: String("NO")})
	sub.Sections[3] = section3

	assert.Empty(t, Default.Validate(sub))

	section3.Set("q14_usa_equipamentos", String("YES"))
	errs := Default.Validate(sub)
	paths := make([]string, 0, len(errs))
	for _, err := range errs {
		paths = append(paths, err.Path)
	}
	assert.Contains(t, paths, "section3.q14_1_inspecionados")
	assert.Contains(t, paths, "section3.q14_equipamentos_lista")
	assert.Len(t, paths, 7)
}

func TestValidateRejectsInvalidValues(t *testing.T) {
	sub := fullSubmission()
	sub.Section(5).Set("q18_uso_epi", String("MAYBE"))
	sub.Section(5).Set("q19_epi_adequado", String("PARTIAL"))
	sub.Section(8).Set("q27_equipe_consciente", String("NA"))
	sub.Section(7).Set("q25_profundidade", String("fundo"))

	errs := Default.Validate(sub)

	var paths []string
	for _, err := range errs {
		paths = append(paths, err.Path)
	}
	assert.ElementsMatch(t, []string{
		"section5.q18_uso_epi",
		"section5.q19_epi_adequado",
		"section7.q25_profundidade",
		"section8.q27_equipe_consciente",
	}, paths)
}

func TestValidateEmptySubmission(t *testing.T) {
	errs := Default.Validate(NewSubmission())

	var paths []string
	for _, err := range errs {
		paths = append(paths, err.Path)
	}
	assert.Contains(t, paths, "section1.q1_equipe_integrada")
	assert.Contains(t, paths, "section1.q11_foto_pdst")
	assert.Contains(t, paths, "section9.fotos_gerais")
	assert.NotContains(t, paths, "section2.q13_foto_pt")
	assert.NotContains(t, paths, "section3.q14_1_inspecionados")
}

func TestSubmissionJSON(t *testing.T) {
	payload := `{
		"status": "DRAFT",
		"title": "Rua A",
		"location": {"latitude": -23.5, "longitude": -46.6, "address": "Rua A, 10"},
		"section1": {"q1_equipe_integrada": "YES", "q2_cracha_visivel": null, "q1_equipe_integrada": "NO",
			"q11_foto_pdst": ["https://x/a.jpg", {"url": "https://x/b.jpg"}]},
		"section2": null,
		"section7": {"q25_profundidade": 1.25, "q25_escavacao_profunda": true},
		"extra": {"ignored": true}
	}`

	var sub Submission
	require.NoError(t, json.Unmarshal([]byte(payload), &sub))

	assert.Equal(t, "DRAFT", sub.Status)
	assert.Equal(t, "Rua A", sub.Title)
	require.NotNil(t, sub.Location)
	assert.Equal(t, "Rua A, 10", sub.Location.Address)
	assert.Equal(t, []int{1, 7}, sub.SectionNumbers())

	fields := sub.Section(1).Fields()
	require.Len(t, fields, 4)
	assert.Equal(t, "q1_equipe_integrada", fields[0].Key)
	assert.Nil(t, fields[1].Value)
	value, _ := sub.Section(1).Get("q1_equipe_integrada")
	assert.Equal(t, String("NO"), value)
	assert.Equal(t, List{"https://x/a.jpg", "https://x/b.jpg"}, sub.Section(1).Map()["q11_foto_pdst"])
	assert.Equal(t, Number(1.25), sub.Section(7).Map()["q25_profundidade"])
	assert.Equal(t, String("true"), sub.Section(7).Map()["q25_escavacao_profunda"])

	encoded, err := json.Marshal(&sub)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	section1 := decoded["section1"].(map[string]any)
	assert.Equal(t, "NO", section1["q1_equipe_integrada"])
	assert.Nil(t, section1["q2_cracha_visivel"])
}

func TestParseSectionKey(t *testing.T) {
	tests := []struct {
		key    string
		number int
		ok     bool
	}{
		{"section1", 1, true},
		{"section12", 12, true},
		{"section01", 0, false},
		{"section", 0, false},
		{"section0", 0, false},
		{"section-1", 0, false},
		{"section+1", 0, false},
		{"section 1", 0, false},
		{"sectionX", 0, false},
		{"title", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			number, ok := parseSectionKey(tt.key)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.number, number)
		})
	}
}

func TestSubmissionJSONIgnoresPaddedSectionKeys(t *testing.T) {
	payload := `{
		"section1": {"q1_equipe_integrada": "YES"},
		"section01": {"q1_equipe_integrada": "NO"}
	}`
	for i := 0; i < 20; i++ {
		var sub Submission
		require.NoError(t, json.Unmarshal([]byte(payload), &sub))
		assert.Equal(t, []int{1}, sub.SectionNumbers())
		value, _ := sub.Section(1).Get("q1_equipe_integrada")
		assert.Equal(t, String("YES"), value)
	}
}
