package export

import (
	"sort"

	"safetycheck/api/internal/checklist"
)

var answerLabels = map[checklist.Answer]string{
	checklist.AnswerYes:     "Sim",
	checklist.AnswerNo:      "Não",
	checklist.AnswerNA:      "N/A",
	checklist.AnswerPartial: "Parcial",
}

var answerTones = map[checklist.Answer]string{
	checklist.AnswerYes:     "yes",
	checklist.AnswerNo:      "no",
	checklist.AnswerNA:      "na",
	checklist.AnswerPartial: "partial",
}

// BuildSections lays stored rows out in catalog order. Free-text rows are
// printed under their catalog label; rows the catalog does not know keep
// the label stored with them.
func BuildSections(catalog *checklist.Catalog, responses []checklist.Response) []ReportSection {
	bySection := make(map[int]*ReportSection)
	for _, row := range responses {
		section, ok := bySection[row.SectionNumber]
		if !ok {
			title := row.SectionTitle
			if info, found := catalog.Section(row.SectionNumber); found {
				title = info.Title
			}
			section = &ReportSection{Number: row.SectionNumber, Title: title}
			bySection[row.SectionNumber] = section
		}

		item := ReportItem{Number: row.QuestionNumber, Question: row.QuestionText}
		q, known := catalog.LookupBySectionAndNumber(row.SectionNumber, row.QuestionNumber)
		if known {
			item.Question = q.Label
		}
		if row.TextValue != "" || (known && q.Kind == checklist.KindFreeText) {
			item.Text = row.TextValue
		} else {
			item.Answer = answerLabels[row.Answer]
			item.Tone = answerTones[row.Answer]
		}
		section.Items = append(section.Items, item)
	}

	sections := make([]ReportSection, 0, len(bySection))
	for _, section := range bySection {
		sort.SliceStable(section.Items, func(i, j int) bool {
			return section.Items[i].Number < section.Items[j].Number
		})
		sections = append(sections, *section)
	}
	sort.Slice(sections, func(i, j int) bool { return sections[i].Number < sections[j].Number })
	return sections
}

// BuildPhotoGroups groups images by type, titled with the photo question's
// label, in first-seen order.
func BuildPhotoGroups(catalog *checklist.Catalog, images []checklist.Image) []ReportPhotoGroup {
	index := make(map[checklist.ImageType]int)
	var groups []ReportPhotoGroup
	for _, image := range images {
		i, ok := index[image.Type]
		if !ok {
			title := string(image.Type)
			if q, found := catalog.PhotoByType(image.Type); found {
				title = q.Label
			}
			groups = append(groups, ReportPhotoGroup{Title: title})
			i = len(groups) - 1
			index[image.Type] = i
		}
		groups[i].Photos = append(groups[i].Photos, ReportPhoto{URL: image.URL, Caption: image.Caption})
	}
	return groups
}
