package scoring

import (
	"fmt"
	"strconv"
	"strings"
)

type markingScheme struct {
	positive float64
	negative float64
}

// CalculateScore grades one response set against a test definition. It is a
// pure function: no I/O, no hidden state, identical inputs produce
// byte-identical results when marshaled.
//
// Data-shape anomalies degrade instead of failing: questions referencing an
// undeclared section score with a zero marking scheme, an empty question
// list yields all-zero aggregates, and non-string answers are coerced to
// trimmed strings before comparison.
func CalculateScore(def TestDefinition, responses ResponseSet, topics TopicMap) ScoreResult {
	schemes := make(map[string]markingScheme, len(def.Sections))
	for _, sec := range def.Sections {
		schemes[sec.Name] = markingScheme{
			positive: sec.MarksPerQuestion,
			negative: sec.NegativeMarksPerQuestion,
		}
	}

	res := ScoreResult{
		TestID:            def.TestID,
		TestName:          def.TestName,
		Exam:              def.Exam,
		Anchor99ile:       def.Anchor99ile,
		Sections:          def.Sections,
		AttemptComparison: make([]Comparison, 0, len(def.Questions)),
		SectionScores:     make(map[string]*Aggregate, len(def.Sections)),
		ChapterScores:     map[string]*Aggregate{},
		MetadataStats: MetadataStats{
			Correct:     newFieldCounts(),
			Incorrect:   newFieldCounts(),
			Unattempted: newFieldCounts(),
		},
	}
	for _, sec := range def.Sections {
		res.SectionScores[sec.Name] = &Aggregate{}
	}

	for _, q := range def.Questions {
		chapter := chapterKey(q)
		scheme := schemes[q.Section]

		userAns, attempted := responses[q.UUID]
		if userAns == nil {
			attempted = false
		}

		status := StatusUnattempted
		marks := 0.0
		if attempted {
			if answerString(userAns) == answerString(q.CorrectAnswer) {
				status = StatusCorrect
				marks = scheme.positive
			} else {
				status = StatusIncorrect
				marks = scheme.negative
			}
		}

		if agg, ok := res.SectionScores[q.Section]; ok {
			agg.add(status, marks)
		}
		chAgg, ok := res.ChapterScores[chapter]
		if !ok {
			chAgg = &Aggregate{}
			res.ChapterScores[chapter] = chAgg
		}
		chAgg.add(status, marks)

		res.TotalStats.TotalScore += marks
		res.TotalStats.TotalQuestions++
		switch status {
		case StatusCorrect:
			res.TotalStats.TotalAttempted++
			res.TotalStats.TotalCorrect++
		case StatusIncorrect:
			res.TotalStats.TotalAttempted++
			res.TotalStats.TotalWrong++
		default:
			res.TotalStats.TotalUnattempted++
		}

		bucket := res.MetadataStats.bucket(status)
		countField(bucket.Difficulty, q.Difficulty)
		countField(bucket.Relevance, q.Relevance)
		countField(bucket.Scary, q.Scary)
		countField(bucket.Lengthy, q.Lengthy)
		if _, known := topics[chapter]; known {
			for _, topicID := range q.TopicTags {
				if topicID == "" {
					continue
				}
				bucket.Topics[fmt.Sprintf("%s-%s", chapter, topicID)]++
			}
		}

		res.AttemptComparison = append(res.AttemptComparison, Comparison{
			QuestionUUID:    q.UUID,
			QuestionID:      q.ID,
			Section:         q.Section,
			ChapterTag:      chapter,
			UserResponse:    userAns,
			CorrectResponse: q.CorrectAnswer,
			Status:          status,
			MarksAwarded:    marks,
		})
	}

	return res
}

func (a *Aggregate) add(status Status, marks float64) {
	a.Score += marks
	a.TotalQuestions++
	switch status {
	case StatusCorrect:
		a.Correct++
	case StatusIncorrect:
		a.Incorrect++
	default:
		a.Unattempted++
	}
}

func (m *MetadataStats) bucket(status Status) *FieldCounts {
	switch status {
	case StatusCorrect:
		return &m.Correct
	case StatusIncorrect:
		return &m.Incorrect
	default:
		return &m.Unattempted
	}
}

func countField(counts map[string]int, value string) {
	if value == "" {
		return
	}
	counts[value]++
}

// chapterKey resolves the chapter bucket for a question: explicit
// chapterCode first, then tags.tag2, then "Unknown".
func chapterKey(q Question) string {
	if q.ChapterCode != "" {
		return q.ChapterCode
	}
	if q.Tags.Tag2 != "" {
		return q.Tags.Tag2
	}
	return "Unknown"
}

// answerString coerces a submitted or key answer to the trimmed string used
// for comparison. JSON numbers arrive as float64; formatting with the
// shortest round-trip representation keeps "4" and 4 equal.
func answerString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
