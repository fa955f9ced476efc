package scoring

import "encoding/json"

// Section declares the marking scheme for one block of questions.
// Negative marks are stored already signed (e.g. -1) and are added to the
// score directly, never negated again.
type Section struct {
	Name                     string  `json:"name"`
	MarksPerQuestion         float64 `json:"marksPerQuestion"`
	NegativeMarksPerQuestion float64 `json:"negativeMarksPerQuestion"`
}

// UnmarshalJSON also accepts the historical misspelled key
// "negagiveMarksPerQuestion" still present in older test blobs.
func (s *Section) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name             string   `json:"name"`
		MarksPerQuestion float64  `json:"marksPerQuestion"`
		Negative         *float64 `json:"negativeMarksPerQuestion"`
		LegacyNegative   *float64 `json:"negagiveMarksPerQuestion"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Name = raw.Name
	s.MarksPerQuestion = raw.MarksPerQuestion
	switch {
	case raw.Negative != nil:
		s.NegativeMarksPerQuestion = *raw.Negative
	case raw.LegacyNegative != nil:
		s.NegativeMarksPerQuestion = *raw.LegacyNegative
	}
	return nil
}

// QuestionTags carries free-form tags attached by the content pipeline.
// tag2 doubles as the chapter code when no explicit chapterCode is set.
type QuestionTags struct {
	Tag1 string `json:"tag1,omitempty"`
	Tag2 string `json:"tag2,omitempty"`
}

type Question struct {
	UUID          string       `json:"uuid"`
	ID            string       `json:"id"`
	Section       string       `json:"section"`
	CorrectAnswer any          `json:"correctAnswer"`
	ChapterCode   string       `json:"chapterCode,omitempty"`
	Tags          QuestionTags `json:"tags,omitempty"`
	Difficulty    string       `json:"difficulty,omitempty"`
	Relevance     string       `json:"relevance,omitempty"`
	Scary         string       `json:"scary,omitempty"`
	Lengthy       string       `json:"lengthy,omitempty"`
	TopicTags     []string     `json:"topicTags,omitempty"`
}

// TestDefinition is the test blob fetched from the content repository.
// Anchor99ile is the reference score used by the percentile estimate.
type TestDefinition struct {
	TestID      string     `json:"testID,omitempty"`
	TestName    string     `json:"testName,omitempty"`
	Exam        string     `json:"exam,omitempty"`
	Anchor99ile float64    `json:"99ile,omitempty"`
	Sections    []Section  `json:"sections"`
	Questions   []Question `json:"questions"`
}

// ResponseSet maps question uuid to the submitted answer. A missing key
// means the question was not attempted.
type ResponseSet map[string]any

type Status string

const (
	StatusCorrect     Status = "Correct"
	StatusIncorrect   Status = "Incorrect"
	StatusUnattempted Status = "Unattempted"
)

// Comparison is one per-question audit record, kept in question order.
type Comparison struct {
	QuestionUUID    string  `json:"question_uuid"`
	QuestionID      string  `json:"question_id"`
	Section         string  `json:"section"`
	ChapterTag      string  `json:"chapter_tag"`
	UserResponse    any     `json:"user_response"`
	CorrectResponse any     `json:"correct_response"`
	Status          Status  `json:"status"`
	MarksAwarded    float64 `json:"marks_awarded"`
}

// Aggregate accumulates marks and outcome counts for one section or chapter.
type Aggregate struct {
	Score          float64 `json:"score"`
	Correct        int     `json:"correct"`
	Incorrect      int     `json:"incorrect"`
	Unattempted    int     `json:"unattempted"`
	TotalQuestions int     `json:"total_questions"`
}

// FieldCounts counts questions by the raw value of each metadata field.
// Topics is keyed "{chapterCode}-{topicID}" and only populated for chapters
// present in the topic lookup table.
type FieldCounts struct {
	Difficulty map[string]int `json:"difficulty"`
	Relevance  map[string]int `json:"relevance"`
	Scary      map[string]int `json:"scary"`
	Lengthy    map[string]int `json:"lengthy"`
	Topics     map[string]int `json:"topics"`
}

func newFieldCounts() FieldCounts {
	return FieldCounts{
		Difficulty: map[string]int{},
		Relevance:  map[string]int{},
		Scary:      map[string]int{},
		Lengthy:    map[string]int{},
		Topics:     map[string]int{},
	}
}

// MetadataStats splits the metadata counters by question outcome.
type MetadataStats struct {
	Correct     FieldCounts `json:"correct"`
	Incorrect   FieldCounts `json:"incorrect"`
	Unattempted FieldCounts `json:"unattempted"`
}

type TotalStats struct {
	TotalScore       float64 `json:"total_score"`
	TotalAttempted   int     `json:"total_attempted"`
	TotalCorrect     int     `json:"total_correct"`
	TotalWrong       int     `json:"total_wrong"`
	TotalUnattempted int     `json:"total_unattempted"`
	TotalQuestions   int     `json:"total_questions"`
}

// ScoreResult is the full graded artifact persisted per attempt. Field
// order is part of the contract: test metadata first, totals last.
type ScoreResult struct {
	TestID            string                `json:"testID,omitempty"`
	TestName          string                `json:"testName,omitempty"`
	Exam              string                `json:"exam,omitempty"`
	Anchor99ile       float64               `json:"99ile,omitempty"`
	Sections          []Section             `json:"sections,omitempty"`
	AttemptComparison []Comparison          `json:"attempt_comparison"`
	SectionScores     map[string]*Aggregate `json:"section_scores"`
	ChapterScores     map[string]*Aggregate `json:"chapter_scores"`
	MetadataStats     MetadataStats         `json:"metadata_stats"`
	TotalStats        TotalStats            `json:"total_stats"`
}

// TopicMap is the static chapter code -> {topic id -> topic name} lookup
// supplied at startup.
type TopicMap map[string]map[string]string
