package queue

import (
	"github.com/OFFIS-RIT/pdf2bpmn/backend/pkg/consolidate"
)

// ConvertMsg asks a worker to convert one uploaded document. FileKey
// defaults to the document's upload key.
type ConvertMsg struct {
	DocumentID    string `json:"document_id"`
	FileKey       string `json:"file_key,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// ConvertedMsg is published on TopicConverted after a conversion finished.
type ConvertedMsg struct {
	DocumentID     string               `json:"document_id"`
	CorrelationID  string               `json:"correlation_id,omitempty"`
	Resumed        bool                 `json:"resumed"`
	Stats          consolidate.RunStats `json:"stats"`
	Processes      int                  `json:"processes"`
	OpenQuestions  int                  `json:"open_questions"`
	Issues         []consolidate.Issue  `json:"issues,omitempty"`
	DurationMillis int64                `json:"duration_ms"`
}
