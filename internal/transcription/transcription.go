// Package transcription turns a validated local audio file into a transcript
// by submitting a job to the speech-to-text service and polling it to
// completion.
package transcription

import "strings"

// MinTranscriptLength is the floor below which a transcript is flagged short.
const MinTranscriptLength = 10

// Segment is one timed slice of the transcript.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the stage's output: raw text plus ordered timed segments and
// validation metadata.
type Transcript struct {
	Text             string    `json:"text"`
	Segments         []Segment `json:"segments"`
	DetectedLanguage string    `json:"detected_language,omitempty"`
	WordCount        int       `json:"word_count"`
	IsEmpty          bool      `json:"is_empty"`
	IsShort          bool      `json:"is_short"`
	Warning          string    `json:"warning,omitempty"`
}

// Validate fills in the metadata fields. An empty or short transcript is not
// an error here; the analysis stage decides what is usable. The store calls
// this on load so reloaded transcripts carry the same metadata as fresh ones.
func (t *Transcript) Validate() {
	t.WordCount = len(strings.Fields(t.Text))
	t.IsEmpty = strings.TrimSpace(t.Text) == ""
	if t.IsEmpty {
		t.Warning = "Transcript is empty. The audio may be silent or corrupted."
		return
	}
	if len(t.Text) < MinTranscriptLength {
		t.IsShort = true
		t.Warning = "Transcript is very short. Audio may have limited speech content."
	}
}
