package models

// Flashcard is a front/back pair produced by the Generation Oracle.
// Front and Back may carry rendered HTML for the Flashcard Store;
// FrontRaw and BackRaw keep the original text for terminal display.
type Flashcard struct {
	Front    string   `json:"front"`
	Back     string   `json:"back"`
	FrontRaw string   `json:"-"`
	BackRaw  string   `json:"-"`
	NotePath string   `json:"note_path,omitempty"`
	Title    string   `json:"title,omitempty"`
	Tags     []string `json:"tags"`
}

// NewFlashcard builds a card owned by note. Tags are snapshotted from the
// note at creation time, not referenced live.
func NewFlashcard(front, back string, note *Note) Flashcard {
	f := Flashcard{
		Front:    front,
		Back:     back,
		FrontRaw: front,
		BackRaw:  back,
		Tags:     []string{},
	}
	if note != nil {
		f.NotePath = note.Path
		f.Title = note.Title()
		f.Tags = append(f.Tags, note.Tags...)
	}
	return f
}
