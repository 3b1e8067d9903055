package domain

// Question is one multiple-choice entry from the static catalog. The correct
// answer is stored as the option string itself and must equal one of Options.
type Question struct {
	Prompt   string   `json:"prompt"`
	Options  []string `json:"options"`
	Correct  string   `json:"correct"`
	Category string   `json:"category"`
	Trivia   string   `json:"trivia"`
}

// Preferences is a snapshot of the durable per-user scalars. An empty
// UserName means "logged out".
type Preferences struct {
	UserName  string `json:"userName"`
	HighScore int    `json:"highScore"`
	DarkTheme bool   `json:"darkTheme"`
}

// SessionState is a snapshot of the quiz session. SelectedAnswer and
// IsAnswerCorrect are set together with ShowFeedback and cleared together on
// advance; a nil SelectedCategory means no session is active.
type SessionState struct {
	Questions        []Question `json:"questions"`
	CurrentIndex     int        `json:"currentIndex"`
	SelectedAnswer   *string    `json:"selectedAnswer"`
	IsAnswerCorrect  *bool      `json:"isAnswerCorrect"`
	ShowFeedback     bool       `json:"showFeedback"`
	Score            int        `json:"score"`
	SelectedCategory *string    `json:"selectedCategory"`
	IsLoading        bool       `json:"isLoading"`
}

// CurrentQuestion returns the question at the current index, or nil once the
// session has run past the end (or before any session started).
func (s SessionState) CurrentQuestion() *Question {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Questions) {
		return nil
	}
	q := s.Questions[s.CurrentIndex]
	return &q
}

// CurrentOptions returns the option list for the current question.
func (s SessionState) CurrentOptions() []string {
	if q := s.CurrentQuestion(); q != nil {
		return q.Options
	}
	return nil
}

// TotalQuestions is the length of the active question sequence.
func (s SessionState) TotalQuestions() int {
	return len(s.Questions)
}

// IsLastQuestion reports whether the current question is the final one.
func (s SessionState) IsLastQuestion() bool {
	return len(s.Questions) > 0 && s.CurrentIndex == len(s.Questions)-1
}

// Finished reports whether the session has run through every question.
// A session with no questions is never finished.
func (s SessionState) Finished() bool {
	return len(s.Questions) > 0 && s.CurrentIndex >= len(s.Questions)
}
