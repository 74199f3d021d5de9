package fetch

// Outcome is the result of a fetch: either Success or Failure.
type Outcome interface {
	isOutcome()
}

// Success carries the normalized text extracted from a 2xx response.
type Success struct {
	Content    string
	StatusCode int
	Attempts   int
}

// Failure is a terminal failure for one provider. Reason always names the URL
// and the underlying error text.
type Failure struct {
	Reason   string
	Retried  bool
	Attempts int
	Err      error
}

func (Success) isOutcome() {}
func (Failure) isOutcome() {}
