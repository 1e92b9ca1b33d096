package models

// AnalyzeDisruptionRequest is the body of POST /v1/disruptions:analyze.
type AnalyzeDisruptionRequest struct {
	// Operator identifies whose GTFS feed the article resolves against.
	Operator string `json:"operator"`

	// Article is the notice to analyze.
	Article AnalyzeArticle `json:"article"`
}

// AnalyzeArticle is the notice payload.
type AnalyzeArticle struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Body  string `json:"body"`
}

// Validate checks required fields.
func (r *AnalyzeDisruptionRequest) Validate() []FieldError {
	var errs []FieldError
	if r.Operator == "" {
		errs = append(errs, FieldError{Field: "operator", Message: "operator is required", Code: "required"})
	}
	if r.Article.Title == "" && r.Article.Body == "" {
		errs = append(errs, FieldError{Field: "article", Message: "article title or body is required", Code: "required"})
	}
	return errs
}
