package repositories

import "context"

// UserDataService exposes the profile, assessment and guidance lookups the
// prompt controller and the tool dispatcher rely on. Implementations cache
// each lookup; an empty string means the data is unavailable, which callers
// treat the same as "nothing to add".
type UserDataService interface {
	// Profile returns the rendered profile text for a subject.
	Profile(ctx context.Context, subjectID string) string
	// AssessmentSummary returns the categorized assessment overview.
	AssessmentSummary(ctx context.Context, subjectID string) string
	// AssessmentDetail returns the full assessment report body.
	AssessmentDetail(ctx context.Context, subjectID string) string
	// GuidanceByCode returns guidance material for an assessment code.
	GuidanceByCode(ctx context.Context, code string) string
	// GuidanceByDimension returns guidance material for a named dimension.
	GuidanceByDimension(ctx context.Context, dimension string) string
	// KnowledgeQuery runs a free-form knowledge-base query.
	KnowledgeQuery(ctx context.Context, query string) string
}
