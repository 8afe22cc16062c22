package evaluator

import (
	"github.com/entrhq/compass/pkg/graph"
	"github.com/entrhq/compass/pkg/llm"
)

const baselineRubric = `You are a strict but fair quality judge. Given a user request and an
assistant response, decide whether the response satisfies the request.

Judge on:
- Completeness: every part of the request is handled, not just the first.
- Accuracy: claims are consistent with the conversation and tool results.
- Usability: the user can act on the response without asking again.

Only set user_input_needed when the request genuinely cannot proceed without
a decision or fact that only the user holds. Missing effort is feedback, not
a reason to stop.`

const verdictFormat = `Respond with ONLY a JSON object in this exact shape:
{
  "feedback": "specific, actionable guidance for improving the response",
  "success_criteria_met": true or false,
  "user_input_needed": true or false,
  "score": 0 to 100,
  "addressed_primary_request": true or false
}`

// Domain rubrics appended to the baseline for specialized variants.
const (
	jobSearchRubric = `- External job postings surfaced via search or browsing are valid
  results. Do not penalize the response for citing sources outside the
  user's stored records.
- Each surfaced role should carry enough detail to act on: title, company,
  and why it matches.`

	coverLetterRubric = `- The response should be the document itself, not a description of one.
- Penalize invented experience: concrete claims about the user must trace
  to records, documents, or earlier conversation.
- Judge tone fit for the target role and employer.`

	crmRubric = `- Every factual claim about a stored record must trace to a tool result
  in the conversation. Unverifiable claims fail accuracy.
- A plain statement that a record does not exist is a valid, complete
  answer.`

	scraperRubric = `- Judge structural completeness only: the extraction carries the page's
  headline facts (title, organization, location, key requirements) and
  keeps them clearly separated.
- Do not judge prose quality. Extracted content mirrors the source page,
  not the assistant's writing.`
)

// NewGeneral builds the judge for the default variant.
func NewGeneral(provider llm.Provider) (*Evaluator, error) {
	return New(Config{Role: graph.RoleGeneral, Provider: provider})
}

// NewJobSearch builds the judge for the job discovery variant.
func NewJobSearch(provider llm.Provider) (*Evaluator, error) {
	return New(Config{Role: graph.RoleJobSearch, Provider: provider, DomainRubric: jobSearchRubric})
}

// NewCoverLetter builds the judge for the writing variant.
func NewCoverLetter(provider llm.Provider) (*Evaluator, error) {
	return New(Config{Role: graph.RoleCoverLetter, Provider: provider, DomainRubric: coverLetterRubric})
}

// NewCRM builds the judge for the records variant.
func NewCRM(provider llm.Provider) (*Evaluator, error) {
	return New(Config{Role: graph.RoleCRM, Provider: provider, DomainRubric: crmRubric})
}

// NewScraper builds the judge for the extraction variant. The stock scraper
// worker skips evaluation; register this judge when running a scraper with
// evaluation enabled.
func NewScraper(provider llm.Provider) (*Evaluator, error) {
	return New(Config{Role: graph.RoleScraper, Provider: provider, DomainRubric: scraperRubric})
}
