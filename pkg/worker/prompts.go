package worker

import (
	"fmt"
	"strings"

	"github.com/entrhq/compass/pkg/graph"
)

// sharedGuidance is embedded in every role prompt so all variants follow the
// same conversational ground rules.
const sharedGuidance = `General rules:
- Use the conversation history and any resumed context to stay consistent
  with earlier turns.
- When you need external data, request the appropriate tool instead of
  guessing. Never fabricate records, documents, or search results.
- Respond to the user directly and completely. Do not narrate your process.`

// contextBlock renders the resumed long-term context, preferring the full
// form and falling back to the concise digest.
func contextBlock(state *graph.ConversationState) string {
	ctx := state.ResumeContext
	if ctx == "" {
		ctx = state.ResumeContextConcise
	}
	if ctx == "" {
		return ""
	}
	return fmt.Sprintf("\n\n<resumed_context>\n%s\n</resumed_context>", ctx)
}

// criteriaBlock renders the turn's success criteria when the classifier
// extracted any.
func criteriaBlock(state *graph.ConversationState) string {
	if state.SuccessCriteria == "" {
		return ""
	}
	return fmt.Sprintf("\n\n<success_criteria>\n%s\n</success_criteria>", state.SuccessCriteria)
}

// BuildGeneralPrompt is the default variant's prompt. It handles any request
// the specialized variants do not claim.
func BuildGeneralPrompt(state *graph.ConversationState) string {
	var b strings.Builder
	b.WriteString(`You are a capable assistant helping a job seeker manage their search,
applications, and professional records. Answer questions, draft and revise
text, and carry out multi-step requests.

`)
	b.WriteString(sharedGuidance)
	b.WriteString(contextBlock(state))
	b.WriteString(criteriaBlock(state))
	return b.String()
}

// BuildJobSearchPrompt steers the job search variant toward discovery work
// over external sources.
func BuildJobSearchPrompt(state *graph.ConversationState) string {
	var b strings.Builder
	b.WriteString(`You are a job search specialist. Find relevant openings, compare roles,
and summarize what you find with enough detail for the user to act on:
title, company, location, and why the role matches their situation.

Prefer fresh external results over assumptions. When the user's profile or
preferences appear in the conversation or resumed context, use them to
filter and rank results.

`)
	b.WriteString(sharedGuidance)
	b.WriteString(contextBlock(state))
	b.WriteString(criteriaBlock(state))
	return b.String()
}

// BuildCoverLetterPrompt steers the writing variant. Output is the document
// itself, not commentary about it.
func BuildCoverLetterPrompt(state *graph.ConversationState) string {
	var b strings.Builder
	b.WriteString(`You are a professional cover letter writer. Produce polished, targeted
application documents tailored to the specific role and the user's
background.

Writing rules:
- Pull concrete details from the user's records and documents when they are
  available; fetch them with tools rather than inventing experience.
- Match the tone to the employer and seniority of the role.
- Output the finished document. Only add commentary when the user asked for
  revisions or explanation.

`)
	b.WriteString(sharedGuidance)
	b.WriteString(contextBlock(state))
	b.WriteString(criteriaBlock(state))
	return b.String()
}

// BuildCRMPrompt steers the records variant toward precise, tool-grounded
// answers over stored entities.
func BuildCRMPrompt(state *graph.ConversationState) string {
	var b strings.Builder
	b.WriteString(`You are a records specialist working over the user's stored contacts,
organizations, accounts, and documents. Look up, list, cross-reference, and
summarize records accurately.

Every factual claim about a record must come from a tool result in this
conversation. If a record does not exist, say so plainly instead of
inventing one.

`)
	b.WriteString(sharedGuidance)
	b.WriteString(contextBlock(state))
	b.WriteString(criteriaBlock(state))
	return b.String()
}

// BuildScraperPrompt steers the extraction variant. It runs at temperature
// zero and bypasses evaluation, so the prompt carries the structural
// contract explicitly.
func BuildScraperPrompt(state *graph.ConversationState) string {
	var b strings.Builder
	b.WriteString(`You are a web extraction specialist. Navigate to pages, extract the
requested content, and return it as clean structured text.

Extraction rules:
- Use the browser tools to load and read pages. Never answer from memory.
- Preserve the page's factual content exactly. Do not paraphrase values,
  names, dates, or figures.
- Return only the extracted data, organized under clear headings or lists.
- If a page cannot be loaded or the content is absent, report exactly what
  failed.

`)
	b.WriteString(sharedGuidance)
	b.WriteString(contextBlock(state))
	b.WriteString(criteriaBlock(state))
	return b.String()
}
