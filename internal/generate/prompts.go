package generate

import (
	"fmt"
	"strings"

	"github.com/vedanta-labs/vaidya/internal/models"
)

// structuredSchema is the exact JSON shape the structured diagnosis mode
// must return. Key names line up with models.DiagnosisReport.
const structuredSchema = `{
  "dosha": "...",
  "mechanism": "...",
  "symptoms": ["...", "..."],
  "management": ["...", "..."],
  "citations": ["chunk_id_1", "chunk_id_2"]
}`

// FormatEvidence renders reranked hits as numbered sources for prompting.
// Source numbers are 1-based positions, not chunk ids; models cite more
// reliably against small dense numbers.
func FormatEvidence(hits []*models.RetrievalHit) string {
	var b strings.Builder
	for i, hit := range hits {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Source %d:\n%s", i+1, hit.Chunk.Text)
	}
	return b.String()
}

// GatheringPrompt asks the model for exactly one clarifying question. Age
// and gender come first; without them no dosha assessment is reliable.
func GatheringPrompt(history, evidence, question string) string {
	return fmt.Sprintf(`SYSTEM:
You are an Ayurvedic clinical assistant.

CONVERSATION HISTORY:
%s

RETRIEVED SOURCES:
%s

CURRENT USER INPUT:
%s

INSTRUCTIONS:
1. Do not include citations in your response.
2. Every question you ask must work toward narrowing down a diagnosis.
3. CRITICAL FIRST STEP: check the conversation history. If the patient's age and gender are not known yet, ask for BOTH naturally before anything else. Do not proceed with symptom questions until you have them.
4. Once age and gender are known, ask ONLY ONE most important clarifying question.
5. Do not provide treatments or a final answer yet.
6. Gather information about lifestyle, diet, medical history, and habits.
7. Ground your question strictly in the provided sources and history.
8. Only ask questions that make sense for this patient; do not ask a male patient about menstruation.

Answer:`, history, evidence, question)
}

// DiagnosisSummaryPrompt asks for the user-facing explanation of a
// validated diagnosis report.
func DiagnosisSummaryPrompt(history, evidence, report string) string {
	return fmt.Sprintf(`SYSTEM:
You are an Ayurvedic clinical assistant.

CONVERSATION HISTORY:
%s

RETRIEVED SOURCES:
%s

VALIDATED DIAGNOSIS REPORT:
%s

INSTRUCTIONS:
1. Do not include citations in your response.
2. Summarize the diagnosis professionally, in plain language the patient can understand. Avoid medical jargon.
3. Use very minimal markdown. No bold, no headers.
4. Explain the patient's current condition and where they can improve, grounded in the sources and history.
5. End by asking whether the patient would like to hear remedies, do's, and don'ts.

Answer:`, history, evidence, report)
}

// RemediesPrompt asks for remedy content grounded strictly in the sources.
func RemediesPrompt(history, evidence, question string) string {
	return fmt.Sprintf(`SYSTEM:
You are an Ayurvedic clinical assistant.

CONVERSATION HISTORY:
%s

RETRIEVED SOURCES:
%s

CURRENT USER INPUT:
%s

INSTRUCTIONS:
1. Do not include citations in your response.
2. Extract Ayurvedic remedies, treatments, and detailed do's and don'ts directly from the retrieved sources.
3. If foods or habits are recommended or forbidden, list them clearly.
4. No bold, no complex headers. Standard numbering and single line breaks.
5. Use only the given sources. If the sources do not cover something, say so.
6. Keep it clear, concise, and free of medical jargon.

Answer:`, history, evidence, question)
}

// ClosingPrompt handles post-diagnosis follow-up chat.
func ClosingPrompt(history, evidence, question string) string {
	return fmt.Sprintf(`SYSTEM:
You are an Ayurvedic clinical assistant.

CONVERSATION HISTORY:
%s

RETRIEVED SOURCES:
%s

CURRENT USER INPUT:
%s

INSTRUCTIONS:
1. Do not include citations in your response.
2. Provide a professional concluding response grounded strictly in the provided sources.

Answer:`, history, evidence, question)
}

// StructuredDiagnosisPrompt asks for a machine-readable diagnosis report.
// The same prompt is reused verbatim across validation retries.
func StructuredDiagnosisPrompt(history, evidence string) string {
	return fmt.Sprintf(`SYSTEM:
You are an expert Ayurvedic clinical diagnostic assistant.

STRICT RULES:
1. Use ONLY the provided sources.
2. If the answer is not found in the sources, use "Not found in provided texts." as the field value.
3. Respond ONLY in valid JSON.
4. Follow this exact schema:

%s

No markdown. No extra commentary. No explanations. Return VALID JSON only.

CONVERSATION HISTORY:
%s

RETRIEVED SOURCES:
%s`, structuredSchema, history, evidence)
}

// PlainDiagnosisPrompt is the unstructured fallback when structured output
// never validated. The DIAGNOSIS/REASONING shape still works for
// verification and for the user-facing summary.
func PlainDiagnosisPrompt(history, evidence string) string {
	return fmt.Sprintf(`SYSTEM:
You are an Ayurvedic clinical diagnostic expert.
Based ON THE RETRIEVED SOURCES and the conversation history, provide a potential diagnosis and the reasoning behind it.

CONVERSATION HISTORY:
%s

RETRIEVED SOURCES:
%s

Format your output exactly like this:
DIAGNOSIS: [Name of condition]
REASONING: [Step by step reasoning based on symptoms and sources]`, history, evidence)
}

// VerificationPrompt asks a senior-reviewer persona for a binary YES/NO
// check of the diagnosis against the gathered facts.
func VerificationPrompt(history, report string) string {
	return fmt.Sprintf(`SYSTEM:
You are a senior Ayurvedic medical reviewer.
Review the following diagnosis report against the full conversation history.
Make sure you understand the patient's age and gender from the history and weigh them in your review.

CONVERSATION HISTORY:
%s

DIAGNOSIS REPORT:
%s

Does this diagnosis make sense and is it sufficiently supported by the facts gathered from the patient?
Respond with ONLY one word: "YES" or "NO".`, history, report)
}

// RewritePrompt asks the model to expand an elliptical follow-up into a
// standalone search query.
func RewritePrompt(history, question string) string {
	return fmt.Sprintf(`Given the following conversation history and a new sub-question, rewrite the sub-question into a standalone, descriptive search query that captures the user's information need.

CONVERSATION HISTORY:
%s

NEW QUESTION:
%s

INSTRUCTIONS:
1. If the new question is shorthand (like "?", "tell me more", or "what else?"), expand it based on what was just discussed.
2. If it is already a complete question, refine it for better search results.
3. If it is a greeting or social remark, return it as is.
4. ONLY output the rewritten search query. No preamble.

Rewritten Query:`, history, question)
}

// SystemClassifierPrompt asks which body system the user's symptoms
// concern, as bare JSON. Used to steer metadata-filtered retrieval.
func SystemClassifierPrompt(utterance string) string {
	return fmt.Sprintf(`Analyze the user symptoms and determine the primary affected body system.

Choose one:
circulatory, digestive, respiratory, musculoskeletal, nervous, urinary, reproductive, systemic, other

Return ONLY JSON with no additional text:

{
  "primary_system": ""
}

User input:
%s`, utterance)
}

// RemedyQuery builds the retrieval query used once the patient consents to
// hearing remedies for the diagnosed condition.
func RemedyQuery(condition string) string {
	if strings.TrimSpace(condition) == "" {
		condition = "the condition"
	}
	return fmt.Sprintf("Ayurvedic remedies, treatments, foods, habits (do's and don'ts) for %s", condition)
}
