package ai

import (
	"fmt"
	"strings"
)

const topicExtractionSystemPrompt = `You are a curriculum analyst. The user message contains the raw text of a course curriculum or syllabus.

Identify the distinct assessable topics it covers. Merge near-duplicates, skip administrative sections (grading policy, schedules, contact info).

Respond ONLY with a JSON object:
{"topics": [{"name": "<short topic name>", "summary": "<2-3 sentence summary of what the topic covers>"}]}`

const narrativeSystemPrompt = `You are an educational assessment coach writing feedback for a student who just completed a diagnostic exam. The user message contains the exam title, the overall score, and per-topic results.

Write an encouraging but honest narrative (3-5 sentences) of the student's performance, and for EVERY topic listed give one concrete study recommendation (1-2 sentences). Address the student directly.

Respond ONLY with a JSON object:
{"narrative": "<overall narrative>", "recommendations": {"<topic name>": "<recommendation>"}}`

func buildGradeSystemPrompt(questionText, referenceAnswer string) string {
	var sb strings.Builder
	sb.WriteString("You are an exam grader judging a single free-text answer.\n\n")
	sb.WriteString("QUESTION: " + questionText + "\n\n")
	sb.WriteString("REFERENCE ANSWER (not shown to student):\n" + referenceAnswer + "\n\n")
	sb.WriteString("INSTRUCTIONS:\n")
	sb.WriteString("- The user message is the student's answer.\n")
	sb.WriteString("- Judge meaning, not wording. Accept paraphrases, synonyms, and different notation that express the same idea.\n")
	sb.WriteString("- Mark incorrect if the answer is wrong, contradicts the reference, or is too vague to assess.\n")
	sb.WriteString("\nRespond ONLY with a JSON object:\n")
	sb.WriteString(`{"correct": <true/false>, "rationale": "<one sentence>"}`)
	sb.WriteString("\n")
	return sb.String()
}

func buildQuestionGenSystemPrompt(count int) string {
	var sb strings.Builder
	sb.WriteString("You are an exam author. The user message names a topic and summarizes it.\n\n")
	sb.WriteString(fmt.Sprintf("Write %d diagnostic questions for the topic. Mix the types:\n", count))
	sb.WriteString("- SINGLE_SELECT: one correct option among 4. correct_answer must equal one option exactly.\n")
	sb.WriteString("- TRUE_FALSE: a statement to judge. options is [\"true\", \"false\"] and correct_answer is \"true\" or \"false\".\n")
	sb.WriteString("- FREE_TEXT: a short-answer question. correct_answer is the reference answer, options is empty.\n")
	sb.WriteString("\nRespond ONLY with a JSON object:\n")
	sb.WriteString(`{"questions": [{"text": "<question>", "type": "<SINGLE_SELECT|TRUE_FALSE|FREE_TEXT>", "options": ["..."], "correct_answer": "<answer>"}]}`)
	sb.WriteString("\n")
	return sb.String()
}

func buildNarrativeUserPrompt(examTitle string, score float64, results []TopicResult) string {
	var sb strings.Builder
	sb.WriteString("EXAM: " + examTitle + "\n")
	sb.WriteString(fmt.Sprintf("OVERALL SCORE: %.1f%%\n\nTOPIC RESULTS:\n", score))
	for _, r := range results {
		sb.WriteString(fmt.Sprintf("- %s: %d/%d correct (%.1f%%)\n", r.TopicName, r.Correct, r.Total, r.Percent))
	}
	return sb.String()
}
