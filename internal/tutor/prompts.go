package tutor

import "fmt"

// The streaming prompts all follow the same shape: free-text first,
// then the separator on its own line, then one JSON object. The decoder
// depends on that ordering, not on the model honoring it perfectly.

func topicsPrompt(subject string) string {
	return fmt.Sprintf(`You are a tutor helping a student explore %q.

Write a short, encouraging overview of the subject (2-3 sentences).

Then output a line containing only:
---

Then output a single JSON object, nothing else, of the form:
{"topics": [{"name": "...", "type": "...", "detail": "..."}]}

Include exactly 5 topics. "type" is a one-word category (e.g. "concept",
"skill", "history"). "detail" is one sentence on why the topic matters.`, subject)
}

func questionsPrompt(topic string) string {
	return fmt.Sprintf(`You are a tutor writing practice questions about %q.

Write a brief explanation of the key ideas a student should know (3-4
sentences).

Then output a line containing only:
---

Then output a single JSON object, nothing else, of the form:
{"questions": [{"question": "...", "type": "...", "detail": "..."}]}

Include exactly 5 questions. "type" is a one-word difficulty or style
(e.g. "recall", "applied", "challenge"). "detail" is one sentence on
what the question tests.`, topic)
}

func explainPrompt(topic string) string {
	return fmt.Sprintf(`You are a tutor. Explain %q to a student.

Respond with a single JSON object, nothing else, of the form:
{"explanation": "...", "summary": "..."}

"explanation" is a thorough explanation in plain language (markdown
allowed). "summary" is a 1-2 sentence recap.`, topic)
}
