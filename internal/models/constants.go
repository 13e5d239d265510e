package models

const (
	ContextSeparator = "\n---\n"
	ThinkTag         = `(?s)<think>.*?</think>`
	ErrorPrefix      = "Error: "
)

// Prompt templates are Go templates filled through langchaingo prompts.
var (
	ExtractPromptTemplate = `Here is the invoice content:

{{.document}}

User prompt: {{.prompt}}

Extract and provide the requested information.`

	ChatPromptTemplate = `You are a helpful assistant answering questions about an uploaded document.
Use only the document context below. If the answer is not in the context, say that the document does not contain it.

<context>
{{.context}}
</context>

<history>
{{.history}}
</history>

Question: {{.question}}
Answer:`
)
