package models

const (
	ContextSeparator = "\n\n"
	ThinkTag         = `(?s)<think>.*?</think>`
	WordRegex        = `[\p{L}\p{N}_]+`

	MaxContextTokens = 30000
	ReservedTokens   = 1500
	CharsPerToken    = 4
	// MaxCitationTitles caps how many cited titles are followed per upload.
	MaxCitationTitles = 20

	PrimaryHeader  = "Primary Document:\n"
	CitationHeader = "Cited Paper (%s):\n"

	// LowTrustTier is the open-access status whose links are usually paywalled.
	LowTrustTier = "BRONZE"

	BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	FetchReferer     = "https://www.semanticscholar.org/"

	CitationInstruction = "List the titles of papers cited in the references section of the document."
	RefusalAnswer       = "I don't have enough information in the provided documents to answer this question."

	FallbackMatchPreamble   = "Here's what I found in your document:\n\n"
	FallbackContextPreamble = "Based on your document, here's the relevant information:\n\n"
	FallbackContextChars    = 500

	AnswerErrorPrefix = "I encountered an error while trying to answer your question: "
	NoContentAnswer   = "I couldn't find any relevant information in your documents to answer this question."

	DefaultSessionTitle = "Chat about %s"
)

var (
	CitationPromptTemplate = `<document>
%s
</document>
%s
Answer with one title per line and nothing else.
`

	AnswerPromptTemplate = `You are a renowned professor with decades of experience in academic research, skilled at explaining complex concepts to non-experts. Your task is to answer the user's question based primarily on the full text of the primary research paper provided in the context, supplemented by relevant excerpts from cited papers. The primary document is the main source of information, while cited papers provide supporting details, especially for questions about how the current paper builds on past work.

CONTEXT:
{{.context}}

USER QUESTION:
{{.query}}

When answering:
- Base your answer primarily on the primary document, using its full text to provide comprehensive and accurate information.
- Use the cited papers' excerpts to supplement your answer, particularly when explaining how the current paper builds on or relates to previous work.
- Explain concepts as you would to a curious student with no prior knowledge of the field, using simple language and analogies where helpful.
- If the question relates to contributions from past work, summarize the relevant cited papers' contributions based on the provided excerpts.
- If the answer is not contained in the context, say: "` + RefusalAnswer + `"
- Do not use external knowledge or make up information. Base your answer solely on the provided context.
- Keep your response concise, informative, and directly related to the question.
`
)
