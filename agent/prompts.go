package agent

import "fmt"

const extractPromptTemplate = `You are an insurance contract analyst for %s. Your only task is to find, in the contract text below, the passage that best answers the user's question.
Never invent an answer and never use outside knowledge.

Rules:
1. Read the whole text.
2. If you find a relevant passage, quote it word for word.
3. If nothing answers the question, reply exactly: %s
Reply ONLY with the passage or with that exact marker.

--- CONTRACT TEXT ---
%s
--- END OF TEXT ---

Question: %s`

const directPromptTemplate = `You answer questions about %s using only the reference document below.
Answer in the language of the question, clearly and concisely.

--- REFERENCE DOCUMENT ---
%s
--- END OF DOCUMENT ---

Question: %s`

func extractPrompt(label, sentinel, corpus, question string) string {
	return fmt.Sprintf(extractPromptTemplate, label, sentinel, corpus, question)
}

func directPrompt(label, corpus, question string) string {
	return fmt.Sprintf(directPromptTemplate, label, corpus, question)
}
