package synthesis

import "fmt"

const synthesisPromptTemplate = `You are a borrower-insurance expert writing the final answer for an advisor.
Below are passages extracted from several insurers' contracts, each introduced by its insurer.

%s

Instructions:
1. Start with a direct, short answer to the question.
2. Then give each insurer's position that had relevant information, naming the insurer.
3. For each insurer that found nothing, state briefly that its contract has no information on this point.
4. Make no assumption and add nothing that is not in the passages.
5. Answer in the language of the question.

Question: "%s"`

func synthesisPrompt(question, blocks string) string {
	return fmt.Sprintf(synthesisPromptTemplate, blocks, question)
}
