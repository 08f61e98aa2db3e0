package router

import (
	"fmt"
	"strings"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/registry"
	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/schema"
)

func classifyPrompt(catalog []registry.SourceInfo, meta schema.SourceID, question string) string {
	var sources strings.Builder
	for _, s := range catalog {
		if s.ID == meta {
			continue
		}
		fmt.Fprintf(&sources, "- %s (%s)\n", s.ID, s.Label)
	}

	var b strings.Builder
	b.WriteString("You route questions for a borrower-insurance assistant. Classify the user's question and decide which insurers it concerns.\n\n")
	b.WriteString("Known insurers (use these ids):\n")
	b.WriteString(sources.String())
	b.WriteString("\nIntents:\n")
	fmt.Fprintf(&b, "- %s: a question about insurance contracts in general, or not naming any insurer\n", schema.IntentGeneral)
	fmt.Fprintf(&b, "- %s: a question naming one or more specific insurers\n", schema.IntentSpecificSubset)
	fmt.Fprintf(&b, "- %s: a greeting or small talk\n", schema.IntentGreeting)
	fmt.Fprintf(&b, "- %s: anything unrelated to borrower insurance\n", schema.IntentOffTopic)
	if meta != "" {
		fmt.Fprintf(&b, "- %s: a question about the broker itself (%s): who it is, its services, how to contact it\n", schema.IntentMetaInquiry, meta)
	}
	b.WriteString("\nReply ONLY with a JSON object of the form {\"intent\": \"<intent>\", \"sources\": [\"<id>\", ...]}.\n")
	b.WriteString("List sources only for " + schema.IntentSpecificSubset.String() + "; otherwise use an empty list.\n\n")
	fmt.Fprintf(&b, "Question: %q\n", question)
	return b.String()
}
