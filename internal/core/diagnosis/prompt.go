package diagnosis

import (
	"fmt"
	"strings"

	"github.com/vectorscan/fault-diagnosis/internal/core/domain"
)

const systemPrompt = `You are a marine engineering assistant diagnosing shipboard equipment faults.
Reply with exactly one JSON object and nothing else. No markdown, no extra keys.
Keys:
diagnosis (string, one sentence),
confidence (one of "High", "Medium", "Low"),
root_causes (array of objects with keys cause (string) and probability (one of "High", "Medium", "Low")),
resolution_plan (array of strings, ordered steps),
preventative_actions (array of strings),
disclaimer (string).`

const maxPromptFault = 2000

// buildDiagnosisPrompt quotes the caller's own wording, whitespace-collapsed and
// capped at maxPromptFault runes. The corrected matching copy is not sent.
func buildDiagnosisPrompt(q domain.FaultQuery, block ContextBlock) string {
	fault := strings.Join(strings.Fields(q.RawText), " ")
	if fault == "" {
		fault = q.NormalizedText
	}
	if runes := []rune(fault); len(runes) > maxPromptFault {
		fault = string(runes[:maxPromptFault])
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Fault report:\n%s\n\n", fault)
	if q.Equipment != "" && q.Equipment != domain.EquipmentUnknown {
		fmt.Fprintf(&b, "Inferred equipment: %s\n\n", q.Equipment)
	}
	if block.Empty() {
		b.WriteString("No similar historical faults are available. Diagnose from general marine engineering knowledge and lower your confidence accordingly.\n")
	} else {
		b.WriteString("Similar historical faults, most similar first:\n")
		b.WriteString(block.Text)
		b.WriteString("\n\nBase the diagnosis on these records where they apply.\n")
	}
	return b.String()
}
