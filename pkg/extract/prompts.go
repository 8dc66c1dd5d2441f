package extract

import (
	"fmt"
	"strings"
)

const extractionSystemPrompt = `You extract business process elements from procedure documents (policies, manuals, regulations) so they can be modelled as BPMN processes and DMN decisions.

Extract from the text:
1. processes: business processes or procedures.
2. tasks: individual activities ("approve", "review", "register", "notify", "report"...).
3. roles: actors performing tasks (officers, approvers, reviewers, departments, positions, systems, external agencies).
4. gateways: decision points or conditions ("if", "otherwise", "except when", "where necessary").
5. events: start, end or intermediate triggers ("upon receipt of a request", "after submission", "periodically", "on completion").
6. decisions: business decisions with their input_data and output_data and the related_role making them.
7. rules: condition/result pairs of a decision (decision, when, then, confidence between 0 and 1).

Also extract relationships:
8. task_role_mappings: task_name and role_name of the role performing it.
9. task_process_mappings: task_name and process_name of the process containing it.
10. sequence_flows: from_task, to_task and an optional condition. Numbered steps, "next", "then", "after" and similar wording describe sequence.

For tasks provide task_type ("human", "agent" or "system"), order (1, 2, 3... within the process), parent_process, performer_role, next_task and previous_task where the text allows it.

Keep entity names in the language of the document. Use the same name every time the same entity is mentioned. Answer with a single JSON object holding one array per element type; use empty arrays when nothing is found.`

const knownEntitiesTemplate = `Entities already extracted from earlier parts of this document:

%s
%s
Rules for reusing them:
- When a task belongs to a process listed above, use exactly that process name as parent_process.
- Do not create a new process for text that describes steps of a listed process; steps such as "order processing" or "goods receipt inspection" are tasks, not processes.
- Create a new process only when the text clearly defines a different business process.
- Use exactly the listed name for roles that already exist; never create a variant with a slightly different name.
`

// buildPrompt renders the user prompt for one chunk. The known entity block
// is omitted on the first chunk.
func buildPrompt(text string, knownProcesses, knownRoles []string, section string) string {
	var b strings.Builder
	if len(knownProcesses) > 0 || len(knownRoles) > 0 {
		b.WriteString(fmt.Sprintf(
			knownEntitiesTemplate,
			bulletList("Processes", knownProcesses),
			bulletList("Roles", knownRoles),
		))
		b.WriteString("\n")
	}
	if section != "" {
		b.WriteString("Section: ")
		b.WriteString(section)
		b.WriteString("\n\n")
	}
	b.WriteString("Text to analyze:\n")
	b.WriteString(text)
	return b.String()
}

func bulletList(title string, names []string) string {
	if len(names) == 0 {
		return title + ": none\n"
	}
	var b strings.Builder
	b.WriteString(title)
	b.WriteString(":\n")
	for _, n := range names {
		b.WriteString("- ")
		b.WriteString(n)
		b.WriteString("\n")
	}
	return b.String()
}
