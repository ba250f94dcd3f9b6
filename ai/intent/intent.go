// Package intent classifies user utterances into the closed set of
// conversational intents the router branches on.
package intent

// Intent is the enumerated category assigned to an utterance.
type Intent string

const (
	IntentTaskCreation          Intent = "task_creation"
	IntentTaskQuery             Intent = "task_query"
	IntentTaskUpdate            Intent = "task_update"
	IntentClarificationResponse Intent = "clarification_response"
	IntentGeneralChat           Intent = "general_chat"
)

// IsValid reports whether s is one of the five enumerated intents.
func IsValid(s string) bool {
	switch Intent(s) {
	case IntentTaskCreation, IntentTaskQuery, IntentTaskUpdate,
		IntentClarificationResponse, IntentGeneralChat:
		return true
	}
	return false
}

// IsTaskRelated reports whether the intent reaches the task pipeline.
func (i Intent) IsTaskRelated() bool {
	return i == IntentTaskCreation || i == IntentTaskQuery || i == IntentTaskUpdate
}
