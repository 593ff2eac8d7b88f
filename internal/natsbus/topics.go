package natsbus

import "fmt"

// Topic patterns for NATS pub/sub communication.

// TopicCompletion is the request/reply subject an agent-completion provider
// for the given role listens on.
func TopicCompletion(role string) string {
	return fmt.Sprintf("completion.%s", role)
}

func TopicEventsWorkflow(workflowID string) string {
	return fmt.Sprintf("events.workflow.%s", workflowID)
}

func TopicEventsAgent(role string) string {
	return fmt.Sprintf("events.agent.%s", role)
}

const (
	TopicEventsAll          = "events.>"
	TopicEventsWorkflowAll  = "events.workflow.*"
	TopicEventsScheduledRun = "events.scheduler.run"
)
