package orchestration

import "fmt"

type TopicBuilder struct {
	prefix string
	runID  string
}

func NewTopicBuilder(prefix, runID string) *TopicBuilder {
	if prefix == "" {
		prefix = "fl"
	}

	return &TopicBuilder{
		prefix: prefix,
		runID:  runID,
	}
}

func (tb *TopicBuilder) BaseTopic() string {
	return fmt.Sprintf("%s/%s", tb.prefix, tb.runID)
}

func (tb *TopicBuilder) RoundStartedTopic(round int) string {
	return fmt.Sprintf("%s/rounds/%d/started", tb.BaseTopic(), round)
}

func (tb *TopicBuilder) ClientTrainedTopic(round, client int) string {
	return fmt.Sprintf("%s/rounds/%d/clients/%d", tb.BaseTopic(), round, client)
}

func (tb *TopicBuilder) RoundCompletedTopic(round int) string {
	return fmt.Sprintf("%s/rounds/%d/completed", tb.BaseTopic(), round)
}

func (tb *TopicBuilder) RoundFailedTopic(round int) string {
	return fmt.Sprintf("%s/rounds/%d/failed", tb.BaseTopic(), round)
}

func (tb *TopicBuilder) RunCompletedTopic() string {
	return tb.BaseTopic() + "/completed"
}

func (tb *TopicBuilder) AllTopics() string {
	return tb.BaseTopic() + "/#"
}

// AllRunsTopic matches every run under prefix.
func AllRunsTopic(prefix string) string {
	if prefix == "" {
		prefix = "fl"
	}

	return prefix + "/+/#"
}
