package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/unisco/ticketlearn/pkg/errors"
)

const topicPromptTemplate = `Extract the core topic of the support conversation below in one short phrase (at most 12 words). Name the concrete business scenario; never answer with a generic phrase like "email handling" or "ticket reply". Output only the phrase.

Conversation:
%s`

// maxTopicInput bounds the conversation text sent for topic extraction.
const maxTopicInput = 30000

var genericTopics = []string{"email handling", "ticket reply", "email", "reply", "ticket"}

// TopicExtractor derives a conversation topic through the completion
// service. It retries once when the model answers with a generic phrase.
type TopicExtractor struct {
	completer Completer
}

// NewTopicExtractor creates a TopicExtractor backed by the completer.
func NewTopicExtractor(completer Completer) *TopicExtractor {
	return &TopicExtractor{completer: completer}
}

// ExtractTopic implements sample.TopicExtractor.
func (t *TopicExtractor) ExtractTopic(ctx context.Context, conversation string) (string, error) {
	if len(conversation) > maxTopicInput {
		conversation = conversation[:maxTopicInput]
	}

	topic, err := t.extractOnce(ctx, conversation)
	if err != nil {
		return "", err
	}
	if isGenericTopic(topic) {
		topic, err = t.extractOnce(ctx, conversation)
		if err != nil {
			return "", err
		}
	}
	return topic, nil
}

func (t *TopicExtractor) extractOnce(ctx context.Context, conversation string) (string, error) {
	out, err := t.completer.Complete(ctx, fmt.Sprintf(topicPromptTemplate, conversation))
	if err != nil {
		return "", errors.Wrap(err, errors.EvaluationFailed, "topic extraction")
	}
	return strings.TrimSpace(out), nil
}

func isGenericTopic(topic string) bool {
	lower := strings.ToLower(topic)
	for _, generic := range genericTopics {
		if lower == generic {
			return true
		}
	}
	return false
}
