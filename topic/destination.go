package topic

import "strings"

// Kind classifies a destination as a competing-consumer queue or a
// fan-out topic.
type Kind int

const (
	Topic Kind = iota
	Queue
)

func (k Kind) String() string {
	if k == Queue {
		return "queue"
	}
	return "topic"
}

const (
	queuePrefix = "/queue/"
	topicPrefix = "/topic/"
)

// ClassifyDestination returns the Kind implied by a destination's
// prefix. `/queue/...` is a queue, `/topic/...` is a topic, and any
// other prefix defaults to topic.
func ClassifyDestination(name string) Kind {
	if strings.HasPrefix(name, queuePrefix) {
		return Queue
	}
	return Topic
}
