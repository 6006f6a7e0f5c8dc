package instance

import "github.com/webitel/im-thread-gateway/internal/domain/event"

func heartbeatEvent(timestamp string) *event.Event {
	return event.NewHeartbeat(timestamp)
}
