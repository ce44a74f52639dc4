package journal

import (
	"github.com/tarungka/sluice/stream"
)

// Observer returns an emit observer for stream.WithEmitObserver that
// journals every control element the task emits. Journaling is best
// effort; append errors are logged and the stream keeps moving.
func (j *Journal) Observer(taskID string) func(stream.Element) {
	return func(element stream.Element) {
		var ev Event
		switch e := element.(type) {
		case stream.Watermark:
			ev = Event{
				TaskID:  taskID,
				Kind:    EventWatermark,
				Channel: int32(e.Channel),
				Value:   e.Value.Millis(),
			}
		case stream.WatermarkStatus:
			ev = Event{
				TaskID:  taskID,
				Kind:    EventStatus,
				Channel: int32(e.Channel),
				Value:   int64(e.Value),
			}
		default:
			return
		}
		if _, err := j.Append(ev); err != nil {
			j.logger.Err(err).Str("task", taskID).Msg("journaling emitted event failed")
		}
	}
}
