package messaging

import (
	"errors"

	"github.com/nats-io/nats.go"
)

const updatesStream = "UPDATES"

// EnsureStream creates (or validates) the stream carrying relayed task
// updates on hooks.update.>
func EnsureStream(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo(updatesStream); err != nil {
		if errors.Is(err, nats.ErrStreamNotFound) {
			if _, addErr := js.AddStream(&nats.StreamConfig{
				Name:      updatesStream,
				Subjects:  []string{"hooks.update.>"},
				Retention: nats.LimitsPolicy,
				Storage:   nats.FileStorage,
				Replicas:  1,
			}); addErr != nil {
				return addErr
			}
		} else {
			return err
		}
	}
	return nil
}
