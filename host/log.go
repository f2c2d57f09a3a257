package host

import (
	"context"
	"log"
)

// LogMessages logs the alerts sent to b.ToControl until ctx is done. Meter
// readings are logged too if peaks is set. It is meant to run on its own
// goroutine, as the only reader of b.ToControl.
func LogMessages(ctx context.Context, b *Broker, peaks bool) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-b.ToControl:
			if msg.HasAlert {
				log.Printf("[%s] %s: %s\n", msg.Alert.Priority, msg.Alert.Name, msg.Alert.Message)
			}
			if msg.HasPeaks && peaks {
				p := msg.Peaks[PeakMomentary]
				log.Printf("[meter] frame %d: peak %.1f dB / %.1f dB\n", msg.Frame, p[0], p[1])
			}
		}
	}
}
