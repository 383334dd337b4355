// Package notify delivers rendered reminder texts to recipients. The engine
// treats every send error as retryable; permanent-failure policies belong
// above this interface.
package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Gateway delivers one text to one recipient.
type Gateway interface {
	Send(ctx context.Context, recipientID int64, text string) error
}

// LogGateway logs instead of sending. Used for token-less local runs.
type LogGateway struct {
	Log *logrus.Entry
}

func (g *LogGateway) Send(_ context.Context, recipientID int64, text string) error {
	g.Log.WithField("recipient", recipientID).Infof("notification: %s", text)
	return nil
}
