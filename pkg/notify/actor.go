// Package notify delivers customer e-mails off the request path. Requests
// hand a message to an actor and return at once; delivery failures are
// only logged.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/storefront/pkg/mail"
	"go.uber.org/zap"
)

const sendTimeout = 15 * time.Second

// SendEmail asks the actor to deliver one message.
type SendEmail struct {
	Message mail.Message
}

// EmailActor handles notifications
type EmailActor struct {
	sender mail.Sender
	logger *zap.Logger
}

func (a *EmailActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *SendEmail:
		sendCtx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		if err := a.sender.Send(sendCtx, msg.Message); err != nil {
			a.logger.Warn("Failed to send email",
				zap.String("recipient", msg.Message.To),
				zap.String("subject", msg.Message.Subject),
				zap.Error(err))
			return
		}
		a.logger.Info("Email sent",
			zap.String("recipient", msg.Message.To),
			zap.String("subject", msg.Message.Subject))

	case *actor.Started:
		a.logger.Info("Email actor started")

	case *actor.Stopping:
		a.logger.Info("Email actor stopping")
	}
}

type Dispatcher struct {
	system *actor.ActorSystem
	pid    *actor.PID
	logger *zap.Logger
}

// NewDispatcher spawns the e-mail actor on a dedicated actor system.
func NewDispatcher(sender mail.Sender, logger *zap.Logger) (*Dispatcher, error) {
	system := actor.NewActorSystem()

	props := actor.PropsFromProducer(func() actor.Actor {
		return &EmailActor{sender: sender, logger: logger.Named("email-actor")}
	})
	pid, err := system.Root.SpawnNamed(props, "email-actor")
	if err != nil {
		return nil, fmt.Errorf("failed to spawn email actor: %w", err)
	}

	return &Dispatcher{system: system, pid: pid, logger: logger}, nil
}

// Notify queues msg without waiting for delivery.
func (d *Dispatcher) Notify(msg mail.Message) {
	if msg.To == "" {
		d.logger.Warn("Dropping email without recipient", zap.String("subject", msg.Subject))
		return
	}
	d.system.Root.Send(d.pid, &SendEmail{Message: msg})
}

// Stop drains queued messages, then stops the actor system.
func (d *Dispatcher) Stop() {
	if err := d.system.Root.PoisonFuture(d.pid).Wait(); err != nil {
		d.logger.Warn("Email actor did not stop cleanly", zap.Error(err))
	}
	d.system.Shutdown()
}
