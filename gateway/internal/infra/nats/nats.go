package nats

import (
	"context"
	"time"

	"chainpay/gateway/internal/config"
	"chainpay/gateway/internal/domain"
	"chainpay/gateway/internal/logger"
	"chainpay/pkg/nats/natsdomain"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/pkg/errors"
)

// window in which the server drops a second publish of the same job id
const duplicateWindow = 10 * time.Minute

// jetstream job queue shared by all gateway processes
type NatsInfra struct {
	*natsdomain.Ns
	consumer jetstream.Consumer
	l        logger.Logger
}

func Init(config *config.Config, log logger.Logger) (*NatsInfra, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	nc, err := nats.Connect(config.Nats.Servers,
		nats.MaxReconnects(100),
		nats.ReconnectWait(3*time.Second),
		nats.DisconnectHandler(func(nc *nats.Conn) {
			log.TemplNatsInfo("disconnected", nc.ConnectedUrl())
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.TemplNatsInfo("reconnected", nc.ConnectedUrl())
		}))
	if err != nil {
		return nil, errors.Wrap(err, "nats connect")
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, errors.Wrap(err, "jetstream")
	}

	stream, err := InitJobsStream(ctx, js)
	if err != nil {
		nc.Close()
		return nil, errors.Wrap(err, "jobs stream")
	}

	consumer, err := initConsumer(ctx, stream)
	if err != nil {
		nc.Close()
		return nil, errors.Wrap(err, "jobs consumer")
	}

	log.TemplNatsInfo("connected", nc.ConnectedUrl())
	return &NatsInfra{Ns: &natsdomain.Ns{Nc: nc, Js: js}, consumer: consumer, l: log}, nil
}

func InitJobsStream(ctx context.Context, js jetstream.JetStream) (jetstream.Stream, error) {
	return js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       natsdomain.JobsStream,
		Subjects:   natsdomain.SubjectsJetStream[:],
		Retention:  jetstream.WorkQueuePolicy,
		Duplicates: duplicateWindow,
	})
}

// one durable consumer for all processes, every job is handed to one of them
func initConsumer(ctx context.Context, stream jetstream.Stream) (jetstream.Consumer, error) {
	return stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:        natsdomain.JobsDurable,
		AckPolicy:      jetstream.AckExplicitPolicy,
		MaxDeliver:     1,
		FilterSubjects: natsdomain.SubjectsJetStream[:],
	})
}

func (n *NatsInfra) Publish(ctx context.Context, job *domain.Jobs) error {
	duplicate, err := n.JsPublishMsgId(ctx, natsdomain.JobSubject(string(job.Kind)), EncodeJob(job), job.ID)
	if err != nil {
		return err
	}
	if duplicate {
		n.l.Debug("duplicate job publish dropped", "job_id", job.ID)
	}
	return nil
}

// blocks until ctx is done. messages are acked on receipt: a job is run
// at most once, the job row records what happened to it
func (n *NatsInfra) Consume(ctx context.Context, handler func(ctx context.Context, job *domain.Jobs)) error {
	cc, err := n.consumer.Consume(func(msg jetstream.Msg) {
		if err := msg.Ack(); err != nil {
			n.l.Error("job ack failed", logger.LS_NATS, false, "subject", msg.Subject(), "error", err.Error())
			return
		}

		job, err := DecodeJob(msg.Subject(), msg.Data())
		if err != nil {
			n.l.Error("invalid job message", logger.LS_NATS, false, "subject", msg.Subject(), "error", err.Error())
			return
		}

		handler(ctx, job)
	})
	if err != nil {
		return errors.Wrap(err, "consume jobs")
	}

	<-ctx.Done()
	cc.Stop()
	return nil
}

func (n *NatsInfra) Close() {
	if err := n.Drain(); err != nil {
		n.l.TemplNatsError("drain failed", n.Nc.ConnectedUrl(), err)
	}
}
