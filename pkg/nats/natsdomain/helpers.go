package natsdomain

import (
	"context"

	"github.com/nats-io/nats.go/jetstream"
)

func (ns *Ns) JsPublish(ctx context.Context, subj string, jsonMsg []byte) error {
	_, err := ns.jsPublishOpts(ctx, subj, jsonMsg)
	return err
}

// jetstream publish with msgId. a second publish of the same id inside
// the stream duplicate window is dropped by the server, duplicate is true then
func (ns *Ns) JsPublishMsgId(ctx context.Context, subj string, jsonMsg []byte, msgId string) (duplicate bool, err error) {
	ack, err := ns.jsPublishOpts(ctx, subj, jsonMsg, jetstream.WithMsgID(msgId))
	if err != nil {
		return false, err
	}
	return ack.Duplicate, nil
}

func (ns *Ns) jsPublishOpts(ctx context.Context, subj string, jsonMsg []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	return ns.Js.Publish(ctx, subj, jsonMsg, opts...)
}

func (ns *Ns) Drain() error {
	if ns.Nc == nil {
		return nil
	}
	return ns.Nc.Drain()
}
