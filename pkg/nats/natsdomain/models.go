package natsdomain

import (
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// nats struct
type Ns struct {
	Nc *nats.Conn
	Js jetstream.JetStream
}

// job message. the job row is the source of truth, the message only points to it
type JobMsg struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Chain     string    `json:"chain"`
	Args      string    `json:"args,omitempty"` // json
	CreatedAt time.Time `json:"created_at"`
}
