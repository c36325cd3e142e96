package nats

import (
	"fmt"

	"chainpay/gateway/internal/domain"
	"chainpay/pkg/nats/natsdomain"
	"chainpay/pkg/utils"
)

// job row -> message body
func EncodeJob(job *domain.Jobs) []byte {
	// JobMsg holds strings and a time only
	return utils.MustMarshal(natsdomain.JobMsg{
		ID:        job.ID,
		Kind:      string(job.Kind),
		Chain:     job.Chain,
		Args:      job.Args,
		CreatedAt: job.CreatedAt,
	})
}

// message body -> job. the kind of the body must match the subject
func DecodeJob(subject string, data []byte) (*domain.Jobs, error) {
	msg, err := utils.Unmarshal[natsdomain.JobMsg](data)
	if err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}

	if msg.ID == "" {
		return nil, fmt.Errorf("decode job: empty id")
	}

	kind := domain.JobKind(msg.Kind)
	if !kind.IsValid() {
		return nil, fmt.Errorf("decode job %s: unknown kind %q", msg.ID, msg.Kind)
	}
	if subjKind := natsdomain.KindFromSubject(subject); subjKind != msg.Kind {
		return nil, fmt.Errorf("decode job %s: kind %q on subject %s", msg.ID, msg.Kind, subject)
	}

	return &domain.Jobs{
		ID:        msg.ID,
		Kind:      kind,
		Chain:     msg.Chain,
		Args:      msg.Args,
		Status:    domain.JOB_STATUS_QUEUED,
		CreatedAt: msg.CreatedAt,
	}, nil
}
