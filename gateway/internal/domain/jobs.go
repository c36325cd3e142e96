package domain

import "time"

type JobKind string

const (
	JOB_SCAN           JobKind = "scan" // scan + confirm
	JOB_SWEEP          JobKind = "sweep"
	JOB_REAP           JobKind = "reap"
	JOB_WEBHOOK_RETRY  JobKind = "webhook_retry"
	JOB_PRUNE          JobKind = "prune"
	JOB_SWEEP_ADDRESS  JobKind = "sweep_address"
	JOB_PROCESS        JobKind = "process_payment"
	JOB_SEND_WEBHOOK   JobKind = "send_webhook"
	JOB_CUSTOM_WEBHOOK JobKind = "custom_webhook"
)

var JobKinds = [...]JobKind{JOB_SCAN, JOB_SWEEP, JOB_REAP, JOB_WEBHOOK_RETRY, JOB_PRUNE, JOB_SWEEP_ADDRESS, JOB_PROCESS, JOB_SEND_WEBHOOK, JOB_CUSTOM_WEBHOOK}

func (k JobKind) IsValid() bool {
	for _, kind := range JobKinds {
		if kind == k {
			return true
		}
	}
	return false
}

// periodic cycles, at most one run per kind and chain at a time
func (k JobKind) IsCycle() bool {
	switch k {
	case JOB_SCAN, JOB_SWEEP, JOB_REAP, JOB_WEBHOOK_RETRY, JOB_PRUNE:
		return true
	}
	return false
}

type JobStatus uint8

const (
	JOB_STATUS_QUEUED JobStatus = iota
	JOB_STATUS_RUNNING
	JOB_STATUS_SUCCEEDED
	JOB_STATUS_FAILED
	JOB_STATUS_TIMED_OUT
	JOB_STATUS_SKIPPED
)

var JobStatuses = [...]string{"queued", "running", "succeeded", "failed", "timed_out", "skipped"}

func (s JobStatus) ToString() string {
	if int(s) >= len(JobStatuses) {
		return "unknown"
	}
	return JobStatuses[s]
}

func (s JobStatus) IsFinished() bool {
	return s >= JOB_STATUS_SUCCEEDED
}

type Jobs struct {
	ID         string    `gorm:"primaryKey;size:128"`
	Kind       JobKind   `gorm:"size:32;not null"`
	Chain      string    `gorm:"size:64"`
	Args       string    `gorm:"type:text"` // json JobArgs
	Status     JobStatus `gorm:"type:smallint;not null"`
	Error      string    `gorm:"type:text"`
	Result     string    `gorm:"type:text"`
	StartedAt  *time.Time
	FinishedAt *time.Time
	CreatedAt  time.Time `gorm:"index"`
}

// arguments of manual jobs
type JobArgs struct {
	Address   string         `json:"address,omitempty"`
	PaymentID string         `json:"payment_id,omitempty"`
	Event     string         `json:"event,omitempty"`
	Url       string         `json:"url,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Secret    string         `json:"secret,omitempty"`
}
