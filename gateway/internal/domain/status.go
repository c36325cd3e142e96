package domain

import (
	"errors"
	"fmt"
)

type Status uint8

const (
	STATUS_PENDING Status = iota
	STATUS_DETECTED
	STATUS_CONFIRMED
	STATUS_SETTLED
	STATUS_EXPIRED
	STATUS_FAILED
)

var Statuses = [...]string{"pending", "detected", "confirmed", "settled", "expired", "failed"}

var ErrIllegalTransition = errors.New("illegal status transition")

// allowed transitions, anything else is rejected
var transitions = map[Status][]Status{
	STATUS_PENDING:   {STATUS_DETECTED, STATUS_EXPIRED},
	STATUS_DETECTED:  {STATUS_CONFIRMED, STATUS_EXPIRED},
	STATUS_CONFIRMED: {STATUS_SETTLED, STATUS_FAILED},
}

func (s Status) ToString() string {
	if int(s) >= len(Statuses) {
		return "unknown"
	}
	return Statuses[s]
}

func StrToStatus(s string) (Status, bool) {
	for i, statusName := range Statuses {
		if s == statusName {
			return Status(i), true
		}
	}
	return STATUS_PENDING, false
}

func (s Status) IsTerminal() bool {
	return s == STATUS_SETTLED || s == STATUS_EXPIRED || s == STATUS_FAILED
}

func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func CheckTransition(from, to Status) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from.ToString(), to.ToString())
	}
	return nil
}

// webhook event emitted when a payment enters the status
func (s Status) Event() string {
	return "payment." + s.ToString()
}
