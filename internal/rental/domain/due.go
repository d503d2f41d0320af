package domain

import (
	"fmt"
	"time"
)

type DueState string

const (
	DueCompleted  DueState = "completed"
	DueCancelled  DueState = "cancelled"
	DueOverdue    DueState = "overdue"
	DueEndsToday  DueState = "ends_today"
	DueEndingSoon DueState = "ending_soon"
	DueActive     DueState = "active"
)

// DueStatus describes where a line stands relative to its end date. Days
// is the distance to (or past) the end date for overdue and ending-soon
// lines.
type DueStatus struct {
	State DueState `json:"state"`
	Days  int      `json:"days,omitempty"`
}

func (d DueStatus) String() string {
	switch d.State {
	case DueOverdue:
		return fmt.Sprintf("overdue %d days", d.Days)
	case DueEndsToday:
		return "ends today"
	case DueEndingSoon:
		return fmt.Sprintf("ends in %d days", d.Days)
	default:
		return string(d.State)
	}
}

// DueStatusOf classifies line against today; lines ending within soonDays
// are ending soon.
func DueStatusOf(line RentalLineItem, today time.Time, soonDays int) DueStatus {
	switch line.Status {
	case LineStatusFinalized:
		return DueStatus{State: DueCompleted}
	case LineStatusCancelled:
		return DueStatus{State: DueCancelled}
	}

	end := time.Date(line.EndDate.Year(), line.EndDate.Month(), line.EndDate.Day(), 0, 0, 0, 0, time.UTC)
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	diff := int(end.Sub(day).Hours() / 24)

	switch {
	case diff < 0:
		return DueStatus{State: DueOverdue, Days: -diff}
	case diff == 0:
		return DueStatus{State: DueEndsToday}
	case diff <= soonDays:
		return DueStatus{State: DueEndingSoon, Days: diff}
	default:
		return DueStatus{State: DueActive}
	}
}
