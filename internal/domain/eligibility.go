package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// TotalTasks is the fixed size of every curriculum.
const TotalTasks = 5

// Unlock thresholds.
const (
	TasksForCertificate = 3
	DaysForCertificate  = 15
)

// UnlockReason records which rule made an internship eligible.
type UnlockReason string

const (
	UnlockNone       UnlockReason = ""
	UnlockThreeTasks UnlockReason = "3_tasks"
	UnlockFifteenDay UnlockReason = "15_days"
)

// Eligibility is the outcome of EvaluateEligibility.
type Eligibility struct {
	Eligible bool         `json:"eligible"`
	Reason   UnlockReason `json:"reason"`
}

// EvaluateEligibility applies the unlock rules in order: three completed
// tasks first, then fifteen elapsed days.
func EvaluateEligibility(completed, daysSinceStart int) Eligibility {
	switch {
	case completed >= TasksForCertificate:
		return Eligibility{Eligible: true, Reason: UnlockThreeTasks}
	case daysSinceStart >= DaysForCertificate:
		return Eligibility{Eligible: true, Reason: UnlockFifteenDay}
	default:
		return Eligibility{}
	}
}

// ProgressPercentage returns round(100*completed/TotalTasks).
func ProgressPercentage(completed int) int {
	return PercentOf(completed, TotalTasks)
}

// PercentOf returns round(100*part/whole), or 0 for an empty whole.
func PercentOf(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(part) / float64(whole)))
}

// DaysSince counts started days between start and now, ceil(|now-start|).
func DaysSince(start, now time.Time) int {
	d := now.Sub(start)
	if d < 0 {
		d = -d
	}
	return int(math.Ceil(d.Hours() / 24))
}

// CertificateNumber builds CERT-<domain code>-<student code><6 digits> where
// the digits are the low six of the epoch millisecond timestamp.
func CertificateNumber(domainName, studentEmail string, now time.Time) string {
	domainWord := domainName
	if fields := strings.Fields(domainName); len(fields) > 0 {
		domainWord = fields[0]
	}
	local, _, _ := strings.Cut(studentEmail, "@")
	millis := now.UnixMilli() % 1_000_000
	return fmt.Sprintf("CERT-%s-%s%06d", prefixUpper(domainWord, 2), prefixUpper(local, 2), millis)
}

func prefixUpper(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return strings.ToUpper(string(r))
}
