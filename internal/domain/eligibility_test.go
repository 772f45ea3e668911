package domain

import (
	"regexp"
	"testing"
	"time"
)

func TestEvaluateEligibilityRules(t *testing.T) {
	for count := 0; count <= TotalTasks; count++ {
		for _, days := range []int{0, 1, 14, 15, 16, 40} {
			got := EvaluateEligibility(count, days)
			wantEligible := count >= 3 || days >= 15
			if got.Eligible != wantEligible {
				t.Fatalf("count=%d days=%d: expected eligible=%v, got %v", count, days, wantEligible, got.Eligible)
			}
			switch {
			case count >= 3:
				if got.Reason != UnlockThreeTasks {
					t.Fatalf("count=%d days=%d: expected reason 3_tasks, got %q", count, days, got.Reason)
				}
			case days >= 15:
				if got.Reason != UnlockFifteenDay {
					t.Fatalf("count=%d days=%d: expected reason 15_days, got %q", count, days, got.Reason)
				}
			default:
				if got.Reason != UnlockNone {
					t.Fatalf("count=%d days=%d: expected no reason, got %q", count, days, got.Reason)
				}
			}
		}
	}
}

func TestProgressPercentage(t *testing.T) {
	tests := []struct {
		count int
		want  int
	}{
		{0, 0},
		{1, 20},
		{2, 40},
		{3, 60},
		{4, 80},
		{5, 100},
	}
	for _, tt := range tests {
		if got := ProgressPercentage(tt.count); got != tt.want {
			t.Fatalf("ProgressPercentage(%d) = %d, want %d", tt.count, got, tt.want)
		}
	}
}

func TestPercentOfEmptyWhole(t *testing.T) {
	if got := PercentOf(3, 0); got != 0 {
		t.Fatalf("expected 0 for empty whole, got %d", got)
	}
	if got := PercentOf(1, 3); got != 33 {
		t.Fatalf("expected 33, got %d", got)
	}
}

func TestDaysSinceRoundsUp(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"same instant", start, 0},
		{"one hour", start.Add(time.Hour), 1},
		{"exactly one day", start.Add(24 * time.Hour), 1},
		{"just past one day", start.Add(24*time.Hour + time.Minute), 2},
		{"before start", start.Add(-36 * time.Hour), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysSince(start, tt.now); got != tt.want {
				t.Fatalf("expected %d days, got %d", tt.want, got)
			}
		})
	}
}

func TestRefreshEligibilityReasonFollowsCount(t *testing.T) {
	now := time.Date(2026, 3, 21, 9, 0, 0, 0, time.UTC)
	internship := NewInternship("asha@example.com", "Web Development", now.Add(-20*24*time.Hour))

	internship.ApplyProgress(2, now)
	if !internship.IsEligibleForCertificate || internship.CertificateUnlockedReason != UnlockFifteenDay {
		t.Fatalf("expected 15_days eligibility, got eligible=%v reason=%q",
			internship.IsEligibleForCertificate, internship.CertificateUnlockedReason)
	}

	internship.ApplyProgress(3, now)
	if internship.CertificateUnlockedReason != UnlockThreeTasks {
		t.Fatalf("expected reason 3_tasks after third task, got %q", internship.CertificateUnlockedReason)
	}
	if internship.Progress != 60 {
		t.Fatalf("expected progress 60, got %d", internship.Progress)
	}
}

func TestEligibilityIsMonotonic(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	internship := NewInternship("asha@example.com", "Data Science", now)
	internship.ApplyProgress(3, now)
	if !internship.IsEligibleForCertificate {
		t.Fatal("expected eligibility after three tasks")
	}

	internship.ApplyProgress(0, now)
	if !internship.IsEligibleForCertificate {
		t.Fatal("expected eligibility to stay granted")
	}
	if internship.CertificateUnlockedReason != UnlockThreeTasks {
		t.Fatalf("expected previous reason kept, got %q", internship.CertificateUnlockedReason)
	}
}

func TestApplyProgressClampsCount(t *testing.T) {
	now := time.Now()
	internship := NewInternship("asha@example.com", "DevOps", now)
	internship.ApplyProgress(9, now)
	if internship.TaskCompletedCount != TotalTasks || internship.Progress != 100 {
		t.Fatalf("expected clamp to %d/100, got %d/%d", TotalTasks, internship.TaskCompletedCount, internship.Progress)
	}
}

func TestCertificateNumberFormat(t *testing.T) {
	now := time.UnixMilli(1_700_000_123_456)
	tests := []struct {
		domain string
		email  string
		want   string
	}{
		{"Web Development", "rahul.test@example.com", "CERT-WE-RA123456"},
		{"UI/UX Design", "li@example.com", "CERT-UI-LI123456"},
		{"DevOps", "q@example.com", "CERT-DE-Q123456"},
	}
	for _, tt := range tests {
		if got := CertificateNumber(tt.domain, tt.email, now); got != tt.want {
			t.Fatalf("CertificateNumber(%q, %q) = %q, want %q", tt.domain, tt.email, got, tt.want)
		}
	}

	pattern := regexp.MustCompile(`^CERT-[A-Z/]{1,2}-[A-Z0-9._%+-]{1,2}\d{6}$`)
	if got := CertificateNumber("IoT Development", "zed@example.com", time.UnixMilli(5)); !pattern.MatchString(got) {
		t.Fatalf("unexpected certificate number %q", got)
	} else if got != "CERT-IO-ZE000005" {
		t.Fatalf("expected zero-padded digits, got %q", got)
	}
}

func TestAssignCertificateOnce(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_001)
	internship := NewInternship("asha@example.com", "Cybersecurity", now)
	if internship.AssignCertificate(now, nil) {
		t.Fatal("expected no certificate before eligibility")
	}

	internship.ApplyProgress(3, now)
	url := func(n string) string { return "https://certs.example.com/" + n }
	if !internship.AssignCertificate(now, url) {
		t.Fatal("expected first assignment to succeed")
	}
	number := internship.CertificateNumber
	generatedAt := *internship.CertificateGeneratedAt

	if internship.AssignCertificate(now.Add(time.Hour), url) {
		t.Fatal("expected second assignment to be refused")
	}
	if internship.CertificateNumber != number || !internship.CertificateGeneratedAt.Equal(generatedAt) {
		t.Fatal("expected certificate fields unchanged")
	}
	if !internship.CanDownload || internship.CertificateURL != "https://certs.example.com/"+number {
		t.Fatalf("unexpected download state: %v %q", internship.CanDownload, internship.CertificateURL)
	}
}

func TestAvailableDomains(t *testing.T) {
	available := AvailableDomains([]string{"Web Development", "DevOps"})
	if len(available) != len(Domains)-2 {
		t.Fatalf("expected %d available domains, got %d", len(Domains)-2, len(available))
	}
	for _, d := range available {
		if d == "Web Development" || d == "DevOps" {
			t.Fatalf("registered domain %q listed as available", d)
		}
	}
	if len(Domains) != 15 {
		t.Fatalf("expected 15 domains, got %d", len(Domains))
	}
}

func TestTaskOverdue(t *testing.T) {
	now := time.Now()
	task := Task{Status: TaskPending, DueDate: now.Add(-time.Minute)}
	if !task.IsOverdueAt(now) {
		t.Fatal("expected pending task past due to be overdue")
	}
	task.Status = TaskCompleted
	if task.IsOverdueAt(now) {
		t.Fatal("expected completed task never overdue")
	}
}
