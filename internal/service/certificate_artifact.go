package service

import (
	"bytes"
	"html/template"
	"time"

	"futureintern/internship-app/internal/domain"
)

var certificateTemplate = template.Must(template.New("certificate").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Certificate {{.Number}}</title>
<style>
body { font-family: Georgia, serif; text-align: center; padding: 48px; }
.frame { border: 6px double #1d4ed8; padding: 48px; }
.number { color: #6b7280; font-size: 14px; }
</style>
</head>
<body>
<div class="frame">
<h1>Certificate of Completion</h1>
<p>This is to certify that</p>
<h2>{{.StudentName}}</h2>
{{if .College}}<p>of {{.College}}</p>{{end}}
<p>has completed the <strong>{{.Domain}}</strong> internship</p>
<p>with {{.TaskCompletedCount}} of {{.TotalTasks}} tasks completed ({{.Progress}}%).</p>
<p>Issued on {{.GeneratedAt.Format "January 2, 2006"}}</p>
<p class="number">Certificate No. {{.Number}}</p>
<p class="number">Verify at {{.VerifyURL}}</p>
</div>
</body>
</html>
`))

type certificateView struct {
	Number             string
	StudentName        string
	College            string
	Domain             string
	TaskCompletedCount int
	TotalTasks         int
	Progress           int
	GeneratedAt        time.Time
	VerifyURL          string
}

// renderCertificate produces the HTML document stored for a certificate.
func renderCertificate(internship *domain.Internship, student *domain.Student, verifyURL string) ([]byte, error) {
	view := certificateView{
		Number:             internship.CertificateNumber,
		Domain:             internship.Domain,
		TaskCompletedCount: internship.TaskCompletedCount,
		TotalTasks:         domain.TotalTasks,
		Progress:           internship.Progress,
		VerifyURL:          verifyURL,
	}
	if internship.CertificateGeneratedAt != nil {
		view.GeneratedAt = *internship.CertificateGeneratedAt
	}
	if student != nil {
		view.StudentName = student.Name
		view.College = student.College
	}

	var buf bytes.Buffer
	if err := certificateTemplate.Execute(&buf, view); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
