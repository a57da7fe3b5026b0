package notification

import (
	"bytes"
	"html/template"
	"time"
)

var assignmentTemplate = template.Must(template.New("assignment").Parse(`<div style="max-width: 600px;">
  <h2>Hi {{.Name}}, 👋</h2>
  <p style="font-size: 16px;">You've been assigned a new task:</p>
  <p style="font-size: 18px; font-weight: bold; color: #007bff; margin: 8px 0;">{{.Title}}</p>
  <div style="border: 1px solid #ddd; padding: 12px 16px; border-radius: 6px; margin-bottom: 30px;">
    <p style="margin: 6px 0;"><strong>Description:</strong> {{.Description}}</p>
    <p style="margin: 6px 0;"><strong>Due Date:</strong> {{.DueDate}}</p>
  </div>
  <a href="{{.Link}}" style="background-color: #007bff; padding: 12px 24px; border-radius: 5px; color: #fff; font-weight: 600; font-size: 16px; text-decoration: none;">View Task</a>
  <p style="margin-top: 20px; font-size: 14px; color: #6c757d;">Please make sure to review and complete it before the due date.</p>
</div>`))

var reminderTemplate = template.Must(template.New("reminder").Parse(`<div style="max-width: 600px;">
  <h2>Hi {{.Name}}, 👋</h2>
  <p style="font-size: 16px;">You have a task due in {{.Project}}:</p>
  <p style="font-size: 18px; font-weight: bold; color: #007bff; margin: 8px 0;">{{.Title}}</p>
  <div style="border: 1px solid #ddd; padding: 12px 16px; border-radius: 6px; margin-bottom: 30px;">
    <p style="margin: 6px 0;"><strong>Description:</strong> {{.Description}}</p>
    <p style="margin: 6px 0;"><strong>Due Date:</strong> {{.DueDate}}</p>
  </div>
  <a href="{{.Link}}" style="background-color: #007bff; padding: 12px 24px; border-radius: 5px; color: #fff; font-weight: 600; font-size: 16px; text-decoration: none;">View Task</a>
  <p style="margin-top: 20px; font-size: 14px; color: #6c757d;">Please make sure to review and complete it as soon as possible.</p>
</div>`))

type emailView struct {
	Name        string
	Project     string
	Title       string
	Description string
	DueDate     string
	Link        template.URL
}

func newEmailView(a assignment, name, link string, loc *time.Location) emailView {
	return emailView{
		Name:        name,
		Project:     a.ProjectName,
		Title:       a.Title,
		Description: a.Description,
		DueDate:     a.DueDate.In(loc).Format("Jan 2, 2006"),
		Link:        template.URL(link),
	}
}

func render(tmpl *template.Template, view emailView) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}
