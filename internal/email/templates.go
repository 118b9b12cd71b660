package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title      string
	Heading    string
	Subheading string
	CTALabel   string
	CTAURL     string
}

type opportunityStageEmailData struct {
	baseEmailData
	RecipientName   string
	OpportunityName string
	FromStage       string
	ToStage         string
	Closed          bool
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}

// renderOpportunityStage returns the subject and HTML body for a stage email.
func renderOpportunityStage(data OpportunityStageEmail) (string, string, error) {
	closed := strings.HasPrefix(data.ToStage, "CLOSED ")
	subject := fmt.Sprintf(subjectOpportunityStageFmt, data.OpportunityName, data.ToStage)
	heading := "Opportunity stage updated"
	if closed {
		subject = fmt.Sprintf(subjectOpportunityClosedFmt, data.OpportunityName, strings.ToLower(strings.TrimPrefix(data.ToStage, "CLOSED ")))
		heading = "Opportunity closed"
	}

	content, err := renderEmailTemplate("opportunity_stage.html", opportunityStageEmailData{
		baseEmailData: baseEmailData{
			Title:    heading,
			Heading:  heading,
			CTALabel: "Open opportunity",
			CTAURL:   data.OpportunityURL,
		},
		RecipientName:   data.RecipientName,
		OpportunityName: data.OpportunityName,
		FromStage:       data.FromStage,
		ToStage:         data.ToStage,
		Closed:          closed,
	})
	if err != nil {
		return "", "", err
	}
	return subject, content, nil
}
