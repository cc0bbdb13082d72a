package senddecisionnotification

import (
	"bytes"
	"fmt"
	"text/template"
)

type message struct {
	Subject *template.Template
	Body    *template.Template
	SMS     *template.Template
}

var funcs = template.FuncMap{
	"rupees": func(v float64) string { return fmt.Sprintf("Rs. %.0f", v) },
}

func mustMessage(subject, body, sms string) message {
	return message{
		Subject: template.Must(template.New("subject").Funcs(funcs).Parse(subject)),
		Body:    template.Must(template.New("body").Funcs(funcs).Parse(body)),
		SMS:     template.Must(template.New("sms").Funcs(funcs).Parse(sms)),
	}
}

// messages is keyed by application status.
var messages = map[string]message{
	"APPROVED": mustMessage(
		"Your loan application has been approved",
		`Your loan application {{.ApplicationID}} for {{rupees .LoanAmount}} over {{.TenureMonths}} months has been approved.
{{- if .Notes}}

Officer notes: {{.Notes}}{{end}}

The first EMI schedule will be shared with you shortly.`,
		`Loan {{.ApplicationID}} for {{rupees .LoanAmount}} approved. EMI schedule to follow.`,
	),
	"REJECTED": mustMessage(
		"Update on your loan application",
		`Your loan application {{.ApplicationID}} for {{rupees .LoanAmount}} could not be approved at this time.
{{- if .Notes}}

Officer notes: {{.Notes}}{{end}}

You can apply again once your profile has been updated.`,
		`Loan {{.ApplicationID}} was not approved. Check your email for details.`,
	),
}

func render(t *template.Template, input *Input) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, input); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
