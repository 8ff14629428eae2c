package email

import (
	"bytes"
	"fmt"
	"text/template"
)

type mailTemplate struct {
	subject *template.Template
	body    *template.Template
}

func mustTemplate(name, subject, body string) mailTemplate {
	return mailTemplate{
		subject: template.Must(template.New(name + ".subject").Parse(subject)),
		body:    template.Must(template.New(name + ".body").Parse(body)),
	}
}

var templates = map[string]mailTemplate{
	TemplateInvitation: mustTemplate(TemplateInvitation,
		`You have been invited to {{.tenant_name}}`,
		`Hi {{if .name}}{{.name}}{{else}}there{{end}},

You have been invited to join {{.tenant_name}} as {{.role_name}}.
Accept the invitation and choose a password here:

{{.link}}

The link expires on {{.expires_at}}.
`),
	TemplatePasswordReset: mustTemplate(TemplatePasswordReset,
		`Reset your password`,
		`Hi {{.name}},

We received a request to reset your password. Choose a new one here:

{{.link}}

The link expires on {{.expires_at}}. If you did not ask for this, ignore this mail.
`),
	TemplateVerification: mustTemplate(TemplateVerification,
		`Verify your email address`,
		`Hi {{.name}},

Confirm your email address to finish setting up your account:

{{.link}}

The link expires on {{.expires_at}}.
`),
	TemplatePaymentConfirmation: mustTemplate(TemplatePaymentConfirmation,
		`Payment received for {{.tenant_name}}`,
		`Hi {{.name}},

We received {{.currency}} {{.amount}} for the {{.plan}} plan (payment {{.payment_id}}).
Your subscription is active until {{.period_end}}.
`),
}

// Render produces the subject and plain text body of msg.
func Render(templateName string, data map[string]string) (subject, body string, err error) {
	t, ok := templates[templateName]
	if !ok {
		return "", "", fmt.Errorf("unknown mail template %q", templateName)
	}

	var s, b bytes.Buffer
	if err := t.subject.Execute(&s, data); err != nil {
		return "", "", fmt.Errorf("failed to render subject: %w", err)
	}
	if err := t.body.Execute(&b, data); err != nil {
		return "", "", fmt.Errorf("failed to render body: %w", err)
	}
	return s.String(), b.String(), nil
}
