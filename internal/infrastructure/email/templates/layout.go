// Package templates renders the HTML bodies of analytics emails.
package templates

import (
	"bytes"
	"fmt"
	"html/template"
)

// LayoutProps is the outer shell shared by every analytics email.
type LayoutProps struct {
	Preheader  string
	Content    string
	FooterText string
}

type layoutTemplateData struct {
	Preheader  string
	Content    template.HTML // already-rendered component markup
	FooterText string
}

const layoutTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="margin:0;padding:0;background-color:#f4f4f5;font-family:Helvetica,Arial,sans-serif;">
<span style="display:none;max-height:0;overflow:hidden;">{{.Preheader}}</span>
<table role="presentation" width="100%" cellpadding="0" cellspacing="0">
<tr><td align="center" style="padding:24px 12px;">
<table role="presentation" width="600" cellpadding="0" cellspacing="0" style="background-color:#ffffff;border-radius:8px;">
<tr><td style="padding:32px;">
{{.Content}}
</td></tr>
</table>
<p style="color:#71717a;font-size:12px;padding-top:16px;">{{.FooterText}}</p>
</td></tr>
</table>
</body>
</html>`

var layoutTmpl = template.Must(template.New("layout").Parse(layoutTemplate))

// RenderLayout wraps rendered content in the email shell.
func RenderLayout(props LayoutProps) (string, error) {
	data := layoutTemplateData{
		Preheader:  props.Preheader,
		Content:    template.HTML(props.Content),
		FooterText: props.FooterText,
	}

	var buf bytes.Buffer
	if err := layoutTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render email layout: %w", err)
	}
	return buf.String(), nil
}
