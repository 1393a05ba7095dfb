package mail

import (
	"bytes"
	"fmt"
	"html/template"
)

const closingLine = "Recuerda: no se trata de perfección, sino de constancia 💚"

// TextBody wraps a rendered transcript in the plain-text email.
func TextBody(assistantName, transcript string) string {
	return fmt.Sprintf(`Hola 🌱

Gracias por usar a %[1]s, tu nutrióloga digital.

Aquí tienes el historial de tu conversación más reciente:

------------------------
%[2]s
------------------------

%[3]s

¡Nos vemos pronto!
- %[1]s`, assistantName, transcript, closingLine)
}

var htmlBody = template.Must(template.New("email").Parse(`<div style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
  <h2>Hola 🌱</h2>
  <p>Gracias por usar a <strong>{{.Name}}</strong>, tu nutrióloga digital.</p>
  <p>Aquí tienes el historial de tu conversación más reciente:</p>
  <hr />
  <pre style="background: #f4f4f4; padding: 15px; border-radius: 5px;">{{.Transcript}}</pre>
  <hr />
  <p><em>{{.Closing}}</em></p>
  <p>¡Nos vemos pronto!<br><strong>- {{.Name}}</strong></p>
</div>
`))

// HTMLBody renders the HTML alternative. The transcript is escaped.
func HTMLBody(assistantName, transcript string) (string, error) {
	var buf bytes.Buffer
	err := htmlBody.Execute(&buf, struct {
		Name       string
		Transcript string
		Closing    string
	}{assistantName, transcript, closingLine})
	if err != nil {
		return "", fmt.Errorf("render html body: %w", err)
	}
	return buf.String(), nil
}
