package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"time"
)

var resetHTML = template.Must(template.New("reset").Parse(`<p>Someone asked to reset the password of your VegFuel account.</p>
<p><a href="{{.Link}}">Choose a new password</a></p>
<p>The link expires in {{.Expires}}. If you did not ask for this, ignore this email.</p>
`))

// PasswordReset builds the reset email. baseURL gets the token appended as
// the "token" query parameter.
func PasswordReset(to, baseURL, token string, ttl time.Duration) (Message, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return Message{}, fmt.Errorf("mail: parsing reset link url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	link := u.String()

	var html bytes.Buffer
	data := struct {
		Link    string
		Expires string
	}{link, humanDuration(ttl)}
	if err := resetHTML.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("mail: rendering reset email: %w", err)
	}

	return Message{
		To:      to,
		Subject: "Reset your VegFuel password",
		Text: fmt.Sprintf("Reset your VegFuel password: %s\n\nThe link expires in %s. If you did not ask for this, ignore this email.\n",
			link, humanDuration(ttl)),
		HTML: html.String(),
	}, nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		if d == time.Hour {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", d/time.Hour)
	case d >= time.Minute:
		return fmt.Sprintf("%d minutes", d/time.Minute)
	default:
		return d.String()
	}
}
