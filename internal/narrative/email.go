package narrative

import "strings"

// Email is a drafted email split into subject and body.
type Email struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ParseEmail reads a leading "Subject:" line (markdown emphasis allowed).
// Without one the whole content is the body under DefaultSubject.
func ParseEmail(content string) Email {
	content = strings.TrimSpace(content)
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		s := strings.TrimSpace(line)
		if s == "" {
			continue
		}
		s = strings.TrimLeft(s, "#* ")
		if len(s) >= len("subject:") && strings.EqualFold(s[:len("subject:")], "subject:") {
			subject := strings.TrimSpace(strings.Trim(s[len("subject:"):], "* "))
			body := strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
			if subject == "" {
				subject = DefaultSubject
			}
			return Email{Subject: subject, Body: body}
		}
		break
	}
	return Email{Subject: DefaultSubject, Body: content}
}
