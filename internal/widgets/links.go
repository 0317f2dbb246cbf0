package widgets

import (
	"html/template"
	"net/url"
	"strings"
	"unicode"
)

// Contact types offered by the contact card form.
var contactTypes = []string{
	"email", "phone", "sms", "whatsapp", "telegram", "website",
	"address", "linkedin", "twitter", "instagram", "facebook", "github", "other",
}

var contactLabels = map[string]string{
	"email":     "Email",
	"phone":     "Phone",
	"sms":       "SMS",
	"whatsapp":  "WhatsApp",
	"telegram":  "Telegram",
	"website":   "Website",
	"address":   "Address",
	"linkedin":  "LinkedIn",
	"twitter":   "X / Twitter",
	"instagram": "Instagram",
	"facebook":  "Facebook",
	"github":    "GitHub",
	"other":     "Link",
}

var socialProfiles = map[string]string{
	"telegram":  "https://t.me/",
	"linkedin":  "https://www.linkedin.com/in/",
	"twitter":   "https://x.com/",
	"instagram": "https://www.instagram.com/",
	"facebook":  "https://www.facebook.com/",
	"github":    "https://github.com/",
}

// contactLink is one rendered row of a contact card.
type contactLink struct {
	Type  string
	Label string
	Text  string
	// Href is either a trusted template.URL built from an allowlisted scheme,
	// or a plain string that html/template sanitizes on output.
	Href    any
	Display bool
}

// deriveLink turns a contact entry into a link target. Values the user typed
// are always escaped for their destination (query encoding, digit
// filtering); only the scheme prefix is trusted.
func deriveLink(kind, label, value string) contactLink {
	value = strings.TrimSpace(value)
	l := contactLink{Type: kind, Label: strings.TrimSpace(label), Text: value, Display: value != ""}
	if l.Label == "" {
		l.Label = contactLabels[kind]
		if l.Label == "" {
			l.Label = contactLabels["other"]
		}
	}
	if value == "" {
		return l
	}

	switch kind {
	case "email":
		l.Href = template.URL("mailto:" + url.PathEscape(value))
		if at := strings.IndexByte(value, '@'); at > 0 {
			l.Href = template.URL("mailto:" + url.PathEscape(value[:at]) + "@" + url.PathEscape(value[at+1:]))
		}
	case "phone":
		l.Href = template.URL("tel:" + dialable(value))
	case "sms":
		l.Href = template.URL("sms:" + dialable(value))
	case "whatsapp":
		l.Href = template.URL("https://wa.me/" + digitsOnly(value))
	case "address":
		l.Href = template.URL("https://www.google.com/maps/search/?api=1&query=" + url.QueryEscape(value))
	case "website":
		l.Href = withScheme(value)
	default:
		if prefix, ok := socialProfiles[kind]; ok {
			if strings.Contains(value, "://") {
				l.Href = value
			} else {
				l.Href = template.URL(prefix + url.PathEscape(strings.TrimPrefix(value, "@")))
			}
			break
		}
		l.Href = value
	}
	return l
}

// withScheme prefixes bare host names with https://. Anything that already
// has a scheme is left for html/template to sanitize.
func withScheme(v string) string {
	if strings.Contains(v, "://") || strings.HasPrefix(v, "//") {
		return v
	}
	return "https://" + v
}

func dialable(v string) string {
	var b strings.Builder
	for i, r := range v {
		if unicode.IsDigit(r) || (r == '+' && i == 0) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func digitsOnly(v string) string {
	var b strings.Builder
	for _, r := range v {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
