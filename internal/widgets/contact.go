package widgets

import (
	"github.com/ziadkadry99/popup-studio/internal/emit"
	"github.com/ziadkadry99/popup-studio/internal/record"
)

// Contact is a business card: name, subtitle, avatar and a list of contact
// entries, each rendered as a link whose target depends on its type.
type Contact struct{}

var contactForm = formSpec{
	Fields: append([]field{
		{Key: "name", Label: "Name", Kind: kindText, Placeholder: "Jean Dupont"},
		{Key: "subtitle", Label: "Subtitle", Kind: kindText, Placeholder: "Sales manager"},
		{Key: "image", Label: "Photo URL", Kind: kindURL},
	}, themeFields...),
	Lists: []listSpec{{
		Key:      "contacts",
		Label:    "Contacts",
		AddLabel: "Add contact",
		Item: []field{
			{Key: "type", Label: "Type", Kind: kindSelect, Options: contactTypes},
			{Key: "label", Label: "Label", Kind: kindText},
			{Key: "value", Label: "Value", Kind: kindText},
		},
	}},
}

var contactMarkup = markupSet("contact", `{{define "card"}}<div class="popup-contact">
{{- with .Data.Image}}<img class="popup-image popup-avatar" src="{{.}}" alt="">{{end -}}
<h2 class="popup-title">{{.Data.Name}}</h2>
{{- with .Data.Subtitle}}<p class="popup-subtitle">{{.}}</p>{{end -}}
<ul class="popup-contact-list">
{{- range .Data.Links}}<li class="popup-contact-item" data-contact-type="{{.Type}}"><span class="popup-contact-label">{{.Label}}</span><a href="{{.Href}}" target="_blank" rel="noopener noreferrer">{{.Text}}</a></li>{{end -}}
</ul></div>{{end}}`)

const contactCSS = `{{.Scope}} .popup-contact { text-align: center; }
{{.Scope}} .popup-avatar { width: 96px; height: 96px; object-fit: cover; border-radius: 50%; margin: 0 auto 12px; }
{{.Scope}} .popup-contact-list { list-style: none; margin: 0; padding: 0; text-align: left; }
{{.Scope}} .popup-contact-item { padding: 8px 0; border-bottom: 1px solid rgba(0, 0, 0, 0.08); }
{{.Scope}} .popup-contact-label { display: block; font-size: 12px; opacity: 0.7; }
{{.Scope}} .popup-contact-item a { color: var(--popup-primary); text-decoration: none; word-break: break-all; }
`

type contactView struct {
	Name     string
	Subtitle string
	Image    string
	Links    []contactLink
}

func (Contact) Name() string { return "Contact card" }
func (Contact) Icon() string { return "📇" }
func (Contact) Description() string {
	return "Business card with email, phone, address and social links"
}

func (Contact) DefaultConfig() record.Record {
	cfg := record.Record{
		"name":     "",
		"subtitle": "",
		"image":    "",
		"contacts": []any{},
	}
	defaultTheme.seed(cfg)
	return cfg
}

func (Contact) RequiredFields() []string { return []string{"name"} }

func (Contact) NewListItem(list string) (record.Record, bool) { return contactForm.newItem(list) }

func (Contact) RenderFormFields(cfg record.Record) (string, error) { return contactForm.render(cfg) }

func (c Contact) RenderPreview(cfg record.Record) (string, error) {
	return execute(contactMarkup, "preview", view{Theme: themeFrom(cfg), Data: c.view(cfg)})
}

func (c Contact) RenderBundle(objectID string, cfg record.Record) (emit.Bundle, error) {
	v := view{Theme: themeFrom(cfg), Data: c.view(cfg)}
	return bundleParts(objectID, contactMarkup, v, 420, contactCSS, noHooks, cfg)
}

// view keeps entries with an empty value out of the card.
func (Contact) view(cfg record.Record) contactView {
	v := contactView{
		Name:     cfg.String("name"),
		Subtitle: cfg.String("subtitle"),
		Image:    cfg.String("image"),
	}
	for _, item := range cfg.List("contacts") {
		l := deriveLink(item.String("type"), item.String("label"), item.String("value"))
		if l.Display {
			v.Links = append(v.Links, l)
		}
	}
	return v
}
