package envelope

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/kursadbilgin/outreach-engine/internal/domain"
)

// Rendered is template output before the compliance footer is appended.
type Rendered struct {
	Subject string
	Body    string
}

// Renderer produces subject and body text for a lead.
type Renderer interface {
	Render(lead domain.Lead, profile domain.BusinessProfile, variation domain.TemplateVariation) (Rendered, error)
}

type templatePair struct {
	subject *template.Template
	body    *template.Template
}

// TextRenderer renders the built-in plain text templates.
type TextRenderer struct {
	templates map[domain.TemplateVariation]templatePair
}

type templateData struct {
	BusinessName string
	Greeting     string
	SenderName   string
}

const (
	shortSubject = `Quick question for {{.BusinessName}}`
	shortBody    = `Hi {{.Greeting}},

I came across {{.BusinessName}} and noticed a couple of easy wins on your online listing. Open to a 10 minute call this week?

Best,
{{.SenderName}}`

	mediumSubject = `A few ideas to bring {{.BusinessName}} more customers`
	mediumBody    = `Hi {{.Greeting}},

I was looking at local businesses in your area and {{.BusinessName}} stood out. A few small changes to your profile and website could put you in front of more people searching for what you offer.

We help businesses like yours with listing optimisation, reviews and local search. I put together a short list of suggestions specific to {{.BusinessName}} and would be happy to walk you through it.

Would a quick call this week work?

Best regards,
{{.SenderName}}`
)

func NewTextRenderer() (*TextRenderer, error) {
	sources := map[domain.TemplateVariation][2]string{
		domain.VariationShort:  {shortSubject, shortBody},
		domain.VariationMedium: {mediumSubject, mediumBody},
	}

	templates := make(map[domain.TemplateVariation]templatePair, len(sources))
	for variation, src := range sources {
		subject, err := template.New(variation.String() + "_subject").Parse(src[0])
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s subject template: %w", variation, err)
		}
		body, err := template.New(variation.String() + "_body").Parse(src[1])
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s body template: %w", variation, err)
		}
		templates[variation] = templatePair{subject: subject, body: body}
	}

	return &TextRenderer{templates: templates}, nil
}

func (r *TextRenderer) Render(lead domain.Lead, profile domain.BusinessProfile, variation domain.TemplateVariation) (Rendered, error) {
	pair, ok := r.templates[variation]
	if !ok {
		return Rendered{}, fmt.Errorf("%w: unknown template variation %q", domain.ErrValidation, variation)
	}

	data := templateData{
		BusinessName: strings.TrimSpace(lead.BusinessName),
		Greeting:     strings.TrimSpace(lead.ContactName),
		SenderName:   strings.TrimSpace(profile.Name),
	}
	if data.Greeting == "" {
		data.Greeting = "there"
	}
	if data.BusinessName == "" {
		data.BusinessName = "your business"
	}

	var subject, body bytes.Buffer
	if err := pair.subject.Execute(&subject, data); err != nil {
		return Rendered{}, fmt.Errorf("failed to render subject: %w", err)
	}
	if err := pair.body.Execute(&body, data); err != nil {
		return Rendered{}, fmt.Errorf("failed to render body: %w", err)
	}

	return Rendered{Subject: subject.String(), Body: body.String()}, nil
}
