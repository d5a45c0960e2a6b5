package render

import (
	"regexp"
	"strings"

	"github.com/nimasrn/outreach-engine/internal/model"
)

var placeholder = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// LeadFields is the part of a lead a template can reference.
type LeadFields struct {
	FirstName string
	LastName  string
	Email     string
	Company   string
	Title     string
	Website   string
	Phone     string
	City      string
	State     string
	Country   string
	Industry  string
	Custom    map[string]string
}

// SenderFields is the part of the sending account a template can reference.
type SenderFields struct {
	Name  string
	Email string
}

func LeadFieldsOf(l *model.Lead) LeadFields {
	return LeadFields{
		FirstName: l.FirstName,
		LastName:  l.LastName,
		Email:     l.Email,
		Company:   l.Company,
		Title:     l.Title,
		Website:   l.Website,
		Phone:     l.Phone,
		City:      l.City,
		State:     l.State,
		Country:   l.Country,
		Industry:  l.Industry,
		Custom:    l.CustomFields,
	}
}

func SenderFieldsOf(a *model.Account) SenderFields {
	return SenderFields{Name: a.FromName, Email: a.Email}
}

// Vars flattens lead and sender fields into the placeholder namespace.
// Custom fields override the built-in names.
func Vars(lead LeadFields, sender SenderFields) map[string]string {
	vars := map[string]string{
		"first_name":   lead.FirstName,
		"last_name":    lead.LastName,
		"email":        lead.Email,
		"company":      lead.Company,
		"title":        lead.Title,
		"website":      lead.Website,
		"phone":        lead.Phone,
		"city":         lead.City,
		"state":        lead.State,
		"country":      lead.Country,
		"industry":     lead.Industry,
		"sender_name":  sender.Name,
		"sender_email": sender.Email,
	}
	for k, v := range lead.Custom {
		vars[k] = v
	}
	return vars
}

type Renderer struct {
	spinner *Spinner
}

func NewRenderer(spinner *Spinner) *Renderer {
	if spinner == nil {
		spinner = NewSpinner(nil)
	}
	return &Renderer{spinner: spinner}
}

// Render substitutes {{name}} placeholders, drops the unknown ones and then
// resolves spintax.
func (r *Renderer) Render(text string, lead LeadFields, sender SenderFields) string {
	if text == "" {
		return text
	}
	return r.spinner.Spin(Substitute(text, Vars(lead, sender)))
}

// Substitute replaces every {{name}} with vars[name], or nothing.
func Substitute(text string, vars map[string]string) string {
	return placeholder.ReplaceAllStringFunc(text, func(m string) string {
		name := strings.TrimSpace(m[2 : len(m)-2])
		return vars[name]
	})
}
