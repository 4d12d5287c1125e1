package notifier

import (
	"strings"

	"github.com/good-yellow-bee/alertflow/internal/models"
)

// DefaultTemplate is the message rendered when neither rule nor trigger
// carries a text of its own.
const DefaultTemplate = "%(environment)s: %(severity)s alert for %(service)s - %(resource)s is %(event)s"

// RenderMessage interpolates "%(field)s" placeholders in the template with
// alert fields. Severity is capitalized; list fields are comma-joined.
// Unknown placeholders are left untouched.
func RenderMessage(tmpl string, alert *models.Alert) string {
	if tmpl == "" {
		tmpl = DefaultTemplate
	}
	r := strings.NewReplacer(
		"%(environment)s", alert.Environment,
		"%(resource)s", alert.Resource,
		"%(event)s", alert.Event,
		"%(severity)s", capitalize(string(alert.Severity)),
		"%(status)s", string(alert.Status),
		"%(service)s", strings.Join(alert.Service, ", "),
		"%(group)s", alert.Group,
		"%(value)s", alert.Value,
		"%(text)s", alert.Text,
		"%(origin)s", alert.Origin,
		"%(customer)s", alert.Customer,
		"%(tags)s", strings.Join(alert.Tags, ", "),
	)
	return r.Replace(tmpl)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
