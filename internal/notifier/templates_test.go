package notifier

import (
	"testing"

	"github.com/good-yellow-bee/alertflow/internal/models"
)

func TestRenderMessage(t *testing.T) {
	alert := &models.Alert{
		Environment: "production",
		Resource:    "web01",
		Event:       "NodeDown",
		Severity:    models.SeverityCritical,
		Status:      models.StatusOpen,
		Service:     []string{"web", "frontend"},
		Value:       "down",
		Tags:        []string{"db", "prod"},
	}

	tests := []struct {
		name string
		tmpl string
		want string
	}{
		{
			name: "default template",
			tmpl: "",
			want: "production: Critical alert for web, frontend - web01 is NodeDown",
		},
		{
			name: "custom template",
			tmpl: "[%(severity)s] %(resource)s/%(event)s = %(value)s",
			want: "[Critical] web01/NodeDown = down",
		},
		{
			name: "tags joined",
			tmpl: "tags: %(tags)s",
			want: "tags: db, prod",
		},
		{
			name: "unknown placeholder untouched",
			tmpl: "%(nonsense)s in %(environment)s",
			want: "%(nonsense)s in production",
		},
		{
			name: "plain text passthrough",
			tmpl: "check the node",
			want: "check the node",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderMessage(tt.tmpl, alert); got != tt.want {
				t.Errorf("RenderMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCapitalize(t *testing.T) {
	if got := capitalize("warning"); got != "Warning" {
		t.Errorf("capitalize = %q, want Warning", got)
	}
	if got := capitalize(""); got != "" {
		t.Errorf("capitalize empty = %q, want empty", got)
	}
}
