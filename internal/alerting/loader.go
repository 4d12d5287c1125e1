package alerting

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/good-yellow-bee/alertflow/internal/models"
	"github.com/good-yellow-bee/alertflow/internal/storage"
)

// RuleFile is the YAML shape for file-provisioned configuration. Rules
// loaded from a file must carry stable ids so hot reload upserts instead
// of duplicating.
type RuleFile struct {
	NotificationRules []*fileNotificationRule `yaml:"notification_rules"`
	EscalationRules   []*fileEscalationRule   `yaml:"escalation_rules"`
	Blackouts         []*models.Blackout      `yaml:"blackouts"`
	OnCalls           []*models.OnCall        `yaml:"oncalls"`
	Channels          []*models.Channel       `yaml:"channels"`
	Groups            map[string][]string     `yaml:"groups"`
}

// fileNotificationRule accepts both the current rule shape and the legacy
// one (plain string tags, a severity list instead of triggers). Durations
// are "10m"-style strings in the file.
type fileNotificationRule struct {
	models.NotificationRule `yaml:",inline"`

	FileTags     flexibleTags      `yaml:"tags"`
	FileExcluded flexibleTags      `yaml:"excluded_tags"`
	FileSeverity []models.Severity `yaml:"severity"`
	FileDelay    string            `yaml:"delay_time"`
}

type fileEscalationRule struct {
	models.EscalationRule `yaml:",inline"`

	FileTags     flexibleTags      `yaml:"tags"`
	FileExcluded flexibleTags      `yaml:"excluded_tags"`
	FileSeverity []models.Severity `yaml:"severity"`
	FileEvery    string            `yaml:"time"`
}

// flexibleTags accepts either plain strings (each becoming an all-group)
// or advanced {all, any} mappings.
type flexibleTags []models.AdvancedTag

func (t *flexibleTags) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode {
		return fmt.Errorf("tags must be a sequence")
	}
	var out []models.AdvancedTag
	for _, item := range value.Content {
		switch item.Kind {
		case yaml.ScalarNode:
			var s string
			if err := item.Decode(&s); err != nil {
				return err
			}
			out = append(out, models.AdvancedTag{All: []string{s}})
		case yaml.MappingNode:
			var g models.AdvancedTag
			if err := item.Decode(&g); err != nil {
				return err
			}
			out = append(out, g)
		default:
			return fmt.Errorf("invalid tag entry at line %d", item.Line)
		}
	}
	*t = out
	return nil
}

// LoadRuleFile loads and normalizes a configuration file.
func LoadRuleFile(path string) (*RuleFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules file: %w", err)
	}
	defer f.Close()

	return LoadRules(f)
}

// LoadRules loads and normalizes configuration from a reader.
func LoadRules(r io.Reader) (*RuleFile, error) {
	var file RuleFile
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse rules YAML: %w", err)
	}

	for i, rule := range file.NotificationRules {
		if err := rule.normalize(); err != nil {
			return nil, fmt.Errorf("invalid notification rule at index %d: %w", i, err)
		}
		if err := validateNotificationRule(&rule.NotificationRule); err != nil {
			return nil, fmt.Errorf("invalid notification rule at index %d: %w", i, err)
		}
	}
	for i, rule := range file.EscalationRules {
		if err := rule.normalize(); err != nil {
			return nil, fmt.Errorf("invalid escalation rule at index %d: %w", i, err)
		}
		if err := validateEscalationRule(&rule.EscalationRule); err != nil {
			return nil, fmt.Errorf("invalid escalation rule at index %d: %w", i, err)
		}
	}
	for i, b := range file.Blackouts {
		if b.ID == "" {
			b.ID = uuid.NewString()
		}
		if b.Environment == "" {
			return nil, fmt.Errorf("invalid blackout at index %d: environment is required", i)
		}
		if b.EndTime.IsZero() && b.Duration > 0 {
			b.EndTime = b.StartTime.Add(b.Duration)
		}
	}
	for i, oc := range file.OnCalls {
		if oc.ID == "" {
			oc.ID = uuid.NewString()
		}
		if len(oc.UserIDs) == 0 && len(oc.GroupIDs) == 0 {
			return nil, fmt.Errorf("invalid on-call at index %d: user_ids or group_ids required", i)
		}
		// A non-repeating rotation without dates would cover every
		// instant forever.
		if oc.RepeatType != models.RepeatList && oc.StartDate == nil {
			return nil, fmt.Errorf("invalid on-call at index %d: start_date is required unless repeat_type is list", i)
		}
	}
	for i, c := range file.Channels {
		if c.ID == "" || c.Type == "" {
			return nil, fmt.Errorf("invalid channel at index %d: id and type are required", i)
		}
	}
	return &file, nil
}

// normalize folds legacy fields into the current shape and derives the
// priority from scope specificity when none is set.
func (r *fileNotificationRule) normalize() error {
	r.Tags = r.FileTags
	r.ExcludedTags = r.FileExcluded
	if len(r.Triggers) == 0 && len(r.FileSeverity) > 0 {
		r.Triggers = []models.Trigger{{ToSeverity: r.FileSeverity}}
	}
	if r.FileDelay != "" {
		d, err := time.ParseDuration(r.FileDelay)
		if err != nil {
			return fmt.Errorf("invalid delay_time: %w", err)
		}
		r.DelayTime = d
	}
	r.Priority = r.RuleScope.DerivePriority(r.Priority)
	return nil
}

func (r *fileEscalationRule) normalize() error {
	r.Tags = r.FileTags
	r.ExcludedTags = r.FileExcluded
	if len(r.Triggers) == 0 && len(r.FileSeverity) > 0 {
		r.Triggers = []models.Trigger{{ToSeverity: r.FileSeverity}}
	}
	if r.FileEvery != "" {
		d, err := time.ParseDuration(r.FileEvery)
		if err != nil {
			return fmt.Errorf("invalid time interval: %w", err)
		}
		r.Every = d
	}
	r.Priority = r.RuleScope.DerivePriority(r.Priority)
	return nil
}

// Malformed rules are rejected at load time so the matcher can assume
// well-formed input.
func validateNotificationRule(r *models.NotificationRule) error {
	if r.ID == "" {
		return fmt.Errorf("id is required")
	}
	if r.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if r.ChannelID == "" {
		return fmt.Errorf("channel_id is required")
	}
	if (r.StartTime == nil) != (r.EndTime == nil) {
		return fmt.Errorf("start_time and end_time must be set together")
	}
	return nil
}

func validateEscalationRule(r *models.EscalationRule) error {
	if r.ID == "" {
		return fmt.Errorf("id is required")
	}
	if r.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if r.Every <= 0 {
		return fmt.Errorf("time interval is required")
	}
	if (r.StartTime == nil) != (r.EndTime == nil) {
		return fmt.Errorf("start_time and end_time must be set together")
	}
	return nil
}

// SyncRuleFile upserts the file's entities into the store. Existing
// records with matching ids are replaced.
func SyncRuleFile(ctx context.Context, store storage.Store, file *RuleFile, now time.Time) error {
	for _, c := range file.Channels {
		if err := store.Channels().Create(ctx, c); err != nil {
			// Channels are immutable config; an existing id is fine.
			continue
		}
	}
	for group, members := range file.Groups {
		if err := store.Groups().SetMembers(ctx, group, members); err != nil {
			return fmt.Errorf("sync group %s: %w", group, err)
		}
	}
	for _, b := range file.Blackouts {
		if b.CreateTime.IsZero() {
			b.CreateTime = now
		}
		if err := store.Blackouts().Create(ctx, b); err != nil {
			continue
		}
	}
	for _, oc := range file.OnCalls {
		if oc.CreateTime.IsZero() {
			oc.CreateTime = now
		}
		if err := store.OnCalls().Create(ctx, oc); err != nil {
			continue
		}
	}
	for _, rule := range file.NotificationRules {
		r := rule.NotificationRule
		if r.CreateTime.IsZero() {
			r.CreateTime = now
		}
		if err := upsertNotificationRule(ctx, store, &r); err != nil {
			return fmt.Errorf("sync notification rule %s: %w", r.ID, err)
		}
	}
	for _, rule := range file.EscalationRules {
		r := rule.EscalationRule
		if r.CreateTime.IsZero() {
			r.CreateTime = now
		}
		if err := upsertEscalationRule(ctx, store, &r); err != nil {
			return fmt.Errorf("sync escalation rule %s: %w", r.ID, err)
		}
	}
	return nil
}

func upsertNotificationRule(ctx context.Context, store storage.Store, r *models.NotificationRule) error {
	err := store.NotificationRules().Update(ctx, r)
	if errors.Is(err, storage.ErrNotFound) {
		return store.NotificationRules().Create(ctx, r)
	}
	return err
}

func upsertEscalationRule(ctx context.Context, store storage.Store, r *models.EscalationRule) error {
	err := store.EscalationRules().Update(ctx, r)
	if errors.Is(err, storage.ErrNotFound) {
		return store.EscalationRules().Create(ctx, r)
	}
	return err
}
