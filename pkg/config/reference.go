package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// PeriodEntry describes an evaluation period as listed in the reference data file.
type PeriodEntry struct {
	ID             string `mapstructure:"id"`
	Name           string `mapstructure:"name"`
	AppealDeadline string `mapstructure:"appeal_deadline"`
	Status         string `mapstructure:"status"`
}

// Deadline parses the appeal deadline. Date-only values close at the end of that day in UTC.
func (p PeriodEntry) Deadline() (time.Time, error) {
	raw := strings.TrimSpace(p.AppealDeadline)
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts, nil
	}
	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("period %s: invalid appeal_deadline %q", p.ID, p.AppealDeadline)
	}
	return day.Add(24*time.Hour - time.Nanosecond), nil
}

// ReviewerEntry describes a reviewer available for appeal assignment.
type ReviewerEntry struct {
	ID           string `mapstructure:"id"`
	Name         string `mapstructure:"name"`
	Email        string `mapstructure:"email"`
	Tier         string `mapstructure:"tier"`
	DepartmentID string `mapstructure:"department_id"`
}

// ReferenceData is the collaborator data consumed by eligibility and reviewer assignment.
type ReferenceData struct {
	Periods   []PeriodEntry   `mapstructure:"periods"`
	Reviewers []ReviewerEntry `mapstructure:"reviewers"`
}

// LoadReferenceData reads periods and reviewers from a YAML (or JSON/TOML) file.
func LoadReferenceData(path string) (*ReferenceData, error) {
	if strings.TrimSpace(path) == "" {
		return &ReferenceData{}, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read reference data %s: %w", path, err)
	}
	return decodeReferenceData(v)
}

func decodeReferenceData(v *viper.Viper) (*ReferenceData, error) {
	var data ReferenceData
	if err := v.Unmarshal(&data); err != nil {
		return nil, fmt.Errorf("decode reference data: %w", err)
	}
	for i, p := range data.Periods {
		if strings.TrimSpace(p.ID) == "" {
			return nil, fmt.Errorf("reference data: period #%d has no id", i+1)
		}
		if _, err := p.Deadline(); err != nil {
			return nil, fmt.Errorf("reference data: %w", err)
		}
		if p.Status == "" {
			data.Periods[i].Status = "active"
		}
	}
	for i, r := range data.Reviewers {
		if strings.TrimSpace(r.ID) == "" || strings.TrimSpace(r.Tier) == "" {
			return nil, fmt.Errorf("reference data: reviewer #%d needs id and tier", i+1)
		}
	}
	return &data, nil
}
