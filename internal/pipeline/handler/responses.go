package handler

import (
	"time"

	"loanflow/internal/audit"
	"loanflow/internal/rules"
)

// AuditResponse is the body of GET /v1/applications/{id}/audit.
type AuditResponse struct {
	ApplicationID string        `json:"application_id"`
	Entries       []audit.Entry `json:"entries"`
}

// CategoryInfo describes one configured category.
type CategoryInfo struct {
	Name             string  `json:"name"`
	Rules            int     `json:"rules"`
	MaxPossibleScore float64 `json:"max_possible_score"`
	Weight           float64 `json:"weight"`
}

// RulesetResponse is the body of GET /v1/rules.
type RulesetResponse struct {
	Version    string                `json:"version"`
	Metadata   map[string]any        `json:"metadata,omitempty"`
	Categories []CategoryInfo        `json:"categories"`
	Execution  rules.ExecutionConfig `json:"rule_execution_config"`
	Warnings   []string              `json:"warnings,omitempty"`
	LoadedAt   time.Time             `json:"loaded_at"`
}

// ReloadResponse is the body of POST /v1/rules/reload.
type ReloadResponse struct {
	Version         string   `json:"version"`
	PreviousVersion string   `json:"previous_version"`
	Categories      []string `json:"categories"`
	Warnings        []string `json:"warnings,omitempty"`
}

func fromRuleset(rs *rules.Ruleset) RulesetResponse {
	resp := RulesetResponse{
		Version:    rs.Version,
		Metadata:   rs.Metadata,
		Categories: make([]CategoryInfo, 0, len(rs.Names)),
		Execution:  rs.Execution,
		Warnings:   rs.Warnings,
		LoadedAt:   rs.LoadedAt,
	}
	for _, name := range rs.Names {
		cat, ok := rs.Category(name)
		if !ok {
			continue
		}
		resp.Categories = append(resp.Categories, CategoryInfo{
			Name:             name,
			Rules:            cat.RuleCount(),
			MaxPossibleScore: cat.MaxPossibleScore(),
			Weight:           rs.Weight(name),
		})
	}
	return resp
}
