package domain

import "time"

// Webhook is an organization webhook.
type Webhook struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	Events    []string  `json:"events"`
	Config    HookConf  `json:"config"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HookConf is the delivery configuration of a webhook.
type HookConf struct {
	URL         string `json:"url,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	InsecureSSL string `json:"insecure_ssl,omitempty"`
}

// ActionsSettings are the organization-level GitHub Actions permissions.
type ActionsSettings struct {
	EnabledRepositories string `json:"enabled_repositories"`
	AllowedActions      string `json:"allowed_actions,omitempty"`
}

// Runner is a self-hosted Actions runner registered with the organization.
type Runner struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	OS     string `json:"os"`
	Status string `json:"status"`
	Busy   bool   `json:"busy"`
}

// Secret is an organization Actions secret. Values are never exposed by the API.
type Secret struct {
	Name       string    `json:"name"`
	Visibility string    `json:"visibility"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// OrgSettings groups the admin-only settings of an organization.
// Sections the caller cannot read are listed in Unavailable instead of failing the lookup.
type OrgSettings struct {
	Org         string           `json:"org"`
	Webhooks    []Webhook        `json:"webhooks"`
	Actions     *ActionsSettings `json:"actions,omitempty"`
	Runners     []Runner         `json:"runners"`
	Secrets     []Secret         `json:"secrets"`
	Unavailable []string         `json:"unavailable,omitempty"`
}

// RateLimit is the remaining quota of one GitHub API resource.
type RateLimit struct {
	Resource  string    `json:"resource"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	Used      int       `json:"used"`
	Reset     time.Time `json:"reset"`
}

// Viewer identifies the account the current credentials belong to.
type Viewer struct {
	Login string `json:"login"`
	Name  string `json:"name,omitempty"`
}
