// Package seed loads the fixtures the portal boots with: the service catalog,
// the user directory and the initial contents of every store.
package seed

import (
	_ "embed"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"portal/api/internal/catalog"
	"portal/api/internal/directory"
	"portal/api/internal/store"
)

//go:embed seed.yaml
var defaultSeed []byte

type Fixtures struct {
	Catalog              *catalog.Catalog
	Users                []directory.User
	Accounts             []directory.Account
	Tasks                []store.Task
	SystemLogs           []store.SystemLog
	Integrations         []store.Integration
	NotificationSettings store.NotificationSettings
	Documents            []store.Document
	Events               []store.Event
	Links                []store.Link
}

type teamSpec struct {
	Managers   catalog.ManagerChain `yaml:"managers"`
	Employees  int                  `yaml:"employees"`
	RolePrefix string               `yaml:"rolePrefix"`
}

type systemLogSpec struct {
	ID      string        `yaml:"id"`
	Type    store.LogType `yaml:"type"`
	Message string        `yaml:"message"`
	Source  string        `yaml:"source"`
	Age     time.Duration `yaml:"age"`
}

type integrationSpec struct {
	ID          string                  `yaml:"id"`
	Name        string                  `yaml:"name"`
	Type        store.IntegrationType   `yaml:"type"`
	Status      store.IntegrationStatus `yaml:"status"`
	LastSyncAge *time.Duration          `yaml:"lastSyncAge"`
}

type document struct {
	Categories           []catalog.ServiceCategory        `yaml:"categories"`
	Teams                map[string]teamSpec              `yaml:"teams"`
	Details              map[string]catalog.ServiceDetail `yaml:"details"`
	Users                []directory.User                 `yaml:"users"`
	Accounts             []directory.Account              `yaml:"accounts"`
	Tasks                []store.Task                     `yaml:"tasks"`
	SystemLogs           []systemLogSpec                  `yaml:"systemLogs"`
	Integrations         []integrationSpec                `yaml:"integrations"`
	NotificationSettings store.NotificationSettings       `yaml:"notificationSettings"`
	Documents            []store.Document                 `yaml:"documents"`
	Events               []store.Event                    `yaml:"events"`
	Links                []store.Link                     `yaml:"links"`
}

// Default parses the embedded fixtures. Relative ages are resolved against now.
func Default(now time.Time) (Fixtures, error) {
	return Parse(defaultSeed, now)
}

func Parse(data []byte, now time.Time) (Fixtures, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Fixtures{}, fmt.Errorf("decode seed: %w", err)
	}

	teams := make(map[string]catalog.TeamData, len(doc.Teams))
	for id, spec := range doc.Teams {
		teams[id] = catalog.TeamData{
			Managers:  spec.Managers,
			Employees: catalog.GenerateEmployees(spec.Employees, spec.RolePrefix),
		}
	}
	cat, err := catalog.New(doc.Categories, teams, doc.Details)
	if err != nil {
		return Fixtures{}, fmt.Errorf("seed catalog: %w", err)
	}

	now = now.UTC()
	fx := Fixtures{
		Catalog:              cat,
		Users:                doc.Users,
		Accounts:             doc.Accounts,
		NotificationSettings: doc.NotificationSettings,
		Documents:            doc.Documents,
		Events:               doc.Events,
		Links:                doc.Links,
	}
	for _, task := range doc.Tasks {
		task.CreatedAt = now
		fx.Tasks = append(fx.Tasks, task)
	}
	for i := range fx.Documents {
		fx.Documents[i].Date = now
	}
	for _, spec := range doc.SystemLogs {
		fx.SystemLogs = append(fx.SystemLogs, store.SystemLog{
			ID:        spec.ID,
			Type:      spec.Type,
			Message:   spec.Message,
			Source:    spec.Source,
			Timestamp: now.Add(-spec.Age),
		})
	}
	for _, spec := range doc.Integrations {
		item := store.Integration{ID: spec.ID, Name: spec.Name, Type: spec.Type, Status: spec.Status}
		if spec.LastSyncAge != nil {
			at := now.Add(-*spec.LastSyncAge)
			item.LastSync = &at
		}
		fx.Integrations = append(fx.Integrations, item)
	}

	if err := fx.Validate(); err != nil {
		return Fixtures{}, err
	}
	return fx, nil
}

// Validate checks that every task status and priority is known and that every
// sub-service reference in the data collections resolves in the catalog.
func (fx Fixtures) Validate() error {
	var errs []error
	for _, task := range fx.Tasks {
		if _, err := store.ParseStatus(string(task.Status)); err != nil {
			errs = append(errs, fmt.Errorf("task %q: %w", task.ID, err))
		}
		if _, err := store.ParsePriority(string(task.Priority)); err != nil {
			errs = append(errs, fmt.Errorf("task %q: %w", task.ID, err))
		}
	}
	for _, doc := range fx.Documents {
		if !fx.Catalog.HasSubService(doc.ServiceID) {
			errs = append(errs, fmt.Errorf("document %q: %w: %q", doc.ID, catalog.ErrUnknownSubService, doc.ServiceID))
		}
	}
	for _, event := range fx.Events {
		errs = append(errs, fx.checkMembers("event "+event.ID, event.Services)...)
	}
	for _, link := range fx.Links {
		errs = append(errs, fx.checkMembers("link "+link.ID, link.Services)...)
	}
	return errors.Join(errs...)
}

func (fx Fixtures) checkMembers(owner string, services []string) []error {
	var errs []error
	for _, id := range services {
		if !fx.Catalog.HasSubService(id) {
			errs = append(errs, fmt.Errorf("%s: %w: %q", owner, catalog.ErrUnknownSubService, id))
		}
	}
	return errs
}
