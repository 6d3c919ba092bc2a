// Package catalog holds the static service tree the portal navigates: categories,
// their sub-services, and the per-service team roster and overview content.
//
// A Catalog is immutable once built and safe for concurrent readers.
package catalog

import (
	"errors"
	"fmt"
	"strings"
)

type SubService struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

type ServiceCategory struct {
	ID          string       `json:"id" yaml:"id"`
	Title       string       `json:"title" yaml:"title"`
	SubServices []SubService `json:"subServices" yaml:"subServices"`
}

type ManagerChain struct {
	L1 string `json:"l1" yaml:"l1"`
	L2 string `json:"l2" yaml:"l2"`
	L3 string `json:"l3" yaml:"l3"`
}

type Employee struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Region string `json:"region"`
	Status string `json:"status"`
}

type TeamData struct {
	Managers  ManagerChain `json:"managers"`
	Employees []Employee   `json:"employees"`
}

type ServiceDetail struct {
	Description    string   `json:"description" yaml:"description"`
	Achievements   []string `json:"achievements" yaml:"achievements"`
	UpcomingEvents []string `json:"upcomingEvents" yaml:"upcomingEvents"`
}

// Entry pairs a sub-service with its owning category. Search works on entries.
type Entry struct {
	SubService SubService      `json:"subService"`
	Category   ServiceCategory `json:"category"`
}

const (
	// DefaultDetailKey is the overview used for sub-services with no entry of their own.
	DefaultDetailKey = "default"
	// FallbackTeamID names the roster shown for sub-services with no roster of their own.
	FallbackTeamID = "unix_l3"
)

var ErrUnknownSubService = errors.New("unknown sub-service")

type Catalog struct {
	categories []ServiceCategory
	byID       map[string]int
	owner      map[string]string
	teams      map[string]TeamData
	details    map[string]ServiceDetail
}

// New validates categories and indexes them. teams and details may reference only
// sub-services present in categories (details may also carry DefaultDetailKey).
func New(categories []ServiceCategory, teams map[string]TeamData, details map[string]ServiceDetail) (*Catalog, error) {
	c := &Catalog{
		categories: cloneCategories(categories),
		byID:       make(map[string]int, len(categories)),
		owner:      make(map[string]string),
		teams:      make(map[string]TeamData, len(teams)),
		details:    make(map[string]ServiceDetail, len(details)),
	}
	if err := c.index(); err != nil {
		return nil, err
	}
	for id, team := range teams {
		if _, ok := c.owner[id]; !ok {
			return nil, fmt.Errorf("team roster %q: %w", id, ErrUnknownSubService)
		}
		c.teams[id] = team
	}
	for id, detail := range details {
		if _, ok := c.owner[id]; !ok && id != DefaultDetailKey {
			return nil, fmt.Errorf("service detail %q: %w", id, ErrUnknownSubService)
		}
		c.details[id] = detail
	}
	return c, nil
}

func (c *Catalog) index() error {
	var errs []error
	for i, category := range c.categories {
		if strings.TrimSpace(category.ID) == "" {
			errs = append(errs, fmt.Errorf("category %d: empty id", i))
			continue
		}
		if _, dup := c.byID[category.ID]; dup {
			errs = append(errs, fmt.Errorf("category %q: duplicate id", category.ID))
			continue
		}
		c.byID[category.ID] = i
		seen := make(map[string]struct{}, len(category.SubServices))
		for _, sub := range category.SubServices {
			if _, dup := seen[sub.ID]; dup {
				errs = append(errs, fmt.Errorf("category %q: duplicate sub-service %q", category.ID, sub.ID))
				continue
			}
			seen[sub.ID] = struct{}{}
			if other, taken := c.owner[sub.ID]; taken {
				errs = append(errs, fmt.Errorf("sub-service %q: listed under %q and %q", sub.ID, other, category.ID))
				continue
			}
			c.owner[sub.ID] = category.ID
		}
	}
	return errors.Join(errs...)
}

// Categories returns a copy of the tree in seed order.
func (c *Catalog) Categories() []ServiceCategory {
	return cloneCategories(c.categories)
}

func (c *Catalog) Category(id string) (ServiceCategory, bool) {
	i, ok := c.byID[id]
	if !ok {
		return ServiceCategory{}, false
	}
	return cloneCategories(c.categories[i : i+1])[0], true
}

// SubService resolves subID under categoryID. It reports false when either id is
// unknown or the sub-service belongs to another category.
func (c *Catalog) SubService(categoryID, subID string) (SubService, bool) {
	i, ok := c.byID[categoryID]
	if !ok {
		return SubService{}, false
	}
	for _, sub := range c.categories[i].SubServices {
		if sub.ID == subID {
			return sub, true
		}
	}
	return SubService{}, false
}

// Locate finds the category that owns subID.
func (c *Catalog) Locate(subID string) (ServiceCategory, SubService, bool) {
	categoryID, ok := c.owner[subID]
	if !ok {
		return ServiceCategory{}, SubService{}, false
	}
	category, _ := c.Category(categoryID)
	sub, _ := c.SubService(categoryID, subID)
	return category, sub, true
}

// HasSubService reports whether id names a sub-service anywhere in the tree.
func (c *Catalog) HasSubService(id string) bool {
	_, ok := c.owner[id]
	return ok
}

func (c *Catalog) Entries() []Entry {
	var out []Entry
	for _, category := range c.Categories() {
		for _, sub := range category.SubServices {
			out = append(out, Entry{SubService: sub, Category: category})
		}
	}
	return out
}

func (c *Catalog) Team(subID string) TeamData {
	if team, ok := c.teams[subID]; ok {
		return team
	}
	return c.teams[FallbackTeamID]
}

func (c *Catalog) Detail(subID string) ServiceDetail {
	if detail, ok := c.details[subID]; ok {
		return detail
	}
	return c.details[DefaultDetailKey]
}

func cloneCategories(in []ServiceCategory) []ServiceCategory {
	out := make([]ServiceCategory, len(in))
	for i, category := range in {
		out[i] = ServiceCategory{
			ID:          category.ID,
			Title:       category.Title,
			SubServices: append([]SubService(nil), category.SubServices...),
		}
	}
	return out
}
