package portal

import (
	"portal/api/internal/catalog"
	"portal/api/internal/navigation"
	"portal/api/internal/store"
)

type ShiftStat struct {
	Name    string `json:"name"`
	Staffed int    `json:"staffed"`
	Planned int    `json:"planned"`
}

// Staffing figures are not tracked anywhere yet; the tracker shows a fixed roster.
var shiftStats = []ShiftStat{
	{Name: "Morning Shift", Staffed: 8, Planned: 8},
	{Name: "Afternoon Shift", Staffed: 7, Planned: 8},
	{Name: "Night Shift", Staffed: 8, Planned: 8},
}

// Content is the resolved view plus the data it renders. Only the fields for
// View.Kind are populated.
type Content struct {
	View      navigation.View        `json:"view"`
	Detail    *catalog.ServiceDetail `json:"detail,omitempty"`
	Team      *catalog.TeamData      `json:"team,omitempty"`
	Shifts    []ShiftStat            `json:"shifts,omitempty"`
	Board     []store.Column         `json:"board,omitempty"`
	Documents []store.Document       `json:"documents,omitempty"`
	Events    []store.Event          `json:"events,omitempty"`
	Links     []store.Link           `json:"links,omitempty"`
	Message   string                 `json:"message,omitempty"`
}

// Content resolves the client's selection and loads what the view needs. Team
// Events and Links are filtered by the active sub-service when one resolves and
// list everything otherwise.
func (c *Client) Content() Content {
	p := c.portal
	view := navigation.Resolve(p.Catalog, c.Selection())
	out := Content{View: view}

	subID := ""
	if view.SubService != nil {
		subID = view.SubService.ID
	}

	switch view.Kind {
	case navigation.ViewPlaceholder:
		out.Message = "Select a service category from the sidebar to view details, team members, and reports."
	case navigation.ViewHome:
		detail := p.Catalog.Detail(subID)
		out.Detail = &detail
	case navigation.ViewTeam:
		team := p.Catalog.Team(subID)
		out.Team = &team
	case navigation.ViewShift:
		out.Shifts = append([]ShiftStat(nil), shiftStats...)
	case navigation.ViewEscalation:
		out.Board = p.Tasks.Board()
	case navigation.ViewDocuments:
		out.Documents = p.Data.Documents(subID, *view.Filter)
	case navigation.ViewEvents:
		out.Events = p.Data.Events(subID)
	case navigation.ViewLinks:
		out.Links = p.Data.Links(subID)
	case navigation.ViewUnderDevelopment:
		out.Message = "This module for " + view.SubService.Name + " is currently under development."
	}
	return out
}
