package navigation

import (
	"portal/api/internal/catalog"
	"portal/api/internal/store"
)

type ViewKind string

const (
	ViewPlaceholder      ViewKind = "placeholder"
	ViewHome             ViewKind = "home"
	ViewTeam             ViewKind = "team"
	ViewShift            ViewKind = "shift"
	ViewEscalation       ViewKind = "escalation"
	ViewDocuments        ViewKind = "documents"
	ViewEvents           ViewKind = "events"
	ViewLinks            ViewKind = "links"
	ViewUnderDevelopment ViewKind = "under_development"
)

// View is what the content area renders for a selection. Category and
// SubService are set whenever both ids resolve, including for the
// category-independent tabs.
type View struct {
	Kind       ViewKind                 `json:"kind"`
	Tab        Tab                      `json:"tab"`
	Category   *catalog.ServiceCategory `json:"category,omitempty"`
	SubService *catalog.SubService      `json:"subService,omitempty"`
	Filter     *store.DocumentFilter    `json:"documentFilter,omitempty"`
}

// CategoryIndependent reports whether tab renders without a sidebar selection.
func CategoryIndependent(tab Tab) bool {
	return tab == TabTeamEvents || tab == TabLinks
}

func Resolve(c *catalog.Catalog, s Selection) View {
	view := View{Tab: s.ActiveTopTab}
	category, catOK := c.Category(s.ExpandedCategoryID)
	sub, subOK := c.SubService(s.ExpandedCategoryID, s.ActiveSubServiceID)
	if catOK && subOK {
		view.Category = &category
		view.SubService = &sub
	}

	switch s.ActiveTopTab {
	case TabTeamEvents:
		view.Kind = ViewEvents
		return view
	case TabLinks:
		view.Kind = ViewLinks
		return view
	}

	if view.SubService == nil {
		view.Kind = ViewPlaceholder
		return view
	}

	if filter, ok := DocumentFilterForTab(s.ActiveTopTab); ok {
		view.Kind = ViewDocuments
		view.Filter = &filter
		return view
	}
	switch s.ActiveTopTab {
	case TabHome:
		view.Kind = ViewHome
	case TabTeamDetails:
		view.Kind = ViewTeam
	case TabShiftTracker:
		view.Kind = ViewShift
	case TabEscalation:
		view.Kind = ViewEscalation
	default:
		view.Kind = ViewUnderDevelopment
	}
	return view
}

// DocumentFilterForTab maps document tabs to the category and subcategory their
// documents carry. Other tabs have no filter.
func DocumentFilterForTab(tab Tab) (store.DocumentFilter, bool) {
	switch tab {
	case TabAuditTrails:
		return store.DocumentFilter{Category: store.CategoryAudit}, true
	case TabDocumentation:
		return store.DocumentFilter{Category: store.CategoryDocumentation}, true
	case TabSOPs, TabOnboarding, TabKTDocuments, TabInductionNGAs:
		return store.DocumentFilter{Category: store.CategoryDocumentation, SubCategory: string(tab)}, true
	}
	return store.DocumentFilter{}, false
}
