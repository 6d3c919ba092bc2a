// Package navigation is the portal's selection reducer: which top tab is open,
// which sidebar category is expanded, and which sub-service is active.
//
// Every operation is a pure function from Selection to Selection and accepts any
// ids. Ids that do not resolve are handled by Resolve, which falls back to the
// placeholder view.
package navigation

type Tab string

const (
	TabHome          Tab = "Home"
	TabTeamDetails   Tab = "Team details"
	TabSOW           Tab = "SOW"
	TabShiftTracker  Tab = "Shift Tracker"
	TabLeaveTracker  Tab = "Leave Tracker"
	TabMORReport     Tab = "MOR Report"
	TabEscalation    Tab = "Escalation"
	TabNEMS          Tab = "NEMS"
	TabTraining      Tab = "Training"
	TabCertification Tab = "Certification"
	TabReports       Tab = "Reports"
	TabTeamEvents    Tab = "Team Events"
	TabLinks         Tab = "Links"
	TabAuditTrails   Tab = "Audit Trails"
	TabDocumentation Tab = "Documentation"
	TabSOPs          Tab = "SOPs"
	TabOnboarding    Tab = "Onboarding"
	TabKTDocuments   Tab = "KT documents"
	TabInductionNGAs Tab = "Induction (NGAs)"
)

// Tabs lists every tab the portal renders, in menu order.
var Tabs = []Tab{
	TabHome, TabTeamDetails, TabSOW, TabShiftTracker, TabLeaveTracker, TabMORReport,
	TabEscalation, TabNEMS, TabTraining, TabCertification, TabReports, TabTeamEvents,
	TabLinks, TabAuditTrails, TabDocumentation, TabSOPs, TabOnboarding, TabKTDocuments,
	TabInductionNGAs,
}

func (t Tab) Known() bool {
	for _, tab := range Tabs {
		if tab == t {
			return true
		}
	}
	return false
}

// Selection is one client's navigation state. Empty ids mean nothing is
// expanded or active.
type Selection struct {
	ActiveTopTab       Tab    `json:"activeTopTab"`
	ExpandedCategoryID string `json:"expandedCategoryId"`
	ActiveSubServiceID string `json:"activeSubServiceId"`
}

// Initial is the selection a new client starts with.
func Initial() Selection {
	return Selection{ActiveTopTab: TabHome, ExpandedCategoryID: "sa_l3", ActiveSubServiceID: "unix_l3"}
}

func SelectTopTab(s Selection, tab Tab) Selection {
	s.ActiveTopTab = tab
	return s
}

// ToggleCategory collapses categoryID when it is the expanded one and expands it
// otherwise. The active sub-service is left alone, so it may stay active under a
// collapsed category. An empty id names no category and changes nothing.
func ToggleCategory(s Selection, categoryID string) Selection {
	if categoryID == "" {
		return s
	}
	if s.ExpandedCategoryID == categoryID {
		s.ExpandedCategoryID = ""
	} else {
		s.ExpandedCategoryID = categoryID
	}
	return s
}

// SelectSubService activates subID and makes sure its category is expanded.
func SelectSubService(s Selection, subID, categoryID string) Selection {
	s.ActiveSubServiceID = subID
	if s.ExpandedCategoryID != categoryID {
		s.ExpandedCategoryID = categoryID
	}
	return s
}

// SwitchSubServiceWithinCategory changes only the active sub-service.
func SwitchSubServiceWithinCategory(s Selection, subID string) Selection {
	s.ActiveSubServiceID = subID
	return s
}
