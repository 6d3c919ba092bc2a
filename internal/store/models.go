package store

import "time"

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

type AuditEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	Timestamp time.Time `json:"timestamp"`
	Severity  Severity  `json:"severity"`
}

type NotificationType string

const (
	NotifySuccess NotificationType = "success"
	NotifyError   NotificationType = "error"
	NotifyInfo    NotificationType = "info"
	NotifyWarning NotificationType = "warning"
)

type Notification struct {
	ID        string           `json:"id"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	Read      bool             `json:"read"`
}

type TaskStatus string

const (
	StatusPending    TaskStatus = "Pending"
	StatusInProgress TaskStatus = "In Progress"
	StatusCompleted  TaskStatus = "Completed"
)

// TaskStatuses is the board column order.
var TaskStatuses = []TaskStatus{StatusPending, StatusInProgress, StatusCompleted}

type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

type Task struct {
	ID          string     `json:"id" yaml:"id"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description" yaml:"description"`
	Assignee    string     `json:"assignee" yaml:"assignee"`
	Status      TaskStatus `json:"status" yaml:"status"`
	Priority    Priority   `json:"priority" yaml:"priority"`
	CreatedAt   time.Time  `json:"createdAt" yaml:"-"`
}

type DocumentType string

const (
	DocumentFile DocumentType = "Document"
	DocumentURL  DocumentType = "URL"
)

type DocumentCategory string

const (
	CategoryAudit         DocumentCategory = "Audit"
	CategoryDocumentation DocumentCategory = "Documentation"
)

type Document struct {
	ID          string           `json:"id" yaml:"id"`
	Type        DocumentType     `json:"type" yaml:"type"`
	Name        string           `json:"name" yaml:"name"`
	URL         string           `json:"url" yaml:"url"`
	Category    DocumentCategory `json:"category" yaml:"category"`
	SubCategory string           `json:"subCategory,omitempty" yaml:"subCategory"`
	ServiceID   string           `json:"serviceId" yaml:"serviceId"`
	UploadedBy  string           `json:"uploadedBy" yaml:"uploadedBy"`
	Date        time.Time        `json:"date" yaml:"-"`
}

type ActivityType string

const (
	ActivityInCampus    ActivityType = "InCampus"
	ActivityOutOfCampus ActivityType = "OutOfCampus"
)

// Event is a team event. Empty Services means every sub-service.
type Event struct {
	ID           string       `json:"id" yaml:"id"`
	Name         string       `json:"name" yaml:"name"`
	Schedule     string       `json:"schedule" yaml:"schedule"`
	Venue        string       `json:"venue" yaml:"venue"`
	ActivityType ActivityType `json:"activityType" yaml:"activityType"`
	Services     []string     `json:"services" yaml:"services"`
	CreatedBy    string       `json:"createdBy" yaml:"createdBy"`
}

// Link is a shared bookmark. Empty Services means every sub-service.
type Link struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	URL      string   `json:"url" yaml:"url"`
	Services []string `json:"services" yaml:"services"`
}

type LogType string

const (
	LogError    LogType = "error"
	LogWarning  LogType = "warning"
	LogInfo     LogType = "info"
	LogFeedback LogType = "feedback"
)

type SystemLog struct {
	ID        string    `json:"id"`
	Type      LogType   `json:"type"`
	Message   string    `json:"message"`
	Source    string    `json:"source"`
	UserID    string    `json:"userId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type IntegrationType string

const (
	IntegrationOAuth IntegrationType = "OAUTH"
	IntegrationODBC  IntegrationType = "ODBC"
	IntegrationAPI   IntegrationType = "API"
)

type IntegrationStatus string

const (
	IntegrationConnected    IntegrationStatus = "Connected"
	IntegrationDisconnected IntegrationStatus = "Disconnected"
	IntegrationError        IntegrationStatus = "Error"
)

// Integration is an external system the admin console tracks. A nil LastSync
// means it has never synced.
type Integration struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Type     IntegrationType   `json:"type"`
	Status   IntegrationStatus `json:"status"`
	LastSync *time.Time        `json:"lastSync"`
}

type NotificationSettings struct {
	DowntimeAlerts       bool `json:"downtimeAlerts" yaml:"downtimeAlerts"`
	FeatureAnnouncements bool `json:"featureAnnouncements" yaml:"featureAnnouncements"`
	RBACChangeWarnings   bool `json:"rbacChangeWarnings" yaml:"rbacChangeWarnings"`
}
