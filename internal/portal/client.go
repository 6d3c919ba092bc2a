package portal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"portal/api/internal/catalog"
	"portal/api/internal/directory"
	"portal/api/internal/navigation"
	"portal/api/internal/rbac"
	"portal/api/internal/store"
)

// Client is one browser session. It holds at most one signed-in user.
type Client struct {
	id            string
	portal        *Portal
	notifications *store.Notifications
	login         singleflight.Group

	mu        sync.Mutex
	user      *directory.User
	selection navigation.Selection
	adminOpen bool
	lastSeen  time.Time
}

func newClient(p *Portal, id string) *Client {
	return &Client{
		id:            id,
		portal:        p,
		notifications: store.NewNotifications(p.now),
		selection:     navigation.Initial(),
		lastSeen:      p.now(),
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) Notifications() *store.Notifications { return c.notifications }

func (c *Client) notify(message string, typ store.NotificationType) {
	c.notifications.Add(message, typ)
	c.portal.observer.ObserveNotification(string(typ))
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastSeen = c.portal.now()
	c.mu.Unlock()
}

func (c *Client) lastSeenAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

func (c *Client) close() {
	c.mu.Lock()
	c.user = nil
	c.adminOpen = false
	c.mu.Unlock()
	c.notifications.CloseSubscribers()
}

// User returns the signed-in user as of login time.
func (c *Client) User() (directory.User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return directory.User{}, false
	}
	return *c.user, true
}

// Login resolves the credentials and, on success, signs the user in. A
// credential mismatch returns false with no error. Concurrent calls on the same
// client share the first call's outcome. The attempt belongs to the client, not
// the caller: a caller whose ctx ends gets ctx.Err() while the attempt runs on
// to the login timeout for anyone else waiting on it.
func (c *Client) Login(ctx context.Context, username, password, domain string) (bool, error) {
	creds := directory.Credentials{Username: username, Password: password, Domain: domain}
	ch := c.login.DoChan("login", func() (any, error) {
		return c.doLogin(context.WithoutCancel(ctx), creds)
	})
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("login: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return false, res.Err
		}
		return res.Val.(bool), nil
	}
}

func (c *Client) doLogin(ctx context.Context, creds directory.Credentials) (bool, error) {
	p := c.portal
	ctx, cancel := context.WithTimeout(ctx, p.loginTimeout)
	defer cancel()

	user, err := p.authenticate(ctx, creds)
	if errors.Is(err, directory.ErrInvalidCredentials) {
		p.observer.ObserveLogin("rejected")
		p.logger.Info("login rejected", zap.String("client", c.id), zap.String("domain", creds.Domain))
		return false, nil
	}
	if err != nil {
		p.observer.ObserveLogin("error")
		return false, fmt.Errorf("login: %w", err)
	}
	p.observer.ObserveLogin("success")

	c.mu.Lock()
	signedIn := user
	c.user = &signedIn
	c.mu.Unlock()

	c.notify("Welcome back, "+user.Name, store.NotifySuccess)
	p.audit(user, "Login", "User logged in via "+creds.Domain, store.SeverityInfo)
	p.logger.Info("login", zap.String("client", c.id), zap.String("user", user.ID), zap.String("role", string(user.Role)))
	return true, nil
}

// Logout signs the user out and closes the admin console.
func (c *Client) Logout() {
	c.mu.Lock()
	user := c.user
	c.user = nil
	c.adminOpen = false
	c.mu.Unlock()
	if user != nil {
		c.portal.audit(*user, "Logout", "User logged out", store.SeverityInfo)
	}
}

// LogAction appends an audit entry attributed to the signed-in user. It reports
// false and records nothing when nobody is signed in.
func (c *Client) LogAction(action, details string, severity store.Severity) bool {
	user, ok := c.User()
	if !ok {
		return false
	}
	c.portal.audit(user, action, details, severity)
	return true
}

// UpdateUserRole changes a directory entry's role. Sessions already open keep
// the role they signed in with.
func (c *Client) UpdateUserRole(id string, role rbac.Role) (directory.User, error) {
	if _, ok := c.User(); !ok {
		return directory.User{}, ErrNotAuthenticated
	}
	updated, err := c.portal.Directory.UpdateRole(id, role)
	if err != nil {
		return directory.User{}, err
	}
	c.LogAction("RBAC Update", fmt.Sprintf("Updated user %s role to %s", id, role), store.SeverityWarning)
	if c.portal.Settings.Get().RBACChangeWarnings {
		c.portal.notifyUser(id, fmt.Sprintf("Your role was changed to %s", role), store.NotifyWarning)
	}
	return updated, nil
}

// AddTask creates a Pending task assigned to the signed-in user. Without a user
// or with a blank title nothing is recorded and ok is false.
func (c *Client) AddTask(title, description string, priority store.Priority) (store.Task, bool) {
	user, ok := c.User()
	if !ok || strings.TrimSpace(title) == "" {
		return store.Task{}, false
	}
	if priority == "" {
		priority = store.PriorityMedium
	}
	task := c.portal.Tasks.Add(title, description, user.Name, priority)
	c.LogAction("Task Created", fmt.Sprintf("Task %q created by %s", title, user.Name), store.SeverityInfo)
	c.notify("Task created successfully", store.NotifySuccess)
	return task, true
}

// UpdateTaskStatus moves a task one column. An unknown id, a move to the current
// status, or a call without a user change nothing and record nothing.
func (c *Client) UpdateTaskStatus(id string, status store.TaskStatus) (store.Task, bool, error) {
	if _, ok := c.User(); !ok {
		return store.Task{}, false, nil
	}
	task, found, changed, err := c.portal.Tasks.UpdateStatus(id, status)
	if err != nil || !found || !changed {
		return task, false, err
	}
	c.LogAction("Task Updated", fmt.Sprintf("Task %q moved to %s", task.Title, status), store.SeverityInfo)
	return task, true, nil
}

type NewDocument struct {
	Type      store.DocumentType `json:"type"`
	Name      string             `json:"name"`
	URL       string             `json:"url"`
	ServiceID string             `json:"serviceId"`
}

// AddDocument files a document under the active tab's category. ServiceID
// defaults to the active sub-service.
func (c *Client) AddDocument(in NewDocument) (store.Document, error) {
	user, ok := c.User()
	if !ok {
		return store.Document{}, ErrNotAuthenticated
	}
	sel := c.Selection()
	filter, ok := navigation.DocumentFilterForTab(sel.ActiveTopTab)
	if !ok {
		return store.Document{}, fmt.Errorf("%w: %s", ErrNotDocumentTab, sel.ActiveTopTab)
	}
	if in.ServiceID == "" {
		in.ServiceID = sel.ActiveSubServiceID
	}
	if !c.portal.Catalog.HasSubService(in.ServiceID) {
		return store.Document{}, fmt.Errorf("%w: %q", catalog.ErrUnknownSubService, in.ServiceID)
	}
	if in.Type != store.DocumentFile && in.Type != store.DocumentURL {
		return store.Document{}, fmt.Errorf("%w: document type %q", ErrInvalidInput, in.Type)
	}
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.URL) == "" {
		return store.Document{}, fmt.Errorf("%w: name and url are required", ErrInvalidInput)
	}

	doc := c.portal.Data.AddDocument(store.Document{
		Type:        in.Type,
		Name:        in.Name,
		URL:         in.URL,
		Category:    filter.Category,
		SubCategory: filter.SubCategory,
		ServiceID:   in.ServiceID,
		UploadedBy:  user.Name,
	})
	c.LogAction("Document Added", fmt.Sprintf("Added %s %q to %s", strings.ToLower(string(doc.Type)), doc.Name, sel.ActiveTopTab), store.SeverityInfo)
	c.notify("Document added successfully", store.NotifySuccess)
	return doc, nil
}

type NewEvent struct {
	Name         string             `json:"name"`
	Schedule     string             `json:"schedule"`
	Venue        string             `json:"venue"`
	ActivityType store.ActivityType `json:"activityType"`
	Services     []string           `json:"services"`
}

func (c *Client) AddEvent(in NewEvent) (store.Event, error) {
	user, ok := c.User()
	if !ok {
		return store.Event{}, ErrNotAuthenticated
	}
	if strings.TrimSpace(in.Name) == "" {
		return store.Event{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if in.ActivityType != store.ActivityInCampus && in.ActivityType != store.ActivityOutOfCampus {
		return store.Event{}, fmt.Errorf("%w: activity type %q", ErrInvalidInput, in.ActivityType)
	}
	if err := c.checkServices(in.Services); err != nil {
		return store.Event{}, err
	}
	event := c.portal.Data.AddEvent(store.Event{
		Name:         in.Name,
		Schedule:     in.Schedule,
		Venue:        in.Venue,
		ActivityType: in.ActivityType,
		Services:     in.Services,
		CreatedBy:    user.Name,
	})
	c.LogAction("Event Created", fmt.Sprintf("Event %q created by %s", event.Name, user.Name), store.SeverityInfo)
	c.notify("Event created successfully", store.NotifySuccess)
	return event, nil
}

type NewLink struct {
	Name     string   `json:"name"`
	URL      string   `json:"url"`
	Services []string `json:"services"`
}

func (c *Client) AddLink(in NewLink) (store.Link, error) {
	if _, ok := c.User(); !ok {
		return store.Link{}, ErrNotAuthenticated
	}
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.URL) == "" {
		return store.Link{}, fmt.Errorf("%w: name and url are required", ErrInvalidInput)
	}
	if err := c.checkServices(in.Services); err != nil {
		return store.Link{}, err
	}
	link := c.portal.Data.AddLink(store.Link{Name: in.Name, URL: in.URL, Services: in.Services})
	c.LogAction("Link Added", fmt.Sprintf("Link %q added", link.Name), store.SeverityInfo)
	c.notify("Link added successfully", store.NotifySuccess)
	return link, nil
}

func (c *Client) checkServices(ids []string) error {
	for _, id := range ids {
		if !c.portal.Catalog.HasSubService(id) {
			return fmt.Errorf("%w: %q", catalog.ErrUnknownSubService, id)
		}
	}
	return nil
}

func (c *Client) Selection() navigation.Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection
}

func (c *Client) apply(fn func(navigation.Selection) navigation.Selection) navigation.Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selection = fn(c.selection)
	return c.selection
}

// SelectTopTab switches tabs and records the navigation when signed in.
func (c *Client) SelectTopTab(tab navigation.Tab) navigation.Selection {
	sel := c.apply(func(s navigation.Selection) navigation.Selection { return navigation.SelectTopTab(s, tab) })
	c.LogAction("Navigation", fmt.Sprintf("User navigated to %s tab", tab), store.SeverityInfo)
	return sel
}

func (c *Client) ToggleCategory(categoryID string) navigation.Selection {
	return c.apply(func(s navigation.Selection) navigation.Selection { return navigation.ToggleCategory(s, categoryID) })
}

func (c *Client) SelectSubService(subID, categoryID string) navigation.Selection {
	return c.apply(func(s navigation.Selection) navigation.Selection {
		return navigation.SelectSubService(s, subID, categoryID)
	})
}

func (c *Client) SwitchSubService(subID string) navigation.Selection {
	return c.apply(func(s navigation.Selection) navigation.Selection {
		return navigation.SwitchSubServiceWithinCategory(s, subID)
	})
}

// SelectSearchResult jumps to subID from a search for query. It reports false
// for ids that are not in the catalog.
func (c *Client) SelectSearchResult(query, subID string) (navigation.Selection, bool) {
	category, sub, ok := c.portal.Catalog.Locate(subID)
	if !ok {
		return c.Selection(), false
	}
	sel := c.SelectSubService(sub.ID, category.ID)
	c.LogAction("Search Selection", fmt.Sprintf("User searched for %q and selected %q", query, sub.Name), store.SeverityInfo)
	return sel, true
}

// OpenAdminConsole is limited to Admin users.
func (c *Client) OpenAdminConsole() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return ErrNotAuthenticated
	}
	if !rbac.Can(c.user.Role, rbac.ActionAdmin) {
		return ErrForbidden
	}
	c.adminOpen = true
	return nil
}

func (c *Client) CloseAdminConsole() {
	c.mu.Lock()
	c.adminOpen = false
	c.mu.Unlock()
}

func (c *Client) AdminConsoleOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.adminOpen
}
