package seed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portal/api/internal/directory"
	"portal/api/internal/rbac"
	"portal/api/internal/store"
)

var seedTime = time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

func TestDefaultFixtures(t *testing.T) {
	fx, err := Default(seedTime)
	require.NoError(t, err)

	categories := fx.Catalog.Categories()
	require.Len(t, categories, 4)
	assert.Equal(t, "sa_l3", categories[0].ID)
	assert.Equal(t, "Build & Delivery", categories[2].Title)
	assert.Len(t, fx.Catalog.Entries(), 8)

	assert.Len(t, fx.Catalog.Team("unix_l2").Employees, 20)
	assert.Equal(t, "Mike Ross", fx.Catalog.Team("apac_build").Managers.L1)
	assert.Contains(t, fx.Catalog.Detail("cas_services").Achievements, "ISO 27001 Audit Passed")

	require.Len(t, fx.Users, 3)
	assert.Equal(t, rbac.RoleAdmin, fx.Users[0].Role)
	require.Len(t, fx.Tasks, 3)
	assert.Equal(t, store.StatusInProgress, fx.Tasks[1].Status)
	assert.Equal(t, seedTime, fx.Tasks[0].CreatedAt)

	require.Len(t, fx.SystemLogs, 4)
	assert.Equal(t, seedTime.Add(-5*time.Minute), fx.SystemLogs[0].Timestamp)
	assert.Equal(t, seedTime.Add(-200*time.Minute), fx.SystemLogs[3].Timestamp)

	require.Len(t, fx.Integrations, 4)
	assert.Nil(t, fx.Integrations[3].LastSync)
	require.NotNil(t, fx.Integrations[2].LastSync)
	assert.Equal(t, store.IntegrationError, fx.Integrations[2].Status)

	assert.True(t, fx.NotificationSettings.DowntimeAlerts)
	assert.False(t, fx.NotificationSettings.RBACChangeWarnings)
}

func TestDefaultAccountsAcceptPassword123(t *testing.T) {
	fx, err := Default(seedTime)
	require.NoError(t, err)
	dir, err := directory.New(fx.Users)
	require.NoError(t, err)
	auth, err := directory.NewStatic(dir, fx.Accounts, 0)
	require.NoError(t, err)

	for _, tc := range []struct {
		username string
		role     rbac.Role
	}{{"admin", rbac.RoleAdmin}, {"editor", rbac.RoleEditor}, {"viewer", rbac.RoleViewer}} {
		user, err := auth.Authenticate(context.Background(), directory.Credentials{Username: tc.username, Password: "password123"})
		require.NoError(t, err, tc.username)
		assert.Equal(t, tc.role, user.Role)
	}
}

func TestFixturesReferentialIntegrity(t *testing.T) {
	fx, err := Default(seedTime)
	require.NoError(t, err)
	require.NoError(t, fx.Validate())

	for _, doc := range fx.Documents {
		assert.True(t, fx.Catalog.HasSubService(doc.ServiceID), doc.ID)
	}
	for _, event := range fx.Events {
		for _, id := range event.Services {
			assert.True(t, fx.Catalog.HasSubService(id), event.ID)
		}
	}
	for _, link := range fx.Links {
		for _, id := range link.Services {
			assert.True(t, fx.Catalog.HasSubService(id), link.ID)
		}
	}
}

func TestParseRejectsDanglingReferences(t *testing.T) {
	data := []byte(`
categories:
  - id: sa_l3
    title: SA L3 Services
    subServices:
      - { id: unix_l3, name: Unix L3 }
links:
  - { id: k1, name: x, url: y, services: [ghost] }
`)
	_, err := Parse(data, seedTime)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestParseRejectsUnknownTaskStatus(t *testing.T) {
	data := []byte(`
categories: []
tasks:
  - { id: t1, title: x, status: Blocked, priority: High }
`)
	_, err := Parse(data, seedTime)
	assert.ErrorIs(t, err, store.ErrInvalidStatus)
}
