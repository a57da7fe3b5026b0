package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/project-management-api/internal/events"
	"github.com/yukikurage/project-management-api/internal/models"
	"github.com/yukikurage/project-management-api/internal/repository"
	"github.com/yukikurage/project-management-api/internal/testutil"
	"github.com/yukikurage/project-management-api/internal/workflow"
	"gorm.io/gorm"
)

type IdentitySyncTestSuite struct {
	suite.Suite
	db     *gorm.DB
	engine *workflow.Engine
	ctx    context.Context
}

func (suite *IdentitySyncTestSuite) SetupTest() {
	suite.db = testutil.NewDB(suite.T())
	suite.ctx = context.Background()

	suite.engine = workflow.NewEngine(repository.NewWorkflowRepository(suite.db), workflow.Config{
		MaxAttempts: 3,
		BaseBackoff: time.Minute,
	})
	sync := NewSync(repository.NewUserRepository(suite.db), repository.NewWorkspaceRepository(suite.db))
	suite.Require().NoError(suite.engine.Register(sync.Functions()...))
}

func (suite *IdentitySyncTestSuite) send(id, name, data string) {
	suite.Require().NoError(suite.engine.Dispatch(suite.ctx, events.Event{ID: id, Name: name, Data: []byte(data)}))
}

func (suite *IdentitySyncTestSuite) runStatus(eventID string) models.WorkflowRunStatus {
	var run models.WorkflowRun
	suite.Require().NoError(suite.db.Where("event_id = ?", eventID).First(&run).Error)
	return run.Status
}

const userPayload = `{
	"id": "user_1",
	"first_name": "Ada",
	"last_name": "Lovelace",
	"image_url": "https://img.example.com/ada.png",
	"email_addresses": [{"id": "idn_1", "email_address": "ada@example.com"}]
}`

func (suite *IdentitySyncTestSuite) TestUserCreatedAndUpdated() {
	suite.send("evt_1", events.ClerkUserCreated, userPayload)

	var user models.User
	suite.Require().NoError(suite.db.First(&user, "id = ?", "user_1").Error)
	suite.Equal("ada@example.com", user.Email)
	suite.Equal("Ada Lovelace", user.Name)
	suite.Equal("https://img.example.com/ada.png", user.Image)

	suite.send("evt_2", events.ClerkUserUpdated, `{
		"id": "user_1", "first_name": "Ada", "last_name": "King",
		"primary_email_address_id": "idn_2",
		"email_addresses": [{"id": "idn_1", "email_address": "ada@example.com"}, {"id": "idn_2", "email_address": "ada.king@example.com"}]
	}`)

	suite.Require().NoError(suite.db.First(&user, "id = ?", "user_1").Error)
	suite.Equal("ada.king@example.com", user.Email)
	suite.Equal("Ada King", user.Name)
}

func (suite *IdentitySyncTestSuite) TestUserUpdatedReplayIsIdempotent() {
	suite.send("evt_1", events.ClerkUserUpdated, userPayload)
	suite.send("evt_1", events.ClerkUserUpdated, userPayload)
	suite.send("evt_replayed", events.ClerkUserUpdated, userPayload)

	var users []models.User
	suite.Require().NoError(suite.db.Find(&users).Error)
	suite.Require().Len(users, 1)
	suite.Equal("Ada Lovelace", users[0].Name)

	var runs int64
	suite.db.Model(&models.WorkflowRun{}).Count(&runs)
	suite.Equal(int64(2), runs)
}

func (suite *IdentitySyncTestSuite) TestOrganizationCreatedAddsAdmin() {
	suite.send("evt_1", events.ClerkOrganizationCreated, `{
		"id": "org_1", "name": "Acme", "slug": "acme", "created_by": "user_1", "image_url": "https://img.example.com/acme.png"
	}`)

	var ws models.Workspace
	suite.Require().NoError(suite.db.Preload("Members").First(&ws, "id = ?", "org_1").Error)
	suite.Equal("Acme", ws.Name)
	suite.Equal("user_1", ws.OwnerID)
	suite.JSONEq(`{}`, string(ws.Settings))
	suite.Require().Len(ws.Members, 1)
	suite.Equal(models.RoleAdmin, ws.Members[0].Role)

	suite.send("evt_2", events.ClerkOrganizationUpdated, `{"id": "org_1", "name": "Acme Corp", "slug": "acme-corp", "image_url": ""}`)
	suite.Require().NoError(suite.db.First(&ws, "id = ?", "org_1").Error)
	suite.Equal("Acme Corp", ws.Name)
	suite.Equal("acme-corp", ws.Slug)
	suite.Equal("user_1", ws.OwnerID)
}

func (suite *IdentitySyncTestSuite) TestInvitationAccepted() {
	testutil.CreateUser(suite.T(), suite.db, "user_2", "bob@example.com")
	testutil.CreateWorkspace(suite.T(), suite.db, "org_1", "user_1", nil)

	suite.send("evt_1", events.ClerkInvitationAccepted, `{"organization_id": "org_1", "user_id": "user_2", "role_name": "org:admin"}`)
	suite.send("evt_2", events.ClerkInvitationAccepted, `{"organization_id": "org_1", "email_address": "bob@example.com", "role_name": "org:member"}`)

	var members []models.WorkspaceMember
	suite.Require().NoError(suite.db.Where("workspace_id = ?", "org_1").Find(&members).Error)
	suite.Require().Len(members, 1)
	suite.Equal(models.RoleMember, members[0].Role)
}

func (suite *IdentitySyncTestSuite) TestInvitationWithUnknownRoleDefaultsToMember() {
	testutil.CreateWorkspace(suite.T(), suite.db, "org_1", "user_1", nil)

	suite.send("evt_1", events.ClerkInvitationAccepted, `{"organization_id": "org_1", "user_id": "user_3", "role_name": "org:billing"}`)

	var member models.WorkspaceMember
	suite.Require().NoError(suite.db.Where("user_id = ?", "user_3").First(&member).Error)
	suite.Equal(models.RoleMember, member.Role)
}

func (suite *IdentitySyncTestSuite) TestInvitationForUnknownEmailIsRetried() {
	suite.send("evt_1", events.ClerkInvitationAccepted, `{"organization_id": "org_1", "email_address": "nobody@example.com", "role_name": "org:member"}`)
	suite.Equal(models.RunRetrying, suite.runStatus("evt_1"))
}

func (suite *IdentitySyncTestSuite) TestOrganizationDeletedCascades() {
	testutil.CreateUser(suite.T(), suite.db, "user_1", "lead@example.com")
	testutil.CreateWorkspace(suite.T(), suite.db, "org_1", "user_1", map[string]models.WorkspaceRole{"user_1": models.RoleAdmin})
	testutil.CreateWorkspace(suite.T(), suite.db, "org_2", "user_1", map[string]models.WorkspaceRole{"user_1": models.RoleAdmin})
	project := testutil.CreateProject(suite.T(), suite.db, "org_1", "user_1", "user_1")
	other := testutil.CreateProject(suite.T(), suite.db, "org_2", "user_1", "user_1")
	task := testutil.CreateTask(suite.T(), suite.db, project.ID, nil, time.Now())
	suite.Require().NoError(suite.db.Create(&models.Comment{TaskID: task.ID, UserID: "user_1", Content: "hi"}).Error)

	suite.send("evt_1", events.ClerkOrganizationDeleted, `{"id": "org_1", "deleted": true}`)

	var count int64
	suite.db.Model(&models.Workspace{}).Where("id = ?", "org_1").Count(&count)
	suite.Zero(count)
	suite.db.Model(&models.Project{}).Where("id = ?", project.ID).Count(&count)
	suite.Zero(count)
	suite.db.Model(&models.Task{}).Count(&count)
	suite.Zero(count)
	suite.db.Model(&models.Comment{}).Count(&count)
	suite.Zero(count)
	suite.db.Model(&models.WorkspaceMember{}).Count(&count)
	suite.Equal(int64(1), count)
	suite.db.Model(&models.Project{}).Where("id = ?", other.ID).Count(&count)
	suite.Equal(int64(1), count)
}

func (suite *IdentitySyncTestSuite) TestUserDeletedClearsReferences() {
	testutil.CreateUser(suite.T(), suite.db, "user_1", "lead@example.com")
	testutil.CreateUser(suite.T(), suite.db, "user_2", "dev@example.com")
	testutil.CreateWorkspace(suite.T(), suite.db, "org_1", "user_1", map[string]models.WorkspaceRole{
		"user_1": models.RoleAdmin,
		"user_2": models.RoleMember,
	})
	project := testutil.CreateProject(suite.T(), suite.db, "org_1", "user_2", "user_1", "user_2")
	dev := "user_2"
	task := testutil.CreateTask(suite.T(), suite.db, project.ID, &dev, time.Now())
	suite.Require().NoError(suite.db.Create(&models.Comment{TaskID: task.ID, UserID: "user_2", Content: "mine"}).Error)

	suite.send("evt_1", events.ClerkUserDeleted, `{"id": "user_2", "deleted": true}`)

	var count int64
	suite.db.Model(&models.User{}).Where("id = ?", "user_2").Count(&count)
	suite.Zero(count)
	suite.db.Model(&models.WorkspaceMember{}).Where("user_id = ?", "user_2").Count(&count)
	suite.Zero(count)
	suite.db.Model(&models.ProjectMember{}).Where("user_id = ?", "user_2").Count(&count)
	suite.Zero(count)
	suite.db.Model(&models.Comment{}).Count(&count)
	suite.Zero(count)

	var reloaded models.Task
	suite.Require().NoError(suite.db.First(&reloaded, "id = ?", task.ID).Error)
	suite.Nil(reloaded.AssigneeID)

	var lead models.Project
	suite.Require().NoError(suite.db.First(&lead, "id = ?", project.ID).Error)
	suite.Nil(lead.TeamLeadID)
}

func TestIdentitySyncTestSuite(t *testing.T) {
	suite.Run(t, new(IdentitySyncTestSuite))
}
