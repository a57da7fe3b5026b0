package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/project-management-api/internal/dto"
	"github.com/yukikurage/project-management-api/internal/events"
	"github.com/yukikurage/project-management-api/internal/mailer"
	"github.com/yukikurage/project-management-api/internal/models"
	"github.com/yukikurage/project-management-api/internal/repository"
	"github.com/yukikurage/project-management-api/internal/testutil"
	"github.com/yukikurage/project-management-api/internal/utils"
	"github.com/yukikurage/project-management-api/internal/workflow"
	"gorm.io/gorm"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	for i, msg := range m.sent {
		out[i] = msg.Subject
	}
	return out
}

type NotificationTestSuite struct {
	suite.Suite
	db      *gorm.DB
	now     time.Time
	mailer  *fakeMailer
	engine  *workflow.Engine
	project *models.Project
	ctx     context.Context
}

func (suite *NotificationTestSuite) SetupTest() {
	suite.db = testutil.NewDB(suite.T())
	suite.now = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	suite.mailer = &fakeMailer{}
	suite.ctx = context.Background()

	suite.engine = workflow.NewEngine(repository.NewWorkflowRepository(suite.db), workflow.Config{
		MaxAttempts: 3,
		BaseBackoff: time.Minute,
	}).WithClock(func() time.Time { return suite.now })

	wf := NewWorkflow(repository.NewTaskRepository(suite.db), suite.mailer, time.UTC)
	suite.Require().NoError(suite.engine.Register(wf.Function()))

	testutil.CreateUser(suite.T(), suite.db, "user_lead", "lead@example.com")
	testutil.CreateUser(suite.T(), suite.db, "user_dev", "dev@example.com")
	testutil.CreateWorkspace(suite.T(), suite.db, "org_1", "user_lead", map[string]models.WorkspaceRole{
		"user_lead": models.RoleAdmin,
		"user_dev":  models.RoleMember,
	})
	suite.project = testutil.CreateProject(suite.T(), suite.db, "org_1", "user_lead", "user_lead", "user_dev")
}

func (suite *NotificationTestSuite) assign(task *models.Task) {
	evt, err := events.New(events.TaskAssigned, dto.TaskAssignedData{TaskID: task.ID, Origin: "https://app.example.com"})
	suite.Require().NoError(err)
	suite.Require().NoError(suite.engine.Dispatch(suite.ctx, evt))
}

func (suite *NotificationTestSuite) run() models.WorkflowRun {
	var run models.WorkflowRun
	suite.Require().NoError(suite.db.Where("function_id = ?", FunctionID).First(&run).Error)
	return run
}

func (suite *NotificationTestSuite) TestDueTodaySendsOnlyAssignmentEmail() {
	dev := "user_dev"
	task := testutil.CreateTask(suite.T(), suite.db, suite.project.ID, &dev, suite.now.Add(5*time.Hour))

	suite.assign(task)

	suite.Equal([]string{"New Task Assignment in " + suite.project.Name}, suite.mailer.subjects())
	suite.Equal("dev@example.com", suite.mailer.sent[0].To)
	suite.Contains(suite.mailer.sent[0].Body, "https://app.example.com/taskDetails?projectId="+suite.project.ID)
	suite.Contains(suite.mailer.sent[0].Body, "taskId="+task.ID)
	suite.Equal(models.RunCompleted, suite.run().Status)
}

func (suite *NotificationTestSuite) TestFutureOpenTaskGetsReminder() {
	dev := "user_dev"
	due := suite.now.Add(72 * time.Hour)
	task := testutil.CreateTask(suite.T(), suite.db, suite.project.ID, &dev, due)

	suite.assign(task)
	suite.Len(suite.mailer.subjects(), 1)

	run := suite.run()
	suite.Equal(models.RunSleeping, run.Status)
	suite.True(run.WakeAt.Equal(due))

	suite.now = due.Add(time.Minute)
	n, err := suite.engine.ResumeDue(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(1, n)

	suite.Equal([]string{
		"New Task Assignment in " + suite.project.Name,
		"Reminder for " + suite.project.Name,
	}, suite.mailer.subjects())
	suite.Equal(models.RunCompleted, suite.run().Status)
}

func (suite *NotificationTestSuite) TestFutureDoneTaskGetsNoReminder() {
	dev := "user_dev"
	due := suite.now.Add(72 * time.Hour)
	task := testutil.CreateTask(suite.T(), suite.db, suite.project.ID, &dev, due)

	suite.assign(task)
	suite.Require().NoError(suite.db.Model(task).Update("status", models.TaskStatusDone).Error)

	suite.now = due.Add(time.Minute)
	_, err := suite.engine.ResumeDue(suite.ctx)
	suite.Require().NoError(err)

	suite.Len(suite.mailer.subjects(), 1)
	suite.Equal(models.RunCompleted, suite.run().Status)
}

func (suite *NotificationTestSuite) TestDeletedTaskGetsNoReminder() {
	dev := "user_dev"
	due := suite.now.Add(48 * time.Hour)
	task := testutil.CreateTask(suite.T(), suite.db, suite.project.ID, &dev, due)

	suite.assign(task)
	suite.Require().NoError(suite.db.Delete(&models.Task{}, "id = ?", task.ID).Error)

	suite.now = due.Add(time.Minute)
	_, err := suite.engine.ResumeDue(suite.ctx)
	suite.Require().NoError(err)

	suite.Len(suite.mailer.subjects(), 1)
	suite.Equal(models.RunCompleted, suite.run().Status)
}

func (suite *NotificationTestSuite) TestReminderGoesToCurrentAssignee() {
	dev := "user_dev"
	due := suite.now.Add(48 * time.Hour)
	task := testutil.CreateTask(suite.T(), suite.db, suite.project.ID, &dev, due)

	suite.assign(task)
	suite.Require().NoError(suite.db.Model(task).Update("assignee_id", "user_lead").Error)

	suite.now = due.Add(time.Minute)
	_, err := suite.engine.ResumeDue(suite.ctx)
	suite.Require().NoError(err)

	suite.Require().Len(suite.mailer.sent, 2)
	suite.Equal("lead@example.com", suite.mailer.sent[1].To)
}

func (suite *NotificationTestSuite) TestUnassignedOrMissingTaskSendsNothing() {
	task := testutil.CreateTask(suite.T(), suite.db, suite.project.ID, nil, suite.now)
	suite.assign(task)
	suite.assign(&models.Task{ID: "missing"})

	suite.Empty(suite.mailer.subjects())
}

func (suite *NotificationTestSuite) TestMailFailureIsRetried() {
	dev := "user_dev"
	task := testutil.CreateTask(suite.T(), suite.db, suite.project.ID, &dev, suite.now)

	suite.mailer.err = errors.New("connection refused")
	suite.assign(task)
	suite.Equal(models.RunRetrying, suite.run().Status)

	suite.mailer.err = nil
	suite.now = suite.now.Add(time.Minute)
	_, err := suite.engine.ResumeDue(suite.ctx)
	suite.Require().NoError(err)

	suite.Len(suite.mailer.subjects(), 1)
	suite.Equal(models.RunCompleted, suite.run().Status)
}

func (suite *NotificationTestSuite) TestTaskLink() {
	suite.Equal("https://app.example.com/taskDetails?projectId=p1&taskId=t1",
		TaskLink("https://app.example.com/", "p1", "t1"))
}

func TestNotificationTestSuite(t *testing.T) {
	suite.Run(t, new(NotificationTestSuite))
}

func TestPlainDueDatesFollowConfiguredZone(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	db := testutil.NewDB(t)
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, ny)
	m := &fakeMailer{}
	engine := workflow.NewEngine(repository.NewWorkflowRepository(db), workflow.Config{
		MaxAttempts: 3,
		BaseBackoff: time.Minute,
	}).WithClock(func() time.Time { return now })
	require.NoError(t, engine.Register(NewWorkflow(repository.NewTaskRepository(db), m, ny).Function()))

	testutil.CreateUser(t, db, "user_lead", "lead@example.com")
	testutil.CreateUser(t, db, "user_dev", "dev@example.com")
	testutil.CreateWorkspace(t, db, "org_1", "user_lead", map[string]models.WorkspaceRole{
		"user_lead": models.RoleAdmin,
		"user_dev":  models.RoleMember,
	})
	project := testutil.CreateProject(t, db, "org_1", "user_lead", "user_lead", "user_dev")

	dispatch := func(due string) {
		t.Helper()
		dueDate, err := utils.ParseDate(due, ny)
		require.NoError(t, err)
		dev := "user_dev"
		task := testutil.CreateTask(t, db, project.ID, &dev, dueDate)
		evt, err := events.New(events.TaskAssigned, dto.TaskAssignedData{TaskID: task.ID})
		require.NoError(t, err)
		require.NoError(t, engine.Dispatch(context.Background(), evt))
	}

	dispatch("2025-06-02")
	assert.Equal(t, []string{"New Task Assignment in " + project.Name}, m.subjects())

	dispatch("2025-06-04")
	var sleeping models.WorkflowRun
	require.NoError(t, db.Where("function_id = ? AND status = ?", FunctionID, models.RunSleeping).First(&sleeping).Error)
	assert.True(t, sleeping.WakeAt.Equal(time.Date(2025, 6, 4, 0, 0, 0, 0, ny)))
	assert.Len(t, m.subjects(), 2)
}
