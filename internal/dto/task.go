package dto

// TaskAssignedData is the payload of the app/task.assigned event
type TaskAssignedData struct {
	TaskID string `json:"taskId"`
	Origin string `json:"origin"`
}
