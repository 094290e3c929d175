package messagequeue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Validate checks data against the schema of subject. Subjects outside the
// tasks namespace only need to be valid JSON. Created and updated events
// must carry the task.
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on subject %s", subject)
	}
	if !strings.HasPrefix(subject, "tasks.") {
		return nil
	}

	var p TaskEventPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", subject, err)
	}
	if p.TaskID == "" || p.UserID == "" {
		return fmt.Errorf("schema validation failed for %s: %w", subject, errors.New("task_id and user_id are required"))
	}
	if carriesTask(subject) && p.Task == nil {
		return fmt.Errorf("schema validation failed for %s: %w", subject, errors.New("task is required"))
	}
	return nil
}

func carriesTask(subject string) bool {
	return IsTaskSubject(subject) && subject != SubjectTaskDeleted
}
