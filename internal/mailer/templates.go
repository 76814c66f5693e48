package mailer

import (
	"fmt"

	"github.com/tasktrackerhq/task-tracker-api/internal/model"
	"github.com/tasktrackerhq/task-tracker-api/internal/timeutil"
)

// OtpMessage builds the one-time code email.
func OtpMessage(to, code string, expireMinutes int) Message {
	return Message{
		To:      to,
		Subject: "Your TaskTracker OTP",
		Text: fmt.Sprintf(
			"Your OTP is %s. It expires in %d minutes. If you didn't request this, ignore the email.",
			code, expireMinutes,
		),
		HTML: fmt.Sprintf(
			"<p>Your OTP is <b>%s</b>.</p><p>This code expires in %d minutes.</p>",
			code, expireMinutes,
		),
		Kind: model.EmailKindOtp,
	}
}

// WelcomeMessage builds the post-signup greeting.
func WelcomeMessage(to, name string) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Welcome to TaskTracker, %s", name),
		Text:    fmt.Sprintf("Welcome %s! Get started by creating your first task.", name),
		HTML:    fmt.Sprintf("<h3>Welcome %s!</h3><p>Get started by creating your first task.</p>", name),
		Kind:    model.EmailKindWelcome,
	}
}

// TaskCreatedMessage builds the task-created notification.
func TaskCreatedMessage(to string, task *model.Task) Message {
	due := "N/A"
	if task.DueDate != nil {
		due = timeutil.ToISTString(*task.DueDate)
	}

	return Message{
		To:      to,
		Subject: fmt.Sprintf("New Task Created: %s", task.Title),
		Text:    fmt.Sprintf("Task %q created. Due: %s", task.Title, due),
		HTML:    fmt.Sprintf("<p>Task \"<b>%s</b>\" created.</p><p>Due: %s</p>", task.Title, due),
		Kind:    model.EmailKindTask,
		TaskID:  task.ID.Hex(),
	}
}

// ReminderMessage builds the due-soon reminder.
func ReminderMessage(to string, task *model.Task) Message {
	due := ""
	if task.DueDate != nil {
		due = timeutil.ToISTString(*task.DueDate)
	}

	return Message{
		To:      to,
		Subject: fmt.Sprintf("Reminder: %s due soon", task.Title),
		Text:    fmt.Sprintf("Reminder: Task %q is due at %s", task.Title, due),
		HTML:    fmt.Sprintf("<p>Reminder: Task \"<b>%s</b>\" is due at %s.</p>", task.Title, due),
		Kind:    model.EmailKindReminder,
		TaskID:  task.ID.Hex(),
	}
}
