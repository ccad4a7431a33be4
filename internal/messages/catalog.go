// Package messages supplies human-readable notification text for event
// kinds. Callers consult it when constructing requests; the scheduler
// only uses the grouped-batch summaries.
package messages

import (
	"fmt"

	"notigate/internal/notify"
)

// Catalog is the built-in English template set.
type Catalog struct{}

func NewCatalog() *Catalog { return &Catalog{} }

// WorkoutCompleted describes a finished workout.
func (c *Catalog) WorkoutCompleted(kind string, minutes int) (title, body string) {
	return "Workout Complete", fmt.Sprintf("Nice work! You finished a %d-minute %s.", minutes, kind)
}

// Streak celebrates consecutive active days.
func (c *Catalog) Streak(days int) (title, body string) {
	return fmt.Sprintf("%d-Day Streak", days), "Keep the momentum going."
}

// Milestone marks a lifetime achievement.
func (c *Catalog) Milestone(name string) (title, body string) {
	return "Milestone Reached", fmt.Sprintf("You hit %s. Congratulations!", name)
}

// NewFollower announces a new follower.
func (c *Catalog) NewFollower(username string) (title, body string) {
	return "New Follower", fmt.Sprintf("%s started following you.", username)
}

// Kudos announces a reaction to a workout.
func (c *Catalog) Kudos(username string) (title, body string) {
	return "Workout Kudos", fmt.Sprintf("%s gave you kudos.", username)
}

// Comment announces a new comment.
func (c *Catalog) Comment(username string) (title, body string) {
	return "New Comment", fmt.Sprintf("%s commented on your workout.", username)
}

// GroupedTitle implements notify.Templates.
func (c *Catalog) GroupedTitle(t notify.Type, n int) string {
	switch t {
	case notify.TypeKudos:
		return fmt.Sprintf("%d Workout Kudos", n)
	case notify.TypeNewFollower:
		return fmt.Sprintf("%d New Followers", n)
	case notify.TypeComment:
		return fmt.Sprintf("%d New Comments", n)
	case notify.TypeWorkoutCompleted:
		return fmt.Sprintf("%d Workouts Completed", n)
	case notify.TypeStreak:
		return fmt.Sprintf("%d Streak Updates", n)
	case notify.TypeMilestone:
		return fmt.Sprintf("%d Milestones Reached", n)
	case notify.TypeReminder:
		return fmt.Sprintf("%d Reminders", n)
	default:
		return fmt.Sprintf("%d Notifications", n)
	}
}

// GroupedBody implements notify.Templates.
func (c *Catalog) GroupedBody(t notify.Type, n int) string {
	switch t {
	case notify.TypeNewFollower:
		return "See who joined your circle."
	case notify.TypeKudos:
		return "Your followers appreciated your workouts."
	default:
		return "Open the app to see what happened."
	}
}
