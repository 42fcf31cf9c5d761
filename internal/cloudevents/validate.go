package cloudevents

import (
	"fmt"
	"strings"

	"github.com/cloudevents/sdk-go/v2/event"
)

// Validate checks every event against the CloudEvents attribute rules.
func Validate(events []event.Event) error {
	var problems []string
	for i, e := range events {
		if err := e.Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("event %d (%s): %v", i, e.ID(), err))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("invalid cloudevents: %s", strings.Join(problems, "; "))
}
