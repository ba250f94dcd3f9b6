package task

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	beforeRe        = regexp.MustCompile(`(\d+)\s*(minute|min|hour|hr)s?\s*before`)
	beforeFlippedRe = regexp.MustCompile(`before\s+(\d+)\s*(minute|min|hour|hr)s?`)
)

// defaultReminderLead is used when the user just says "yes" to a reminder.
const defaultReminderLead = 30 * time.Minute

// ParseRelativeReminder resolves phrases like "30 minutes before" or
// "1 hour before" into a reminder timestamp relative to due. A bare
// affirmative ("yes", "sure") gets the default 30-minute lead.
func ParseRelativeReminder(message string, due time.Time) (time.Time, bool) {
	lower := strings.ToLower(strings.TrimSpace(message))

	groups := beforeRe.FindStringSubmatch(lower)
	if groups == nil {
		groups = beforeFlippedRe.FindStringSubmatch(lower)
	}
	if groups != nil {
		amount, _ := strconv.Atoi(groups[1])
		unit := groups[2]
		if strings.HasPrefix(unit, "h") {
			return due.Add(-time.Duration(amount) * time.Hour), true
		}
		return due.Add(-time.Duration(amount) * time.Minute), true
	}

	switch lower {
	case "yes", "yeah", "yep", "sure", "ok", "okay":
		return due.Add(-defaultReminderLead), true
	}

	return time.Time{}, false
}

var declineWords = map[string]struct{}{
	"no":   {},
	"nope": {},
	"nah":  {},
	"skip": {},
}

// IsReminderDecline reports whether message declines a reminder offer.
// Decline words are matched on word boundaries so phrases merely
// containing them ("at noon", "I don't know") are not declines.
func IsReminderDecline(message string) bool {
	for _, word := range strings.Fields(strings.ToLower(message)) {
		word = strings.Trim(word, ".,!?")
		if _, ok := declineWords[word]; ok {
			return true
		}
	}
	return false
}
