package retry

import "strings"

// Class is the error classification the Retry Handler assigns to a
// driver error message.
type Class string

const (
	ClassTimeout   Class = "timeout"
	ClassNetwork   Class = "network"
	ClassFlakiness Class = "flakiness"
	ClassLocator   Class = "locator"
	ClassOther     Class = "other"
)

var classSubstrings = []struct {
	class      Class
	substrings []string
}{
	{ClassTimeout, []string{"timeout", "timed out", "waiting for selector", "waiting for element", "exceeded timeout"}},
	{ClassNetwork, []string{"net::err", "network error", "connection refused", "econnrefused", "socket hang up"}},
	{ClassFlakiness, []string{"not visible", "not attached", "not stable", "intercepts pointer events", "not actionable"}},
	{ClassLocator, []string{"locator", "selector", "element not found", "no element matches", "could not find"}},
}

// Classify maps err's message onto a Class via case-insensitive
// substring match, checked in the table's declared order.
func Classify(err error) Class {
	if err == nil {
		return ClassOther
	}

	message := strings.ToLower(err.Error())

	for _, c := range classSubstrings {
		for _, s := range c.substrings {
			if strings.Contains(message, s) {
				return c.class
			}
		}
	}

	return ClassOther
}
