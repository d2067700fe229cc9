package linkedin

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	urnPattern      = regexp.MustCompile(`urn:li:(?:activity|share|ugcPost):\d+`)
	activityPattern = regexp.MustCompile(`activity-(\d+)`)
)

// ExtractURN normalizes a post reference to a URN. Bare URNs pass
// through; linkedin.com URLs are parsed in their two common shapes:
//
//	https://www.linkedin.com/feed/update/urn:li:activity:12345/
//	https://www.linkedin.com/posts/username_slug-activity-12345-xxxx/
func ExtractURN(input string) (string, error) {
	if !strings.Contains(input, "linkedin.com") {
		return input, nil
	}

	if m := urnPattern.FindString(input); m != "" {
		return m, nil
	}

	if m := activityPattern.FindStringSubmatch(input); m != nil {
		return "urn:li:activity:" + m[1], nil
	}

	return "", fmt.Errorf("could not extract a post URN from %q", input)
}
