package gh

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
)

var disallowedBranchChars = regexp.MustCompile(`[^a-zA-Z0-9._/-]+`)

// BranchNamingOptions controls how remediation branch names are generated.
type BranchNamingOptions struct {
	// Prefix namespaces remediation branches. When empty the pushed branch is
	// reused as is.
	Prefix            string
	MaxLength         int
	HashLength        int
	SanitizeEmptyWith string
}

var defaultBranchNaming = BranchNamingOptions{
	MaxLength:         63,
	HashLength:        8,
	SanitizeEmptyWith: "branch",
}

// RemediationBranch returns the branch lint fixes for pushedBranch are
// committed to. Without a prefix that is pushedBranch itself; with one it is
// prefix/<sanitized pushedBranch>, length-limited with a hash suffix.
func RemediationBranch(pushedBranch string, opts ...BranchNamingOptions) string {
	config := defaultBranchNaming
	if len(opts) > 0 {
		o := opts[0]
		config.Prefix = strings.Trim(strings.TrimSpace(o.Prefix), "/")
		if o.MaxLength > 0 {
			config.MaxLength = o.MaxLength
		}
		if o.HashLength > 0 {
			config.HashLength = o.HashLength
		}
		if o.SanitizeEmptyWith != "" {
			config.SanitizeEmptyWith = o.SanitizeEmptyWith
		}
	}

	if config.Prefix == "" {
		return strings.TrimSpace(pushedBranch)
	}

	sanitized := sanitizeBranchSegment(pushedBranch, config)
	branch := fmt.Sprintf("%s/%s", config.Prefix, sanitized)
	if len(branch) <= config.MaxLength {
		return branch
	}

	available := config.MaxLength - len(config.Prefix) - 1
	if available < 1 {
		available = 1
	}

	return fmt.Sprintf("%s/%s", config.Prefix, shortenSegment(sanitized, available, config))
}

func sanitizeBranchSegment(segment string, config BranchNamingOptions) string {
	segment = strings.TrimSpace(segment)
	segment = strings.ReplaceAll(segment, " ", "-")
	segment = disallowedBranchChars.ReplaceAllString(segment, "-")
	segment = strings.Trim(segment, "-/.")

	if segment == "" {
		segment = config.SanitizeEmptyWith
	}

	segment = strings.ToLower(segment)
	segment = strings.ReplaceAll(segment, "-/-", "/")
	for strings.Contains(segment, "//") {
		segment = strings.ReplaceAll(segment, "//", "/")
	}
	for strings.Contains(segment, "--") {
		segment = strings.ReplaceAll(segment, "--", "-")
	}
	segment = strings.Trim(segment, "-")

	if segment == "" {
		segment = config.SanitizeEmptyWith
	}

	return segment
}

func shortenSegment(segment string, available int, config BranchNamingOptions) string {
	if len(segment) <= available {
		return segment
	}

	hashLen := config.HashLength
	if hashLen <= 0 {
		hashLen = 8
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(segment))
	hex := fmt.Sprintf("%0*x", hashLen, h.Sum32())
	suffix := "-" + hex

	if len(suffix) >= available {
		if len(hex) > available {
			return hex[:available]
		}
		return hex
	}

	base := strings.TrimRight(segment[:available-len(suffix)], "-./")
	if base == "" {
		return hex
	}
	return base + suffix
}
