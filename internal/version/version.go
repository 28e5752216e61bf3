package version

import (
	"fmt"
	"os/exec"
	"strings"
)

// Set through -ldflags at release time.
var (
	Version = "0.1.0"
	Commit  = "unknown"
	Date    = "unknown"
)

type gitRunner func(args ...string) (string, error)

// Resolve returns the version string. Outside a release tag it carries the
// `git describe` suffix of the checkout the binary runs from.
func Resolve() string {
	return resolveVersion(Version, runGit)
}

// Details is the long form printed by `voxbatch version`.
func Details() string {
	return formatDetails(Resolve(), Commit, Date)
}

func formatDetails(version, commit, date string) string {
	var extra []string
	if commit != "" && commit != "unknown" {
		extra = append(extra, "commit "+commit)
	}
	if date != "" && date != "unknown" {
		extra = append(extra, "built "+date)
	}

	if len(extra) == 0 {
		return fmt.Sprintf("voxbatch v%s", version)
	}
	return fmt.Sprintf("voxbatch v%s (%s)", version, strings.Join(extra, ", "))
}

func resolveVersion(base string, git gitRunner) string {
	if base == "" {
		base = "0.0.0"
	}

	suffix := describeSuffix(base, git)
	if suffix == "" {
		return base
	}
	return base + "-" + suffix
}

func describeSuffix(base string, git gitRunner) string {
	if _, err := git("rev-parse", "--git-dir"); err != nil {
		return ""
	}

	if _, err := git("describe", "--tags", "--exact-match"); err == nil {
		return ""
	}

	desc, err := git("describe", "--tags", "--dirty", "--always")
	if err != nil {
		return ""
	}

	return strings.TrimPrefix(desc, "v"+base+"-")
}

func runGit(args ...string) (string, error) {
	out, err := exec.Command("git", args...).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
