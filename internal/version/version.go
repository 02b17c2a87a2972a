// Package version maps the software version recorded in an experiment to the
// simulator release able to re-run it.
package version

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"

	"bemekit/internal/errs"
)

// Number is a version in YYMMDD form (v24.07.15 is 240715).
type Number int

func (n Number) String() string {
	return fmt.Sprintf("v%02d.%02d.%02d", int(n)/10000, (int(n)%10000)/100, int(n)%100)
}

type releaseRange struct {
	below   Number
	release Number
}

// The lowest version any release can run.
const minSupported Number = 230600

// Ranges are half-open: a version v maps to the first entry with v < below.
// Entries must stay sorted by below so that appending a newer range never
// changes the answer for older versions.
var releaseTable = []releaseRange{
	{below: 240600, release: 240400},
	{below: 241100, release: 240600},
	{below: 241200, release: 241100},
	{below: 250200, release: 241200},
	{below: 250603, release: 250200},
}

// Parse converts "vMAJOR.MINOR.PATCH" or a bare "YYMMDD" integer string to a Number.
func Parse(v string) (Number, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, errs.New(errs.CodeVersionIncompatible, "parse version", "empty version")
	}
	if !strings.HasPrefix(v, "v") {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, &errs.Error{Code: errs.CodeVersionIncompatible, Op: "parse version", Msg: fmt.Sprintf("version %q", v), Err: err}
		}
		return Number(n), nil
	}
	sv, err := semver.NewVersion(v)
	if err != nil {
		return 0, &errs.Error{Code: errs.CodeVersionIncompatible, Op: "parse version", Msg: fmt.Sprintf("version %q", v), Err: err}
	}
	if sv.Minor() > 99 || sv.Patch() > 99 {
		return 0, errs.New(errs.CodeVersionIncompatible, "parse version", "version %q has a component above 99", v)
	}
	return Number(sv.Major()*10000 + sv.Minor()*100 + sv.Patch()), nil
}

// ReleaseFor returns the release able to run problems written by version n.
func ReleaseFor(n Number) (Number, error) {
	if n < minSupported {
		return 0, errs.New(errs.CodeVersionIncompatible, "resolve release", "version %s (%d) is older than every release", n, int(n))
	}
	for _, r := range releaseTable {
		if n < r.below {
			return r.release, nil
		}
	}
	return 0, errs.New(errs.CodeVersionIncompatible, "resolve release", "version %s (%d) is newer than every release", n, int(n))
}

// Release resolves a version string to a release identifier such as
// "releases/24.6.0".
func Release(v string) (string, error) {
	n, err := Parse(v)
	if err != nil {
		return "", err
	}
	r, err := ReleaseFor(n)
	if err != nil {
		return "", err
	}
	return ReleaseID(r), nil
}

// ReleaseID formats a release number the way the builds directory names it.
func ReleaseID(r Number) string {
	return fmt.Sprintf("releases/%d.%d.%d", int(r)/10000, (int(r)%10000)/100, int(r)%100)
}
