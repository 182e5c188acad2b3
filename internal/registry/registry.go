// Package registry maps media center releases to the schema versions they expect.
//
// New releases are added by appending a row to expectations; lookups never
// guess for releases that are not listed.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"mysqlassistant/internal/model"
)

var ErrUnknownRelease = errors.New("unknown platform release")

// Expectation holds the schema versions a release creates and reads.
type Expectation struct {
	Release int
	Video   int
	Music   int
}

var expectations = []Expectation{
	{Release: 17, Video: 107, Music: 60},
	{Release: 18, Video: 116, Music: 72},
	{Release: 19, Video: 119, Music: 82},
	{Release: 20, Video: 121, Music: 82},
	{Release: 21, Video: 122, Music: 84},
}

func Lookup(release int) (Expectation, error) {
	for _, e := range expectations {
		if e.Release == release {
			return e, nil
		}
	}
	return Expectation{}, fmt.Errorf("%w: %d", ErrUnknownRelease, release)
}

// ExpectedVersion returns the schema version release expects for db.
func ExpectedVersion(release int, db model.LogicalDB) (int, error) {
	e, err := Lookup(release)
	if err != nil {
		return 0, err
	}
	switch db {
	case model.Video:
		return e.Video, nil
	case model.Music:
		return e.Music, nil
	default:
		return 0, fmt.Errorf("unknown logical database %q", db)
	}
}

// Releases returns every known release, oldest first.
func Releases() []int {
	out := make([]int, 0, len(expectations))
	for _, e := range expectations {
		out = append(out, e.Release)
	}
	sort.Ints(out)
	return out
}

// Latest is the newest known release.
func Latest() int {
	r := Releases()
	return r[len(r)-1]
}

// ParseRelease extracts the major release from a build version label
// such as "20.1 (20.1.0) Git:20230311-8f6a6b1a6a".
func ParseRelease(build string) (int, error) {
	build = strings.TrimSpace(build)
	if fields := strings.Fields(build); len(fields) > 0 {
		build = fields[0]
	}
	major, _, _ := strings.Cut(build, ".")
	n, err := strconv.Atoi(major)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("parse release from %q: invalid major version", build)
	}
	return n, nil
}
