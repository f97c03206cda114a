// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package ingest

import (
	"path"
	"regexp"
	"strings"
)

// Object key layout.
const (
	IncomingPrefix = "incoming/"
	DamsmartPrefix = "damsmart/"
	RejectedPrefix = "rejected/"
	OutputPrefix   = "output/"

	// SpecialFolder holds administrative documents in the catalog bucket.
	SpecialFolder = "pdsc_admin"

	// ManualTagKey opts an object out of trigger-driven processing when set
	// to "true"; an operator processes it by hand with "ingest run".
	ManualTagKey = "manual"

	MaxItemIdentifierLength = 30
)

var (
	essenceKeyPattern = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9_]*)-([A-Za-z0-9][A-Za-z0-9_]*)-(.+)\.([A-Za-z0-9]+)$`)
	specialKeyPattern = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9_]*)-deposit\.pdf$`)
	specialNearMiss   = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9_]*)-deposit([^A-Za-z0-9_]|$)`)
)

// BaseName is the final path segment of an object key.
func BaseName(objectKey string) string {
	return path.Base(objectKey)
}

// RelativeKey strips the leading trigger prefix ("incoming/", "damsmart/").
func RelativeKey(objectKey string) string {
	if idx := strings.Index(objectKey, "/"); idx >= 0 {
		return objectKey[idx+1:]
	}
	return objectKey
}

// RejectedKey is the quarantine location mirroring the original relative path.
func RejectedKey(objectKey string) string {
	return RejectedPrefix + RelativeKey(objectKey)
}

// OutputPrefixFor is the scratch prefix for derived artifacts of a file.
func OutputPrefixFor(filename string) string {
	return OutputPrefix + filename + "/"
}

// RenditionName names the access copy of filename. Distinct filenames give
// distinct names, including the two halves of a DAMSmart pair.
func RenditionName(filename, extension string) string {
	return filename + "-access." + extension
}

// IsTriggerKey reports whether the key lives under a prefix that starts executions.
func IsTriggerKey(objectKey string) bool {
	return strings.HasPrefix(objectKey, IncomingPrefix) || strings.HasPrefix(objectKey, DamsmartPrefix)
}

// ParseKey parses "<prefix>/<Collection>-<Item>-<rest>.<ext>".
func ParseKey(objectKey string) (Details, error) {
	filename := BaseName(objectKey)
	m := essenceKeyPattern.FindStringSubmatch(filename)
	if m == nil {
		return Details{}, ValidationWithData(map[string]any{"objectKey": objectKey},
			"file name %q does not match <Collection>-<Item>-<name>.<ext>", filename)
	}
	if len(m[2]) > MaxItemIdentifierLength {
		return Details{}, ValidationWithData(map[string]any{"itemIdentifier": m[2]},
			"item identifier %q is longer than %d characters", m[2], MaxItemIdentifierLength)
	}
	return Details{
		CollectionIdentifier: m[1],
		ItemIdentifier:       m[2],
		Filename:             filename,
		Extension:            strings.ToLower(m[4]),
	}, nil
}

// MatchSpecial reports whether the key names a collection deposit form.
// Keys that look like a deposit form but do not match exactly fail closed.
func MatchSpecial(objectKey string) (collection string, ok bool, err error) {
	if !strings.HasPrefix(objectKey, IncomingPrefix) {
		return "", false, nil
	}
	filename := BaseName(objectKey)
	if m := specialKeyPattern.FindStringSubmatch(filename); m != nil {
		return m[1], true, nil
	}
	if specialNearMiss.MatchString(filename) {
		return "", false, &StepError{
			Name:    ErrNameInvalidSpecialFile,
			Message: "deposit form must be named <Collection>-deposit.pdf, got " + filename,
			Data:    map[string]any{"objectKey": objectKey},
		}
	}
	return "", false, nil
}

// CatalogKey is where an essence lands in the catalog bucket.
func CatalogKey(collection, item, filename string) string {
	return collection + "/" + item + "/" + filename
}

// SpecialCatalogKey is where a deposit form lands in the catalog bucket.
func SpecialCatalogKey(collection, filename string) string {
	return collection + "/" + SpecialFolder + "/" + filename
}

// Stem is the filename without its extension.
func Stem(filename string) string {
	return strings.TrimSuffix(filename, path.Ext(filename))
}
