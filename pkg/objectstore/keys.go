package objectstore

import (
	"fmt"
	"strconv"
	"strings"
)

const recordsPrefix = "records"

// RecordKey builds records/{patient_id}/{millis}_{filename}.
func RecordKey(patientID string, millis int64, fileName string) string {
	return fmt.Sprintf("%s/%s/%d_%s", recordsPrefix, patientID, millis, SanitizeFileName(fileName))
}

// ParseRecordKey is the inverse of RecordKey.
func ParseRecordKey(key string) (patientID string, millis int64, fileName string, ok bool) {
	parts := strings.SplitN(key, "/", 3)
	if len(parts) != 3 || parts[0] != recordsPrefix || parts[1] == "" {
		return "", 0, "", false
	}
	ts, name, found := strings.Cut(parts[2], "_")
	if !found || name == "" {
		return "", 0, "", false
	}
	ms, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", 0, "", false
	}
	return parts[1], ms, name, true
}

// SanitizeFileName keeps a file name inside its own path segment.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\':
			return '_'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "upload"
	}
	return name
}
