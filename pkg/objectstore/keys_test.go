package objectstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordKey(t *testing.T) {
	assert.Equal(t, "records/p-1/1700000000000_scan.png", RecordKey("p-1", 1700000000000, "scan.png"))
	assert.Equal(t, "records/p-1/5_.._etc_passwd", RecordKey("p-1", 5, "../etc/passwd"))
	assert.Equal(t, "records/p-1/5_upload", RecordKey("p-1", 5, "  "))
	assert.Equal(t, "records/p-1/5_a_b.jpg", RecordKey("p-1", 5, `a\b.jpg`))
}

func TestParseRecordKey(t *testing.T) {
	patientID, millis, name, ok := ParseRecordKey("records/p-1/1700000000000_my_scan.png")
	assert.True(t, ok)
	assert.Equal(t, "p-1", patientID)
	assert.Equal(t, int64(1700000000000), millis)
	assert.Equal(t, "my_scan.png", name)

	for _, key := range []string{
		"",
		"user/p-1/1_a.png",
		"records//1_a.png",
		"records/p-1/a.png",
		"records/p-1/x_a.png",
		"records/p-1/1_",
	} {
		_, _, _, ok := ParseRecordKey(key)
		assert.False(t, ok, "key %q should not parse", key)
	}
}
