package audit

import (
	"bytes"
	"strings"
	"time"
)

// csvColumns is the bit-exact export schema; downstream tooling parses it,
// so order and quoting must not change.
var csvColumns = []string{"Timestamp", "Actor Name", "Actor Email", "Action", "Details", "Impact"}

// ExportCSV renders entries as CSV bytes: one header line plus one line per
// entry, every field quoted, embedded quotes doubled.
func ExportCSV(entries []Entry) []byte {
	var buf bytes.Buffer
	writeCSVRow(&buf, csvColumns)
	for _, entry := range entries {
		writeCSVRow(&buf, []string{
			entry.At.UTC().Format(time.RFC3339),
			entry.Actor.Name,
			entry.Actor.Email,
			entry.Action,
			entry.Detail,
			string(entry.Impact),
		})
	}
	return buf.Bytes()
}

func writeCSVRow(buf *bytes.Buffer, fields []string) {
	for i, field := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strings.ReplaceAll(field, `"`, `""`))
		buf.WriteByte('"')
	}
	buf.WriteByte('\n')
}
