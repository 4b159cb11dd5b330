package llm

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// serverSentEventScanner reads Server-Sent Events from a stream.
type serverSentEventScanner struct {
	scanner *bufio.Scanner
}

// newServerSentEventScanner creates a new SSE scanner.
func newServerSentEventScanner(r io.Reader) *serverSentEventScanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &serverSentEventScanner{scanner: s}
}

// Scan reads the next line of data.
func (s *serverSentEventScanner) Scan() bool {
	return s.scanner.Scan()
}

// Data returns the payload of a "data:" line. Other lines (comments, event
// names, blank separators) report false.
func (s *serverSentEventScanner) Data() (string, bool) {
	line := s.scanner.Text()
	if !strings.HasPrefix(line, "data:") {
		return "", false
	}
	data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
	if data == "" || data == "[DONE]" {
		return "", false
	}
	return data, true
}

// Err returns the first non-EOF error encountered by the scanner.
func (s *serverSentEventScanner) Err() error {
	return s.scanner.Err()
}

// parseJSONSchema converts a JSON schema string to a map.
func parseJSONSchema(schemaStr string) map[string]any {
	if schemaStr == "" {
		return nil
	}

	var schema map[string]any
	if err := json.Unmarshal([]byte(schemaStr), &schema); err != nil {
		// If parsing fails, return nil - the API will handle the error
		return nil
	}

	return schema
}
