package timeparser

import (
	"fmt"
	"strings"
	"time"
)

// Accepted fill-up date layouts, tried in order. Layouts without a zone are read as UTC.
var layouts = []string{
	time.RFC3339Nano,
	"02/01/2006 15:04:05", // DD/MM/YYYY HH:mm:ss
	"02/01/2006",          // DD/MM/YYYY
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseFillUpDate parses the date of a fill-up as sent by clients
func ParseFillUpDate(dateStr string) (time.Time, error) {
	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	var lastErr error
	for _, layout := range layouts {
		t, err := time.Parse(layout, dateStr)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}

	return time.Time{}, fmt.Errorf("failed to parse date '%s': %w", dateStr, lastErr)
}
