package www

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// timeRange parses start/end query params. Values may be RFC 3339 or unix
// milliseconds. Missing end defaults to now; missing start to one hour
// before end.
func timeRange(r *http.Request) (start, end time.Time, err error) {
	end = time.Now()
	if s := r.URL.Query().Get("end"); s != "" {
		end, err = parseTime(s)
		if err != nil {
			return start, end, fmt.Errorf("invalid end: %w", err)
		}
	}
	start = end.Add(-time.Hour)
	if s := r.URL.Query().Get("start"); s != "" {
		start, err = parseTime(s)
		if err != nil {
			return start, end, fmt.Errorf("invalid start: %w", err)
		}
	}
	if end.Before(start) {
		return start, end, fmt.Errorf("end precedes start")
	}
	return start, end, nil
}

func parseTime(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Parse(time.RFC3339, s)
}
