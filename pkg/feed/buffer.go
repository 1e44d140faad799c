package feed

import "net/url"

// appendValid appends the rows that pass URL validation to the buffer and
// returns how many were added. Invalid rows are dropped with a warning and
// never occupy a buffer slot.
func (c *Controller) appendValid(rows []string) int {
	valid := make([]string, 0, len(rows))
	for _, row := range rows {
		if !validURL(row) {
			invalidURLsTotal.Inc()
			c.logger.Warn().Str("row", row).Msg("Dropping invalid URL")
			continue
		}
		valid = append(valid, row)
	}

	c.mu.Lock()
	c.urls = append(c.urls, valid...)
	bufferLength.Set(float64(len(c.urls)))
	c.mu.Unlock()

	return len(valid)
}

// validURL reports whether s is an absolute http(s) URL.
func validURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}
