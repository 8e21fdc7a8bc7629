package sharepoint

import "strings"

// Record is the text projection of a transport list item, keyed by
// internal field name.
type Record map[string]string

// RecordsFromItems converts fetched items to their text records.
func RecordsFromItems(items []Item) []Record {
	records := make([]Record, 0, len(items))
	for _, item := range items {
		if item.Text == nil {
			records = append(records, Record{})
			continue
		}
		records = append(records, Record(item.Text))
	}
	return records
}

// Filter returns the records where any field contains the query,
// case-insensitively. An empty query returns every record.
func Filter(records []Record, query string) []Record {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return records
	}

	matched := make([]Record, 0, len(records))
	for _, rec := range records {
		for _, value := range rec {
			if strings.Contains(strings.ToLower(value), query) {
				matched = append(matched, rec)
				break
			}
		}
	}
	return matched
}
