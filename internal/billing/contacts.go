package billing

import (
	"sort"
	"strings"

	"detention-service/internal/model"
)

// SortByUsage orders contacts by descending use count, then by most recent use.
// Contacts never used sort after those with a LastUsedAt. The input is not modified.
func SortByUsage(contacts []model.SavedContact) []model.SavedContact {
	out := make([]model.SavedContact, len(contacts))
	copy(out, contacts)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.UseCount != b.UseCount {
			return a.UseCount > b.UseCount
		}
		switch {
		case a.LastUsedAt == nil:
			return false
		case b.LastUsedAt == nil:
			return true
		default:
			return a.LastUsedAt.After(*b.LastUsedAt)
		}
	})
	return out
}

// FilterByQuery keeps contacts whose email, name or company contains query,
// ignoring case. A blank query keeps everything.
func FilterByQuery(contacts []model.SavedContact, query string) []model.SavedContact {
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]model.SavedContact, 0, len(contacts))
	for _, c := range contacts {
		if query == "" ||
			strings.Contains(strings.ToLower(c.Email), query) ||
			strings.Contains(strings.ToLower(c.Name), query) ||
			strings.Contains(strings.ToLower(c.Company), query) {
			out = append(out, c)
		}
	}
	return out
}
