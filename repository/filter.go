// server/repository/filter.go
package repository

import (
	"strings"

	"github.com/ViniZap4/lumi-drive/domain"
	"github.com/ViniZap4/lumi-drive/taxonomy"
)

// FilterItems keeps the items matching filter:
//
//	"All" (or "")   every item
//	"No Project"    items without a project
//	"<Org> (All)"   items whose project starts with "<Org> - "
//	anything else   items whose project equals filter
func FilterItems(items []domain.Item, filter string) []domain.Item {
	switch filter {
	case "", taxonomy.FilterAll:
		return items
	case taxonomy.FilterNone:
		return keep(items, func(it domain.Item) bool {
			return it.Project == nil
		})
	}

	if org, ok := taxonomy.ParseOrgAll(filter); ok {
		prefix := taxonomy.OrgPrefix(org)
		return keep(items, func(it domain.Item) bool {
			return it.Project != nil && strings.HasPrefix(*it.Project, prefix)
		})
	}

	return keep(items, func(it domain.Item) bool {
		return it.Project != nil && *it.Project == filter
	})
}

func keep(items []domain.Item, match func(domain.Item) bool) []domain.Item {
	out := make([]domain.Item, 0, len(items))
	for _, it := range items {
		if match(it) {
			out = append(out, it)
		}
	}
	return out
}
