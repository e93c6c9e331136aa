package query

// PageItem is one element of the rendered pagination control: either a
// clickable page number or a non-interactive ellipsis marker.
type PageItem struct {
	Number   int
	Ellipsis bool
	Current  bool
}

// TotalPages computes the page count for a result set.
func TotalPages(totalItems, perPage int) int {
	if perPage <= 0 || totalItems <= 0 {
		return 0
	}
	return (totalItems + perPage - 1) / perPage
}

// Pages builds the pagination presentation model: first and last page
// always shown, a contiguous window of two pages around the current
// one, and every gap collapsed into a single ellipsis. Returns nil when
// there is at most one page, in which case no control is rendered.
func Pages(totalItems, perPage, current int) []PageItem {
	total := TotalPages(totalItems, perPage)
	if total <= 1 {
		return nil
	}
	if current < 1 {
		current = 1
	}
	if current > total {
		current = total
	}

	show := func(n int) bool {
		if n == 1 || n == total {
			return true
		}
		return n >= current-2 && n <= current+2
	}

	var items []PageItem
	inGap := false
	for n := 1; n <= total; n++ {
		if !show(n) {
			if !inGap {
				items = append(items, PageItem{Ellipsis: true})
				inGap = true
			}
			continue
		}
		inGap = false
		items = append(items, PageItem{Number: n, Current: n == current})
	}
	return items
}
