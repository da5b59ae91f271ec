package cart

import "github.com/shopspring/decimal"

// AddLine merges item into lines. An existing line with the same id has its
// quantity increased by item.Quantity (1 when unset); otherwise item is
// appended. lines is not modified.
func AddLine(lines []Line, item Line) []Line {
	qty := item.Quantity
	if qty < 1 {
		qty = 1
	}
	out := make([]Line, len(lines), len(lines)+1)
	copy(out, lines)
	for i := range out {
		if out[i].ID == item.ID {
			out[i].Quantity += qty
			return out
		}
	}
	item.Quantity = qty
	return append(out, item)
}

// UpdateQuantity sets the quantity of line id. A quantity below 1 removes the
// line. The bool reports whether id was present.
func UpdateQuantity(lines []Line, id int64, quantity int) ([]Line, bool) {
	if quantity < 1 {
		return RemoveLine(lines, id)
	}
	out := make([]Line, len(lines))
	copy(out, lines)
	for i := range out {
		if out[i].ID == id {
			out[i].Quantity = quantity
			return out, true
		}
	}
	return out, false
}

// RemoveLine filters line id out.
func RemoveLine(lines []Line, id int64) ([]Line, bool) {
	out := make([]Line, 0, len(lines))
	found := false
	for _, l := range lines {
		if l.ID == id {
			found = true
			continue
		}
		out = append(out, l)
	}
	return out, found
}

// Total is the sum of unit price times quantity over lines.
func Total(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// ItemCount is the sum of quantities.
func ItemCount(lines []Line) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}
