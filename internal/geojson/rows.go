package geojson

// Rows flattens a document into the ordered feature rows to persist. A Single
// yields one row; a Collection yields its features in input order.
func Rows(doc Document) []Feature {
	switch d := doc.(type) {
	case Single:
		return []Feature{d.Feature}
	case Collection:
		rows := make([]Feature, len(d.Features))
		copy(rows, d.Features)
		return rows
	default:
		return nil
	}
}
