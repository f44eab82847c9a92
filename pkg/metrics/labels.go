package metrics

// normalizeLabel keeps blank label values from collapsing into an empty series.
func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
