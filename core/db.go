package core

import "strings"

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// ParseOrderings parses a comma separated list of fields, "-" prefixed fields being descending.
// When `allowed` is given, unknown fields are dropped.
func ParseOrderings(s string, allowed ...string) []DBOrdering {
	if s == "" {
		return nil
	}
	var ords []DBOrdering
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" || !contains(allowed, field) {
			continue
		}
		ords = append(ords, DBOrdering{Field: field, Ascending: !descending})
	}
	return ords
}

func contains(list []string, s string) bool {
	if len(list) == 0 {
		return true
	}
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
