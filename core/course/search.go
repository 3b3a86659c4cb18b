package course

import (
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// minimum similarity for a search term to match a word it is not a substring of ("pythn" ~ "python")
const searchMinRatio = .8

// searchScore returns how well `c` matches every term of `search`, 0 meaning no match.
// A term matches when it is a case-insensitive substring of the title, short description, specialization or
// author name, or when it is similar enough to one of their words.
func searchScore(c Course, search string) float64 {
	terms := strings.Fields(strings.ToLower(search))
	if len(terms) == 0 {
		return 1
	}
	fields := []string{
		strings.ToLower(c.Title),
		strings.ToLower(c.ShortDescription),
		strings.ToLower(c.Specialization),
		strings.ToLower(c.AuthorName),
	}

	var total float64
	for _, term := range terms {
		best := termScore(term, fields)
		if best < searchMinRatio {
			return 0
		}
		total += best
	}
	return total / float64(len(terms))
}

func termScore(term string, fields []string) float64 {
	var best float64
	for _, fld := range fields {
		if strings.Contains(fld, term) {
			return 1
		}
		for _, word := range strings.Fields(fld) {
			ratio := difflib.NewMatcher(strings.Split(term, ""), strings.Split(word, "")).Ratio()
			if ratio > best {
				best = ratio
			}
		}
	}
	return best
}

// search keeps the courses matching `q`. When byScore is set, best matches come first.
func search(courses []Course, q string, byScore bool) []Course {
	type scored struct {
		course Course
		score  float64
	}
	matches := make([]scored, 0, len(courses))
	for _, c := range courses {
		if s := searchScore(c, q); s > 0 {
			matches = append(matches, scored{course: c, score: s})
		}
	}
	if byScore {
		sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })
	}

	res := make([]Course, 0, len(matches))
	for _, m := range matches {
		res = append(res, m.course)
	}
	return res
}
