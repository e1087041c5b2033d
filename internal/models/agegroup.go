package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	MinClassGrade = 1
	MaxClassGrade = 8
)

// AgeGroup is the canonical string serialization of a set of allowed class
// grades. Contiguous runs collapse to ranges: {7,8} -> "7-8", {1,2,5} -> "1,2,5".
type AgeGroup string

// ParseAgeGroup accepts "7-8", "3-4", "1,2,5" and mixed forms like "1-3,5".
func ParseAgeGroup(s string) (AgeGroup, error) {
	grades, err := parseGrades(s)
	if err != nil {
		return "", err
	}
	if len(grades) == 0 {
		return "", fmt.Errorf("age group must not be empty")
	}
	return formatGrades(grades), nil
}

// Grades expands the canonical form back into the sorted grade set.
func (g AgeGroup) Grades() []int {
	grades, err := parseGrades(string(g))
	if err != nil {
		return nil
	}
	return grades
}

// Contains reports whether the given class grade is allowed.
func (g AgeGroup) Contains(grade int) bool {
	for _, v := range g.Grades() {
		if v == grade {
			return true
		}
	}
	return false
}

func parseGrades(s string) ([]int, error) {
	set := make(map[int]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			from, err := parseGrade(lo)
			if err != nil {
				return nil, err
			}
			to, err := parseGrade(hi)
			if err != nil {
				return nil, err
			}
			if from > to {
				return nil, fmt.Errorf("invalid grade range %q", part)
			}
			for v := from; v <= to; v++ {
				set[v] = true
			}
			continue
		}
		v, err := parseGrade(part)
		if err != nil {
			return nil, err
		}
		set[v] = true
	}

	grades := make([]int, 0, len(set))
	for v := range set {
		grades = append(grades, v)
	}
	sort.Ints(grades)
	return grades, nil
}

func parseGrade(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid class grade %q", s)
	}
	if v < MinClassGrade || v > MaxClassGrade {
		return 0, fmt.Errorf("class grade %d out of range %d..%d", v, MinClassGrade, MaxClassGrade)
	}
	return v, nil
}

func formatGrades(grades []int) AgeGroup {
	var parts []string
	for i := 0; i < len(grades); {
		j := i
		for j+1 < len(grades) && grades[j+1] == grades[j]+1 {
			j++
		}
		if j > i {
			parts = append(parts, fmt.Sprintf("%d-%d", grades[i], grades[j]))
		} else {
			parts = append(parts, strconv.Itoa(grades[i]))
		}
		i = j + 1
	}
	return AgeGroup(strings.Join(parts, ","))
}
