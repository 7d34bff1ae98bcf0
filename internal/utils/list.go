package utils

import "strings"

func IsStringInSlice(s string, slice []string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}

// ContainsAnyFold reports whether s contains any of the substrings, ignoring case.
func ContainsAnyFold(s string, substrings []string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrings {
		sub = strings.ToLower(strings.TrimSpace(sub))
		if sub != "" && strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}

// UniqueStrings de-duplicates while keeping first-seen order.
func UniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	unique := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		unique = append(unique, v)
	}
	return unique
}
