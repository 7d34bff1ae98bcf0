package errors

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// MultiErrors collects validation problems per request field.
type MultiErrors struct {
	Errors map[string][]ErrorInfo
}

type ErrorInfo struct {
	Message  string
	RawError error
}

func NewMultiErrors() *MultiErrors {
	return &MultiErrors{
		Errors: make(map[string][]ErrorInfo),
	}
}

func (e *MultiErrors) Add(key, message string, err error) {
	e.Errors[key] = append(e.Errors[key], ErrorInfo{
		Message:  message,
		RawError: err,
	})
}

func (e *MultiErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *MultiErrors) fields() []string {
	fields := make([]string, 0, len(e.Errors))
	for field := range e.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// Error lists the problems ordered by field name.
func (e *MultiErrors) Error() string {
	var parts []string
	for _, field := range e.fields() {
		for _, info := range e.Errors[field] {
			parts = append(parts, fmt.Sprintf("%s: %s", field, info.Message))
		}
	}
	return strings.Join(parts, " | ")
}

// MarshalJSON renders {"error": ..., "fields": {field: [messages]}}; raw errors stay server side.
func (e *MultiErrors) MarshalJSON() ([]byte, error) {
	fields := make(map[string][]string, len(e.Errors))
	for field, infos := range e.Errors {
		for _, info := range infos {
			fields[field] = append(fields[field], info.Message)
		}
	}
	return json.Marshal(struct {
		Error  string              `json:"error"`
		Fields map[string][]string `json:"fields"`
	}{
		Error:  "Invalid request",
		Fields: fields,
	})
}
