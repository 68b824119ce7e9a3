package model

import "fmt"

// Section is one of the three timed parts of a mock test.
type Section string

const (
	SectionListening Section = "listening"
	SectionReading   Section = "reading"
	SectionWriting   Section = "writing"
)

// SectionOrder is the order a candidate sits the sections in.
var SectionOrder = []Section{SectionListening, SectionReading, SectionWriting}

// ParseSection validates a section name.
func ParseSection(s string) (Section, error) {
	sec := Section(s)
	if !sec.Valid() {
		return "", fmt.Errorf("unknown section %q", s)
	}
	return sec, nil
}

// Valid reports whether s is a known section.
func (s Section) Valid() bool {
	switch s {
	case SectionListening, SectionReading, SectionWriting:
		return true
	}
	return false
}

// Next returns the section after s. ok is false after writing.
func (s Section) Next() (next Section, ok bool) {
	for i, sec := range SectionOrder {
		if sec == s && i+1 < len(SectionOrder) {
			return SectionOrder[i+1], true
		}
	}
	return "", false
}

// Scorable reports whether the section is scored against an answer key.
// Writing is banded by an administrator.
func (s Section) Scorable() bool {
	return s == SectionListening || s == SectionReading
}

// SubSectionCount is the number of parts (listening), passages (reading)
// or tasks (writing) in the section.
func (s Section) SubSectionCount() int {
	switch s {
	case SectionListening:
		return 4
	case SectionReading:
		return 3
	case SectionWriting:
		return 2
	}
	return 0
}
