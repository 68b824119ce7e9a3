package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SessionStateKey returns the store key for a candidate's persisted session
func (r *CacheKeyStruct) SessionStateKey(candidateID string) string {
	return fmt.Sprintf("candidate:%s:session", candidateID)
}

// SectionScratchKey returns the store key for a candidate's per-section answer blob
func (r *CacheKeyStruct) SectionScratchKey(candidateID, section string) string {
	return fmt.Sprintf("candidate:%s:scratch:%s", candidateID, section)
}

// ResultsKey returns the store key for the test results collection
func (r *CacheKeyStruct) ResultsKey() string {
	return "ielts:results"
}

// AssignmentsKey returns the store key for the test assignments map
func (r *CacheKeyStruct) AssignmentsKey() string {
	return "ielts:assignments"
}

// SessionTickChannel returns the Redis PubSub channel name for a candidate's timer events
func (r *CacheKeyStruct) SessionTickChannel(candidateID string) string {
	return fmt.Sprintf("candidate:%s:session:events", candidateID)
}

var CacheKey = NewCacheKeyStruct()
