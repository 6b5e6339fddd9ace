package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// CandidateSessionKey returns the cache key for a candidate's login session.
func (r *CacheKeyStruct) CandidateSessionKey(candidateID int) string {
	return fmt.Sprintf("login:%d", candidateID)
}

// SessionSnapshotKey returns the cache key holding the resumable snapshot of
// an in-progress test session.
func (r *CacheKeyStruct) SessionSnapshotKey(testID, applicationNo string) string {
	return fmt.Sprintf("application:%s:test:%s:snapshot", applicationNo, testID)
}

// SubmittedMarkerKey returns the cache key marking an attempt as submitted.
// Set in the same pipeline that enqueues the result, so the duplicate-
// submission guard sees the attempt before the persistence worker lands it
// in PostgreSQL.
func (r *CacheKeyStruct) SubmittedMarkerKey(testID, applicationNo string) string {
	return fmt.Sprintf("application:%s:test:%s:submitted", applicationNo, testID)
}

// TestEntryKey returns the cache key for a published test's entry-screen
// summary.
func (r *CacheKeyStruct) TestEntryKey(testID string) string {
	return fmt.Sprintf("test:%s:entry", testID)
}

var CacheKey = NewCacheKeyStruct()
