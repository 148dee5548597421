package player

import (
	"sync"
	"time"
)

// Track is one playable file resolved to its streaming URL
type Track struct {
	Title  string
	URL    string
	Length time.Duration
}

// Queue is an ordered list of tracks with a cursor. All methods are safe
// for concurrent use; the track-end callback and the command loop both
// touch it.
type Queue struct {
	mu     sync.Mutex
	tracks []Track
	index  int
}

func NewQueue(tracks []Track) *Queue {
	return &Queue{tracks: tracks}
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tracks)
}

// Index reports the cursor position, 0-based
func (q *Queue) Index() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.index
}

// Current returns the track under the cursor
func (q *Queue) Current() (Track, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.index < 0 || q.index >= len(q.tracks) {
		return Track{}, false
	}
	return q.tracks[q.index], true
}

// Next advances the cursor and returns the new current track. At the end
// of the queue the cursor stays put and ok is false.
func (q *Queue) Next() (Track, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.index+1 >= len(q.tracks) {
		return Track{}, false
	}
	q.index++
	return q.tracks[q.index], true
}

// Prev moves the cursor back and returns the new current track
func (q *Queue) Prev() (Track, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.index-1 < 0 {
		return Track{}, false
	}
	q.index--
	return q.tracks[q.index], true
}

// JumpTo moves the cursor to an absolute position
func (q *Queue) JumpTo(i int) (Track, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i < 0 || i >= len(q.tracks) {
		return Track{}, false
	}
	q.index = i
	return q.tracks[q.index], true
}
