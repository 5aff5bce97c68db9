package gateway

import "sync"

// Navigator is the navigation capability handed to the gateway.
type Navigator interface {
	// Location is the page the user is currently on.
	Location() string
	// Navigate requests a move to path.
	Navigate(path string)
}

// Recorder is a Navigator that remembers the requested target so the HTTP
// layer can return it to the browser. After Navigate, Location reports the target.
type Recorder struct {
	mu       sync.Mutex
	location string
	target   string
	count    int
}

func NewRecorder(location string) *Recorder {
	return &Recorder{location: location}
}

func (r *Recorder) Location() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.location
}

func (r *Recorder) Navigate(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.location = path
	r.target = path
	r.count++
}

// Target returns the last requested navigation, if any.
func (r *Recorder) Target() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.target, r.count > 0
}

// Count returns how many navigations were requested.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
