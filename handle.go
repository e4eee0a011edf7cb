package acpadapter

// Handle is the opaque, comparable value returned to the host for a live
// session. Comparable so hosts may use it as a map key or log field
// without extra plumbing.
type Handle struct {
	SessionKey         string
	BackendID          string
	RuntimeSessionName string
	CWD                string
}
