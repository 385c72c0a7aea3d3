package datastore

// Separator joins a logical path and an object name into a storage key.
const Separator = "/"

// DeriveKey builds the storage key for name under path. An empty path means
// the object lives at the namespace root. Distinct (path, name) pairs that
// produce the same key address the same object.
func DeriveKey(path, name string) string {
	if path == "" {
		return name
	}
	return path + Separator + name
}

// ListPrefix returns the backend prefix used to enumerate objects under path.
func ListPrefix(path string) string {
	if path == "" {
		return ""
	}
	return path + Separator
}
