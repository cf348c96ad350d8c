package storage

// Object is either a stored file (FileRef) or in-memory content (Blob).
// The interface is sealed so no other kind of object can be passed around.
type Object interface {
	// MIME returns the declared type of the object, if known
	MIME() string
	isObject()
}

// FileRef references a file held by the backend.
type FileRef struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
}

func (f FileRef) MIME() string { return f.MIMEType }
func (FileRef) isObject()      {}

// Blob is file content held in memory.
type Blob struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

func (b Blob) MIME() string { return b.ContentType }
func (Blob) isObject()      {}

// Copy returns a blob that shares no memory with b.
func (b Blob) Copy() Blob {
	data := make([]byte, len(b.Data))
	copy(data, b.Data)
	return Blob{Name: b.Name, ContentType: b.ContentType, Data: data}
}

// Describe returns a short human readable label for logs and audit records.
func Describe(o Object) string {
	switch v := o.(type) {
	case FileRef:
		if v.Name != "" {
			return v.Name + " (" + v.ID + ")"
		}
		return v.ID
	case Blob:
		if v.Name != "" {
			return v.Name
		}
		return "blob"
	default:
		return "unknown"
	}
}
