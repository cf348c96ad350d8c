package batch

import (
	"encoding/json"
	"fmt"

	"github.com/mrlokans/mimeroute/internal/storage"
)

// Item is the serialized form of a batch input. A non-empty FileID makes it a
// file reference; otherwise it is a blob. Data is base64 in JSON.
type Item struct {
	FileID      string `json:"file_id,omitempty"`
	Name        string `json:"name,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Data        []byte `json:"data,omitempty"`
}

// Object converts the item into a storage object.
func (i Item) Object() storage.Object {
	if i.FileID != "" {
		return storage.FileRef{ID: i.FileID, Name: i.Name, MIMEType: i.ContentType}
	}
	return storage.Blob{Name: i.Name, ContentType: i.ContentType, Data: i.Data}
}

// ItemFromObject is the inverse of Item.Object.
func ItemFromObject(o storage.Object) Item {
	switch v := o.(type) {
	case storage.FileRef:
		return Item{FileID: v.ID, Name: v.Name, ContentType: v.MIMEType}
	case storage.Blob:
		return Item{Name: v.Name, ContentType: v.ContentType, Data: v.Data}
	default:
		return Item{}
	}
}

// Objects converts items in order.
func Objects(items []Item) []storage.Object {
	objects := make([]storage.Object, len(items))
	for i, item := range items {
		objects[i] = item.Object()
	}
	return objects
}

// EncodeItems serializes objects for storage in a queued job.
func EncodeItems(objects []storage.Object) (string, error) {
	items := make([]Item, len(objects))
	for i, o := range objects {
		items[i] = ItemFromObject(o)
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to encode items: %w", err)
	}
	return string(b), nil
}

// DecodeItems parses the output of EncodeItems.
func DecodeItems(s string) ([]storage.Object, error) {
	var items []Item
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil, fmt.Errorf("failed to decode items: %w", err)
	}
	return Objects(items), nil
}
