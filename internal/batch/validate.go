package batch

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/mrlokans/mimeroute/internal/storage"
)

// ErrInvalidArgument is matched by errors for malformed batch input.
// No backend call is made when it is returned.
var ErrInvalidArgument = errors.New("invalid argument")

type request struct {
	Items  []storage.Object
	Target string
}

func validateRequest(items []storage.Object, target string) error {
	req := request{Items: items, Target: target}
	err := validation.ValidateStruct(&req,
		validation.Field(&req.Items, validation.Required, validation.Each(validation.By(validateItem))),
		validation.Field(&req.Target, validation.Required),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return nil
}

func validateItem(value interface{}) error {
	switch item := value.(type) {
	case storage.FileRef:
		if item.ID == "" {
			return errors.New("file reference requires an id")
		}
	case storage.Blob:
		if item.ContentType == "" {
			return errors.New("blob requires a content type")
		}
	case nil:
		return errors.New("item is empty")
	default:
		return fmt.Errorf("unsupported item %T", value)
	}
	return nil
}

// Validate checks a batch request without running it.
func Validate(items []storage.Object, target string) error {
	return validateRequest(items, target)
}
