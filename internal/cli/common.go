package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/mrlokans/mimeroute/internal/config"
	"github.com/mrlokans/mimeroute/internal/entrypoint"
	"github.com/mrlokans/mimeroute/internal/logging"
	"github.com/mrlokans/mimeroute/internal/storage"
	"github.com/mrlokans/mimeroute/internal/utils"
)

// Backend is the storage backend used by the conversion commands.
type Backend interface {
	storage.Backend
	storage.ThumbnailSource
}

// NewDriveBackend builds the Google Drive backend from the environment.
// Commands do not persist refreshed tokens; that is left to the server.
func NewDriveBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Backend, error) {
	tokens, err := entrypoint.NewTokenSource(ctx, cfg, nil, logger)
	if err != nil {
		return nil, err
	}
	return entrypoint.NewDriveClient(cfg, tokens), nil
}

// commonFlags are shared by commands that talk to the backend.
type commonFlags struct {
	Verbose bool

	// Backend and Out are set by tests; Run fills them in otherwise.
	Backend Backend
	Out     io.Writer
	cfg     *config.Config
}

func (c *commonFlags) setup() (Backend, *zap.Logger, error) {
	level := "warn"
	if c.Verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Config{Level: level, OutputPaths: []string{"stderr"}})
	if err != nil {
		return nil, nil, err
	}

	if c.Out == nil {
		c.Out = os.Stdout
	}
	if c.Backend != nil {
		return c.Backend, logger, nil
	}
	if c.cfg == nil {
		c.cfg = config.NewConfig()
	}

	backend, err := NewDriveBackend(context.Background(), c.cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	c.Backend = backend
	return backend, logger, nil
}

// listFlag collects repeatable flag values. With split set, each value may
// also hold a comma-separated list.
type listFlag struct {
	values []string
	split  bool
}

func (f *listFlag) String() string {
	return strings.Join(f.values, ",")
}

func (f *listFlag) Set(value string) error {
	if !f.split {
		f.values = append(f.values, value)
		return nil
	}
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			f.values = append(f.values, v)
		}
	}
	return nil
}

// inputFlags describe the items of a batch.
type inputFlags struct {
	IDs         listFlag
	Files       listFlag
	ContentType string
	Target      string
}

func (in *inputFlags) validate() error {
	if len(in.IDs.values) == 0 && len(in.Files.values) == 0 {
		return fmt.Errorf("at least one -id or -file is required")
	}
	if in.Target == "" {
		return fmt.Errorf("required flag -target not provided")
	}
	return nil
}

// objects returns file references followed by local files read as blobs.
func (in *inputFlags) objects() ([]storage.Object, error) {
	objects := make([]storage.Object, 0, len(in.IDs.values)+len(in.Files.values))
	for _, id := range in.IDs.values {
		objects = append(objects, storage.FileRef{ID: id})
	}
	for _, path := range in.Files.values {
		blob, err := readBlob(path, in.ContentType)
		if err != nil {
			return nil, err
		}
		objects = append(objects, blob)
	}
	return objects, nil
}

// readBlob reads a local file, sniffing its type unless contentType is given.
func readBlob(path, contentType string) (storage.Blob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return storage.Blob{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if contentType == "" {
		contentType = mimetype.Detect(data).String()
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return storage.Blob{Name: name, ContentType: baseType(contentType), Data: data}, nil
}

// baseType drops parameters such as "; charset=utf-8".
func baseType(contentType string) string {
	t, _, _ := strings.Cut(contentType, ";")
	return strings.TrimSpace(t)
}

// writeBlob stores blob in dir, naming it after the blob and its type.
func writeBlob(dir, fallbackName string, blob *storage.Blob) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	name := utils.WithExtension(utils.SanitizeFilename(blob.Name, fallbackName), extensionFor(blob.ContentType))

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, blob.Data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

func extensionFor(contentType string) string {
	if m := mimetype.Lookup(baseType(contentType)); m != nil {
		return m.Extension()
	}
	return ""
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
