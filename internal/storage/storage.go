package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

const ContentTypeWAV = "audio/wav"

type Uploader interface {
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (storedPath string, err error)
}

type Signer interface {
	SignedGetURL(ctx context.Context, objectName string, ttl time.Duration) (string, error)
}

// ChunkObject names the archived audio of one chunk: sessions/<session>/<turn>/0001.wav.
func ChunkObject(sessionID, turnID string, index int) string {
	return path.Join("sessions", sessionID, turnID, fmt.Sprintf("%04d.wav", index))
}

// ObjectName turns a stored gs://bucket/name path back into the object name.
// Anything without the scheme is returned as is.
func ObjectName(stored string) string {
	rest, ok := strings.CutPrefix(stored, "gs://")
	if !ok {
		return stored
	}
	if _, name, found := strings.Cut(rest, "/"); found {
		return name
	}
	return rest
}
