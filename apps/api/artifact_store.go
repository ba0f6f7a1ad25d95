package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

const (
	uploadDigestHexLength = 16
	mapDocumentFileName   = "map.html"
	artifactMetaFileName  = "artifact.json"
	defaultUploadExt      = ".xlsx"
)

var (
	errArtifactNotFound = errors.New("artifact not found")
	allowedUploadExts   = map[string]struct{}{".xlsx": {}, ".xlsm": {}, ".xltx": {}, ".xltm": {}}
)

// MapArtifact describes one rendered map and the points it was built from.
// UploadDigest is the hex blake2b-256 of the workbook it came from.
type MapArtifact struct {
	ID           string          `json:"id"`
	CreatedAt    time.Time       `json:"created_at"`
	Language     string          `json:"language"`
	UploadKey    string          `json:"upload_key"`
	UploadDigest string          `json:"upload_digest"`
	Points       []GeocodedPoint `json:"points"`
}

// ArtifactStore keeps uploads and rendered maps on disk. Every write goes to a
// fresh generated name, so concurrent requests never share a path.
type ArtifactStore struct {
	root string
}

func NewArtifactStore(root string) (*ArtifactStore, error) {
	store := &ArtifactStore{root: root}
	for _, dir := range []string{store.uploadsDir(), store.mapsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return store, nil
}

func (s *ArtifactStore) uploadsDir() string { return filepath.Join(s.root, "uploads") }

func (s *ArtifactStore) mapsDir() string { return filepath.Join(s.root, "maps") }

// SaveUpload stores the raw upload and returns its storage key. The client filename only contributes its extension.
func (s *ArtifactStore) SaveUpload(content []byte, clientFilename string) (string, error) {
	key := generateUploadStorageKey(content, uploadExtension(clientFilename))
	fullPath := filepath.Join(s.uploadsDir(), key)
	if err := os.WriteFile(fullPath, content, 0o644); err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	return key, nil
}

func uploadExtension(clientFilename string) string {
	ext := strings.ToLower(filepath.Ext(clientFilename))
	if _, ok := allowedUploadExts[ext]; ok {
		return ext
	}
	return defaultUploadExt
}

func uploadDigest(content []byte) string {
	digest := blake2b.Sum256(content)
	return hex.EncodeToString(digest[:])
}

// generateUploadStorageKey prefixes the key with the content fingerprint so stored
// uploads can be matched to the artifacts built from them.
func generateUploadStorageKey(content []byte, ext string) string {
	return uploadDigest(content)[:uploadDigestHexLength] + "-" + uuid.NewString() + ext
}

func newArtifactID() string {
	return uuid.NewString()
}

// isArtifactID accepts only the canonical lowercase form newArtifactID produces.
func isArtifactID(id string) bool {
	parsed, err := uuid.Parse(id)
	return err == nil && parsed.String() == id
}

// SaveMap writes the document and its metadata into a staging directory and
// renames it into place, so a map directory is either complete or absent.
func (s *ArtifactStore) SaveMap(artifact MapArtifact, document []byte) error {
	if !isArtifactID(artifact.ID) {
		return fmt.Errorf("invalid artifact id %q", artifact.ID)
	}

	staging, err := os.MkdirTemp(s.mapsDir(), ".staging-")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(staging)
		}
	}()

	if err := os.WriteFile(filepath.Join(staging, mapDocumentFileName), document, 0o644); err != nil {
		return fmt.Errorf("write map document: %w", err)
	}
	meta, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(staging, artifactMetaFileName), meta, 0o644); err != nil {
		return fmt.Errorf("write artifact metadata: %w", err)
	}
	if err := os.Chmod(staging, 0o755); err != nil {
		return err
	}
	if err := os.Rename(staging, s.artifactDir(artifact.ID)); err != nil {
		return fmt.Errorf("commit artifact: %w", err)
	}
	committed = true
	return nil
}

func (s *ArtifactStore) artifactDir(id string) string {
	return filepath.Join(s.mapsDir(), id)
}

// DocumentPath returns the path of a stored map document.
func (s *ArtifactStore) DocumentPath(id string) (string, error) {
	if !isArtifactID(id) {
		return "", errArtifactNotFound
	}
	path := filepath.Join(s.artifactDir(id), mapDocumentFileName)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", errArtifactNotFound
		}
		return "", err
	}
	return path, nil
}

func (s *ArtifactStore) LoadArtifact(id string) (*MapArtifact, error) {
	if !isArtifactID(id) {
		return nil, errArtifactNotFound
	}
	raw, err := os.ReadFile(filepath.Join(s.artifactDir(id), artifactMetaFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errArtifactNotFound
		}
		return nil, err
	}
	var artifact MapArtifact
	if err := json.Unmarshal(raw, &artifact); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", id, err)
	}
	return &artifact, nil
}
