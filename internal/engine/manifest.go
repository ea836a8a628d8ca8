package engine

import "time"

// Names of the files an export writes next to its archives.
const (
	ImageManifestName = "recoveryusb-manifest.json"
	ImageReadmeName   = "IMAGE-README.txt"
	archivePrefix     = "recoveryusb-image-"
)

// ImageManifest describes an exported recovery image.
type ImageManifest struct {
	Version       string            `json:"version"`
	Created       time.Time         `json:"created"`
	SourceHost    string            `json:"source_host"`
	Label         string            `json:"label"`
	Compression   string            `json:"compression"`
	Checksum      string            `json:"checksum"`
	Archives      []ManifestArchive `json:"archives"`
	TotalArchives int               `json:"total_archives"`
	TotalSize     int64             `json:"total_size"`
	Directories   []string          `json:"directories,omitempty"`
	FileInventory []ManifestFile    `json:"file_inventory"`
}

// ManifestArchive describes a single split archive in the export.
type ManifestArchive struct {
	Name     string   `json:"name"`
	Size     int64    `json:"size"`
	Checksum string   `json:"checksum"`
	Files    []string `json:"files"`
}

// ManifestFile is one entry in the full file inventory. Path is slash
// separated and relative to the image root.
type ManifestFile struct {
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
}

// Files lists every file an export of m consists of, relative to the export
// directory: archives with their sidecars first, then the README and the
// manifest with its sidecar.
func (m *ImageManifest) Files() []string {
	ext := sidecarExtension(m.Checksum)
	files := make([]string, 0, 2*len(m.Archives)+3)
	for _, a := range m.Archives {
		files = append(files, a.Name, a.Name+ext)
	}
	return append(files, ImageReadmeName, ImageManifestName, ImageManifestName+ext)
}
