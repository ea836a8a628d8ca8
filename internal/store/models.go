package store

import "time"

// BuildRun records one recovery image build
type BuildRun struct {
	ID           int64
	Label        string // operator-facing name, usually the manifest base name
	ManifestPath string
	SourceDir    string
	OverlayDir   string
	TargetDir    string
	StartTime    time.Time
	EndTime      time.Time
	Status       string // "running", "completed", "cancelled", "fatal"
	Failures     int
	ErrorMessage string
}

// BuildEvent is one progress event emitted during a build, in emission order
type BuildEvent struct {
	ID        int64
	RunID     int64
	Seq       int
	Kind      string
	Subject   string
	Path      string
	Result    string
	Failed    bool
	CreatedAt time.Time
}

// Transfer records an export, import or publish of a built image
type Transfer struct {
	ID           int64
	Direction    string // "export", "import" or "publish"
	Path         string // source/destination path
	Label        string
	ArchiveCount int
	TotalSize    int64
	ManifestHash string
	Status       string // "running", "completed", "failed"
	ErrorMessage string
	StartTime    time.Time
	EndTime      time.Time
}

// TransferArchive tracks per-archive validation state during import
type TransferArchive struct {
	ID          int64
	TransferID  int64
	ArchiveName string
	Checksum    string
	Size        int64
	Validated   bool
	ValidatedAt time.Time
}
