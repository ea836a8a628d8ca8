package rmf

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"

	"github.com/BadgerOps/recoveryusb/internal/safety"
)

// MaxManifestSize bounds how much of a manifest file is read.
const MaxManifestSize = 32 << 20

// ErrNoRecoveryNode is wrapped by ManifestError when the document has no
// recovery element under its root.
var ErrNoRecoveryNode = errors.New("node 'recovery' not found")

// ManifestError reports a manifest that is missing, unreadable or malformed.
type ManifestError struct {
	Path string
	Err  error
}

func (e *ManifestError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("manifest: %v", e.Err)
	}
	return fmt.Sprintf("manifest %s: %v", e.Path, e.Err)
}

func (e *ManifestError) Unwrap() error { return e.Err }

type document struct {
	Recovery *recoveryNode `xml:"recovery"`
}

type recoveryNode struct {
	ManualFiles *struct {
		Files []manualFileNode `xml:"file"`
	} `xml:"manualfiles"`
	Files *struct {
		Files []fileNode `xml:"file"`
	} `xml:"files"`
}

type manualFileNode struct {
	Name     string `xml:"name,attr"`
	CopyPath string `xml:"copypath,attr"`
	Content  *struct {
		Text string `xml:",chardata"`
	} `xml:"fcontent"`
}

type fileNode struct {
	Source   string `xml:"source,attr"`
	Copy     string `xml:"copy,attr"`
	CopyPath string `xml:"copypath,attr"`
	Key      string `xml:"key,attr"`
	Name     string `xml:"name,attr"`
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ManifestError{Path: path, Err: err}
	}
	defer func() {
		_ = f.Close()
	}()

	data, err := safety.ReadAllWithLimit(f, MaxManifestSize)
	if err != nil {
		return nil, &ManifestError{Path: path, Err: fmt.Errorf("reading: %w", err)}
	}

	m, err := Parse(data)
	if err != nil {
		var me *ManifestError
		if errors.As(err, &me) {
			me.Path = path
		}
		return nil, err
	}
	m.Path = path
	return m, nil
}

// Parse parses manifest XML. Create entries without a name or content and
// transfer entries without a source are dropped; everything else keeps
// document order.
func Parse(data []byte) (*Manifest, error) {
	var doc document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, &ManifestError{Err: fmt.Errorf("XML parse fail: %w", err)}
	}
	if doc.Recovery == nil {
		return nil, &ManifestError{Err: ErrNoRecoveryNode}
	}

	m := &Manifest{}

	if mf := doc.Recovery.ManualFiles; mf != nil {
		for _, n := range mf.Files {
			if n.Name == "" || n.Content == nil || n.Content.Text == "" {
				continue
			}
			m.Creates = append(m.Creates, CreateAction{
				Name:     n.Name,
				CopyPath: safety.NormalizeManifestPath(n.CopyPath),
				Content:  trimContent(n.Content.Text),
			})
		}
	}

	if fs := doc.Recovery.Files; fs != nil {
		for _, n := range fs.Files {
			if n.Source == "" {
				continue
			}
			m.Transfers = append(m.Transfers, TransferAction{
				Source:   n.Source,
				Name:     n.Name,
				CopyPath: safety.NormalizeManifestPath(n.CopyPath),
				Mode:     parseMode(n.Copy),
				RawMode:  n.Copy,
				Key:      n.Key,
			})
		}
	}

	return m, nil
}
