package models

import "time"

// SourceKind distinguishes a plain downloadable URL from one the resolver
// offers encodings for.
type SourceKind int

const (
	SourceDirectFile SourceKind = iota
	SourceMultiFormat
)

func (k SourceKind) String() string {
	switch k {
	case SourceDirectFile:
		return "direct"
	case SourceMultiFormat:
		return "multi-format"
	default:
		return "unknown"
	}
}

// SessionMode is the dialogue step a pending download is waiting on.
type SessionMode int

const (
	ModeAwaitNameChoice SessionMode = iota
	ModeAwaitNewName
	ModeAwaitQuality
)

func (m SessionMode) String() string {
	switch m {
	case ModeAwaitNameChoice:
		return "await_name_choice"
	case ModeAwaitNewName:
		return "await_new_name"
	case ModeAwaitQuality:
		return "await_quality"
	default:
		return "unknown"
	}
}

// MediaFormat is one encoding offered by the format resolver.
type MediaFormat struct {
	ID     string
	Ext    string
	Height int   // vertical resolution, 0 = unknown
	Size   int64 // approximate bytes, 0 = unknown
}

// PendingSession is the in-memory state of one conversation's download,
// from successful probe until terminal outcome. One per conversation;
// a new inbound URL replaces it.
type PendingSession struct {
	ChatID            int64
	UserID            int64
	Kind              SourceKind
	URL               string
	Title             string
	CandidateFilename string
	CustomName        string
	ProbedSize        int64 // from the header probe, 0 = unknown
	Formats           []MediaFormat
	ThumbnailURL      string
	Mode              SessionMode
	CreatedAt         time.Time
}

// TransferResult describes a completed local download. Ownership of the
// file passes to the upload stage.
type TransferResult struct {
	LocalPath string
	ByteCount int64
	Elapsed   time.Duration
}
