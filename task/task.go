package task

import (
	"fmt"
	"math"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"prismflow/upload"
)

type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
)

// ModeCreativeAI is the advanced mode whose parameters are captured in full.
const ModeCreativeAI = "creative-ai"

// Task is a simulated processing job.
type Task struct {
	ID             string       `json:"id"`
	Status         Status       `json:"status"`
	Progress       float64      `json:"progress"`
	CurrentStep    int          `json:"currentStep"`
	TotalSteps     int          `json:"totalSteps"`
	CurrentSubstep int          `json:"currentSubstep"`
	TotalSubsteps  int          `json:"totalSubsteps"`
	ProgressSpeed  float64      `json:"progressSpeed"`
	TimeElapsed    float64      `json:"timeElapsed"` // seconds since CreatedAt
	Mode           string       `json:"mode"`
	Message        string       `json:"message"`
	Parameters     Parameters   `json:"parameters"`
	FileID         string       `json:"fileId,omitempty"`
	File           *upload.File `json:"originalFile"`
	Completed      bool         `json:"completed"`
	DownloadURL    *string      `json:"downloadUrl"`
	CreatedAt      time.Time    `json:"createdAt"`
	LastUpdate     time.Time    `json:"lastProgressUpdate"`
}

// Parameters is the configuration captured when a task is created. Only
// creative-ai tasks carry CreativeOptions; for every other mode the encoded
// object holds just the processing mode.
type Parameters struct {
	ProcessingMode string `json:"processingMode"`
	*CreativeOptions
}

type CreativeOptions struct {
	Prompt        string  `json:"prompt"`
	LoraModel     string  `json:"loraModel"`
	LoraWeight    float64 `json:"loraWeight"`
	StyleStrength float64 `json:"styleStrength"`
	RandomSeed    int     `json:"randomSeed"`
}

// FileInfo is the public summary of a task's uploaded file.
type FileInfo struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"originalName"`
	Size         int64     `json:"size"`
	UploadTime   time.Time `json:"uploadTime"`
}

// Progress is the read-only projection served to pollers.
type Progress struct {
	ID             string     `json:"id"`
	Status         Status     `json:"status"`
	Progress       int        `json:"progress"`
	CurrentStep    int        `json:"currentStep"`
	TotalSteps     int        `json:"totalSteps"`
	CurrentSubstep int        `json:"currentSubstep"`
	TotalSubsteps  int        `json:"totalSubsteps"`
	TimeElapsed    int64      `json:"timeElapsed"`
	Mode           string     `json:"mode"`
	Message        string     `json:"message"`
	Completed      bool       `json:"completed"`
	DownloadURL    *string    `json:"downloadUrl"`
	Parameters     Parameters `json:"parameters"`
	FileInfo       *FileInfo  `json:"fileInfo"`
}

// Snapshot projects t for pollers: whole percent and whole seconds, both rounded down.
func (t Task) Snapshot() Progress {
	p := Progress{
		ID:             t.ID,
		Status:         t.Status,
		Progress:       int(math.Min(math.Floor(t.Progress), 100)),
		CurrentStep:    t.CurrentStep,
		TotalSteps:     t.TotalSteps,
		CurrentSubstep: t.CurrentSubstep,
		TotalSubsteps:  t.TotalSubsteps,
		TimeElapsed:    int64(math.Floor(t.TimeElapsed)),
		Mode:           t.Mode,
		Message:        t.Message,
		Completed:      t.Completed,
		Parameters:     t.Parameters,
	}
	if t.DownloadURL != nil {
		url := *t.DownloadURL
		p.DownloadURL = &url
	}
	if t.File != nil {
		p.FileInfo = &FileInfo{
			ID:           t.FileID,
			OriginalName: t.File.OriginalName,
			Size:         t.File.Size,
			UploadTime:   t.File.UploadTime,
		}
	}
	return p
}

// NewID returns a fresh task identifier.
func NewID(now time.Time) string {
	return fmt.Sprintf("task_%d_%s", now.UnixMilli(), shortuuid.New())
}

// DownloadPath is the result-retrieval path of a task.
func DownloadPath(id string) string {
	return "/api/download/" + id
}
