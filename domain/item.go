// server/domain/item.go
package domain

import (
	"strings"
	"time"
)

// Standard folder names as they exist under the shared root.
const (
	FolderInbox   = "inbox"
	FolderNotes   = "notlar"
	FolderTasks   = "gorevler"
	FolderArchive = "arsiv"
	FolderTrash   = "cop_kutusu"

	FolderExport = "export"
	FolderLogs   = "logs"
)

// StandardFolders lists the folders that must pre-exist, in display order.
var StandardFolders = []string{FolderInbox, FolderNotes, FolderTasks, FolderArchive, FolderTrash}

// IsStandardFolder reports whether name is one of the five item folders.
func IsStandardFolder(name string) bool {
	for _, f := range StandardFolders {
		if f == name {
			return true
		}
	}
	return false
}

// Item is a markdown document stored in one of the standard folders.
// Folder is not part of the encoded document; it is filled in by whoever
// listed the item.
type Item struct {
	ID       string    `json:"id"`
	Filename string    `json:"filename"`
	Title    string    `json:"title"`
	Content  string    `json:"content"`
	Summary  string    `json:"summary"`
	Project  *string   `json:"project"`
	Created  *Date     `json:"created"`
	Modified time.Time `json:"modified"`
	Pinned   bool      `json:"pinned"`
	Folder   string    `json:"folder,omitempty"`
}

// ProjectName returns the project tag or "" when the item has none.
func (i *Item) ProjectName() string {
	if i.Project == nil {
		return ""
	}
	return *i.Project
}

// Folder is a named container under the shared root.
type Folder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DateLayout is the on-disk format of the created header.
const DateLayout = "2006-01-02"

// Date is a calendar day without time of day.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar day in t's location.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// StringPtr returns nil for "" and a pointer to s otherwise.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
